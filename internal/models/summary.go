package models

// Summary describes one cluster after the summarization pass.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}
