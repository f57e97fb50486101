// Package prompt renders the LLM prompts used by the pipeline.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Template names.
const (
	LabelExtraction = "label_extraction"
	Classification  = "classification"
	Description     = "description"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("prompts").ParseFS(templateFS, "templates/*.tmpl"))

// Render executes the named template with params.
// Rendering has no side effects.
func Render(name string, params any) (string, error) {
	tmpl := templates.Lookup(name + ".tmpl")
	if tmpl == nil {
		return "", fmt.Errorf("unknown prompt template: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// LabelExtractionPrompt builds the prompt asking for candidate labels over
// a sample of questions, one "Question: ..." line per question.
func LabelExtractionPrompt(questions []string) (string, error) {
	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = "Question: " + strings.TrimSpace(q)
	}
	return Render(LabelExtraction, struct{ Questions string }{
		Questions: strings.Join(lines, "\n"),
	})
}

// ClassificationPrompt builds the prompt assigning one question to a label.
func ClassificationPrompt(question string, labels []string) (string, error) {
	return Render(Classification, struct {
		Labels   []string
		Question string
	}{
		Labels:   labels,
		Question: question,
	})
}

// DescriptionPrompt builds the prompt describing a cluster from a sample
// of its questions.
func DescriptionPrompt(clusterName string, questions []string) (string, error) {
	return Render(Description, struct {
		ClusterName string
		Questions   []string
	}{
		ClusterName: clusterName,
		Questions:   questions,
	})
}
