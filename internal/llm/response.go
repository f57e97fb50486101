package llm

import "strings"

const codeFence = "```"

// StripCodeFence returns a completion with one surrounding markdown code
// fence removed. The fence's opening line (for example "```json") is
// dropped along with the closing fence. Anything else, including prose
// around a JSON object, is returned trimmed but otherwise untouched so the
// decoder rejects it.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, codeFence) || !strings.HasSuffix(text, codeFence) {
		return text
	}

	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return text
	}
	body := text[nl+1:]
	body = strings.TrimSuffix(strings.TrimRight(body, " \t\r\n"), codeFence)
	return strings.TrimSpace(body)
}
