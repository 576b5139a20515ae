// Package jsonfence extracts structured JSON payloads embedded in free-form
// generation output.
//
// Models frequently wrap JSON in markdown code fences. The extraction rule
// is fixed: if the text contains a ```json fence, the first such fence's
// interior is taken; otherwise, if it contains any ``` fence, the first
// fence's interior is taken; otherwise the full text is used verbatim.
package jsonfence

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	jsonFence = "```json"
	bareFence = "```"
)

// Extract returns the JSON payload candidate from text according to the
// fence-extraction rule. The result is whitespace-trimmed but otherwise
// verbatim; it is not validated as JSON.
func Extract(text string) string {
	if i := strings.Index(text, jsonFence); i >= 0 {
		return interior(text[i+len(jsonFence):])
	}
	if i := strings.Index(text, bareFence); i >= 0 {
		return interior(text[i+len(bareFence):])
	}
	return strings.TrimSpace(text)
}

// interior takes everything up to the closing fence, or the full remainder
// when the fence is never closed.
func interior(rest string) string {
	if j := strings.Index(rest, bareFence); j >= 0 {
		return strings.TrimSpace(rest[:j])
	}
	return strings.TrimSpace(rest)
}

// Unmarshal extracts the payload from text and decodes it into v.
func Unmarshal(text string, v interface{}) error {
	payload := Extract(text)
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("decoding fenced payload: %w", err)
	}
	return nil
}
