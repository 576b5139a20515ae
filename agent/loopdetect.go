package agent

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// toolCallSignature computes a deterministic signature for a tool call
// (name + hash of arguments). json.Marshal sorts map keys, so equal
// argument maps produce equal signatures.
func toolCallSignature(name string, args map[string]interface{}) string {
	raw, _ := json.Marshal(args)
	h := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// recentToolCallSignatures extracts signatures from the most recent tool
// call entries, in chronological order.
func recentToolCallSignatures(entries []HistoryEntry, count int) []string {
	var sigs []string
	for i := len(entries) - 1; i >= 0 && len(sigs) < count; i-- {
		entry := entries[i]
		if entry.Kind == EntryAction && entry.Action != nil && entry.Action.Kind == ActionToolCall {
			sigs = append(sigs, toolCallSignature(entry.Action.ToolName, entry.Action.ToolArgs))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectRepeatedCalls reports whether the last windowSize tool calls follow
// a repeating pattern of length 1, 2, or 3. The loop uses this to inject a
// corrective observation; it never alters already-recorded history.
func DetectRepeatedCalls(entries []HistoryEntry, windowSize int) bool {
	sigs := recentToolCallSignatures(entries, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		matches := true
		for i := patternLen; i < len(sigs) && matches; i++ {
			if sigs[i] != pattern[i%patternLen] {
				matches = false
			}
		}
		if matches {
			return true
		}
	}
	return false
}
