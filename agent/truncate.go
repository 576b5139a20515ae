package agent

import "fmt"

// TruncateOutput bounds a string to maxChars by removing the middle,
// keeping the head and tail. maxChars <= 0 disables truncation.
func TruncateOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	half := maxChars / 2
	removed := len(output) - maxChars
	marker := fmt.Sprintf("\n[... %d characters truncated ...]\n", removed)
	return output[:half] + marker + output[len(output)-(maxChars-half):]
}

// truncateResultMap returns a copy of a tool result with oversized string
// values truncated before they are recorded in history. The full output is
// still available on the event stream.
func truncateResultMap(result map[string]interface{}, maxChars int) map[string]interface{} {
	if maxChars <= 0 {
		return result
	}
	truncated := make(map[string]interface{}, len(result))
	for key, value := range result {
		if s, ok := value.(string); ok {
			truncated[key] = TruncateOutput(s, maxChars)
			continue
		}
		truncated[key] = value
	}
	return truncated
}
