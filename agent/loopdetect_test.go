package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func callEntry(name string, args map[string]interface{}) HistoryEntry {
	return NewActionEntry(ToolCall(name, args), "")
}

func repeatedCalls(n int, name string, args map[string]interface{}) []HistoryEntry {
	entries := make([]HistoryEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, callEntry(name, args))
	}
	return entries
}

func TestDetectRepeatedCallsSingle(t *testing.T) {
	args := map[string]interface{}{"query": "same"}
	assert.True(t, DetectRepeatedCalls(repeatedCalls(10, "search", args), 10))
}

func TestDetectRepeatedCallsAlternating(t *testing.T) {
	var entries []HistoryEntry
	for i := 0; i < 5; i++ {
		entries = append(entries,
			callEntry("read", map[string]interface{}{"path": "a"}),
			callEntry("read", map[string]interface{}{"path": "b"}),
		)
	}
	assert.True(t, DetectRepeatedCalls(entries, 10))
}

func TestDetectRepeatedCallsDistinct(t *testing.T) {
	var entries []HistoryEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, callEntry("search", map[string]interface{}{"query": fmt.Sprintf("q%d", i)}))
	}
	assert.False(t, DetectRepeatedCalls(entries, 10))
}

func TestDetectRepeatedCallsShortHistory(t *testing.T) {
	args := map[string]interface{}{"query": "same"}
	assert.False(t, DetectRepeatedCalls(repeatedCalls(3, "search", args), 10))
}

func TestDetectRepeatedCallsIgnoresNonCalls(t *testing.T) {
	args := map[string]interface{}{"query": "same"}
	entries := repeatedCalls(4, "search", args)
	entries = append(entries, NewObservationEntry("noise"))
	entries = append(entries, repeatedCalls(2, "search", args)...)
	// 6 calls total, interleaved observation does not break the pattern.
	assert.True(t, DetectRepeatedCalls(entries, 6))
}

func TestToolCallSignatureKeyOrderIndependent(t *testing.T) {
	a := toolCallSignature("search", map[string]interface{}{"x": 1, "y": 2})
	b := toolCallSignature("search", map[string]interface{}{"y": 2, "x": 1})
	c := toolCallSignature("search", map[string]interface{}{"x": 1, "y": 3})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, toolCallSignature("fetch", map[string]interface{}{"x": 1, "y": 2}))
}
