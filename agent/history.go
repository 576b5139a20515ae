package agent

import "time"

// EntryKind discriminates between history entry variants.
type EntryKind string

const (
	EntryAction      EntryKind = "action"
	EntryToolResult  EntryKind = "tool_result"
	EntryObservation EntryKind = "observation"
)

// HistoryEntry is one record in a run's trace. Entries are append-only and
// never rewritten; corrections are modeled as new entries. A ToolCall
// action entry and its ToolResult entry share a CorrelationID.
type HistoryEntry struct {
	Kind          EntryKind              `json:"kind"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Action        *Action                `json:"action,omitempty"`
	Result        map[string]interface{} `json:"result,omitempty"`
	Observation   string                 `json:"observation,omitempty"`
}

// NewActionEntry creates a history entry recording a decided action.
// correlationID is empty for actions without a paired result.
func NewActionEntry(action Action, correlationID string) HistoryEntry {
	return HistoryEntry{
		Kind:          EntryAction,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Action:        &action,
	}
}

// NewToolResultEntry creates a history entry recording a tool result.
func NewToolResultEntry(correlationID string, result map[string]interface{}) HistoryEntry {
	return HistoryEntry{
		Kind:          EntryToolResult,
		Timestamp:     time.Now(),
		CorrelationID: correlationID,
		Result:        result,
	}
}

// NewObservationEntry creates a history entry recording an observation
// injected from outside the decision loop.
func NewObservationEntry(content string) HistoryEntry {
	return HistoryEntry{
		Kind:        EntryObservation,
		Timestamp:   time.Now(),
		Observation: content,
	}
}

// History is the single-writer, append-only trace of a run. It is owned
// exclusively by the loop instance that produced it; ports and callers
// only ever see ordered copies via Snapshot, never a mutable reference.
// Because there is exactly one writer and writes never interleave with
// reads inside the sequential loop, no locking is needed.
type History struct {
	entries []HistoryEntry
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{entries: make([]HistoryEntry, 0, 16)}
}

// Append adds an entry at the end of the trace.
func (h *History) Append(entry HistoryEntry) {
	h.entries = append(h.entries, entry)
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Snapshot returns a copy of the entries in causal order. The copy is
// detached: later appends do not affect it.
func (h *History) Snapshot() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
