package operation

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// failureReason extracts a human-readable reason from a terminal snapshot.
// Platforms disagree on where the message lives: Cloud nests it under the
// task response, Enterprise actions carry a flat error string, and a bdb
// that failed creation may only have the raw status. Try the common shapes
// before falling back to the raw payload or state.
func failureReason(snap types.StatusSnapshot) string {
	payload := snap.ErrorPayload
	if len(payload) == 0 {
		if snap.RawState != "" {
			return "operation reported state " + snap.RawState
		}
		return "operation failed"
	}

	var s string
	if err := json.Unmarshal(payload, &s); err == nil && s != "" {
		return s
	}

	var doc struct {
		Description string `json:"description"`
		Message     string `json:"message"`
		Error       string `json:"error"`
		Type        string `json:"type"`
	}
	if err := json.Unmarshal(payload, &doc); err == nil {
		for _, candidate := range []string{doc.Description, doc.Message, doc.Error, doc.Type} {
			if candidate != "" {
				return candidate
			}
		}
	}

	return strings.TrimSpace(string(payload))
}

// NopSink discards progress events.
func NopSink(types.ProgressEvent) {}

// EventBuffer accumulates progress events for consumers that cannot stream,
// such as MCP tool handlers that return one structured final status.
type EventBuffer struct {
	mu     sync.Mutex
	events []types.ProgressEvent
}

// Sink returns a ProgressSink that appends into the buffer.
func (b *EventBuffer) Sink() types.ProgressSink {
	return func(ev types.ProgressEvent) {
		b.mu.Lock()
		b.events = append(b.events, ev)
		b.mu.Unlock()
	}
}

// Events returns a copy of the accumulated events.
func (b *EventBuffer) Events() []types.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.ProgressEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Summary condenses the buffer into counts by kind, suitable for embedding
// in a structured tool response.
func (b *EventBuffer) Summary() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, 4)
	for _, ev := range b.events {
		out[string(ev.Kind)]++
	}
	return out
}
