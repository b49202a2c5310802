package operation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

func TestNormalizeCloud(t *testing.T) {
	cases := map[string]types.OpState{
		"received":             types.StateQueued,
		"queued":               types.StateQueued,
		"initialized":          types.StateQueued,
		"processing":           types.StateProcessing,
		"processing-completed": types.StateCompleted,
		"processing-error":     types.StateFailed,
		"cancelled":            types.StateCancelled,
		// Case and whitespace are the platform's business, not ours.
		"Processing-Completed": types.StateCompleted,
		" processing ":         types.StateProcessing,
		// Unknown vocabulary must not break polling.
		"something-new": types.StateProcessing,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(types.PlatformCloud, raw, nil), "raw state %q", raw)
	}
}

func TestNormalizeEnterprise(t *testing.T) {
	cases := map[string]types.OpState{
		"queued":                types.StateQueued,
		"starting":              types.StateProcessing,
		"running":               types.StateProcessing,
		"cancelling":            types.StateProcessing,
		"completed":             types.StateCompleted,
		"failed":                types.StateFailed,
		"cancelled":             types.StateCancelled,
		"active":                types.StateCompleted,
		"pending":               types.StateProcessing,
		"active-change-pending": types.StateProcessing,
		"delete-pending":        types.StateProcessing,
		"creation-failed":       types.StateFailed,
		"mystery":               types.StateProcessing,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(types.PlatformEnterprise, raw, nil), "raw state %q", raw)
	}
}

func TestNormalizeErrorPayloadWins(t *testing.T) {
	payload := json.RawMessage(`{"description":"boom"}`)
	assert.Equal(t, types.StateFailed, Normalize(types.PlatformCloud, "processing", payload))
	assert.Equal(t, types.StateFailed, Normalize(types.PlatformEnterprise, "active", payload))

	// A JSON null error field is not an error.
	assert.Equal(t, types.StateProcessing, Normalize(types.PlatformCloud, "processing", json.RawMessage("null")))
}

func TestFailureReason(t *testing.T) {
	cases := []struct {
		name string
		snap types.StatusSnapshot
		want string
	}{
		{"string payload", types.StatusSnapshot{ErrorPayload: []byte(`"limit reached"`)}, "limit reached"},
		{"description field", types.StatusSnapshot{ErrorPayload: []byte(`{"description":"bad plan"}`)}, "bad plan"},
		{"error field", types.StatusSnapshot{ErrorPayload: []byte(`{"error":"io failure"}`)}, "io failure"},
		{"no payload", types.StatusSnapshot{RawState: "creation-failed"}, "operation reported state creation-failed"},
		{"nothing at all", types.StatusSnapshot{}, "operation failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, failureReason(tc.snap))
		})
	}
}
