package operation

import (
	"encoding/json"
	"strings"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// Per-platform lookup tables mapping raw status vocabulary onto the shared
// state model. The Cloud task endpoint and the two Enterprise polling shapes
// (action UID and bdb status field) each contribute their vocabulary; the
// Enterprise table merges both shapes since the strings do not collide.
var cloudStates = map[string]types.OpState{
	"received":    types.StateQueued,
	"pending":     types.StateQueued,
	"initialized": types.StateQueued,
	"queued":      types.StateQueued,

	"processing":  types.StateProcessing,
	"in-progress": types.StateProcessing,
	"in_progress": types.StateProcessing,

	"processing-completed": types.StateCompleted,
	"completed":            types.StateCompleted,
	"complete":             types.StateCompleted,
	"succeeded":            types.StateCompleted,
	"success":              types.StateCompleted,

	"processing-error": types.StateFailed,
	"failed":           types.StateFailed,
	"error":            types.StateFailed,

	"cancelled": types.StateCancelled,
}

var enterpriseStates = map[string]types.OpState{
	// action polling
	"queued":     types.StateQueued,
	"starting":   types.StateProcessing,
	"running":    types.StateProcessing,
	"cancelling": types.StateProcessing,
	"completed":  types.StateCompleted,
	"failed":     types.StateFailed,
	"cancelled":  types.StateCancelled,

	// bdb status-field polling
	"active":                types.StateCompleted,
	"pending":               types.StateProcessing,
	"active-change-pending": types.StateProcessing,
	"delete-pending":        types.StateProcessing,
	"import-pending":        types.StateProcessing,
	"recovery":              types.StateProcessing,
	"creation-failed":       types.StateFailed,
}

// Normalize maps a platform's raw status string onto the shared state model.
//
// A non-empty error payload always forces the failed state: some platforms
// report a failure document alongside a stale non-terminal status string.
// Unknown raw states normalize to processing rather than failing, so a
// future API revision introducing a benign intermediate state keeps the
// poller polling instead of erroring out.
func Normalize(platform types.Platform, rawState string, errorPayload json.RawMessage) types.OpState {
	if len(errorPayload) > 0 && string(errorPayload) != "null" {
		return types.StateFailed
	}

	table := cloudStates
	if platform == types.PlatformEnterprise {
		table = enterpriseStates
	}

	if s, ok := table[strings.ToLower(strings.TrimSpace(rawState))]; ok {
		return s
	}
	return types.StateProcessing
}
