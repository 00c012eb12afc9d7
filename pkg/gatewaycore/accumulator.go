package gatewaycore

import (
	"strings"

	"github.com/google/uuid"
)

// ToolCallAccumulator tracks one in-progress tool call: which parameter
// keys have already been emitted (dedup), how many have been emitted, and
// the function name once its opening delta has gone out.
type ToolCallAccumulator struct {
	Index        int
	ID           string
	Name         string
	ParamCount   int
	emittedKeys  map[string]bool
	opened       bool
	finalizedArg string
}

func newToolCallAccumulator(index int) *ToolCallAccumulator {
	return &ToolCallAccumulator{
		Index:       index,
		ID:          newToolCallID(),
		emittedKeys: make(map[string]bool),
	}
}

// newToolCallID mints a synthetic "call_" + 24 hex character id.
func newToolCallID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	if len(hex) > 24 {
		hex = hex[:24]
	}
	return "call_" + hex
}

func (a *ToolCallAccumulator) markEmitted(key string) bool {
	if a.emittedKeys[key] {
		return false
	}
	a.emittedKeys[key] = true
	return true
}
