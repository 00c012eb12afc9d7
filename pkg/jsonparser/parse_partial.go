// Package jsonparser repairs the truncated JSON a detokenizer can leave
// behind mid-value: a tool call's arguments object cut off before its
// closing brace, or a bare JSON fallback form with an open string.
package jsonparser

import (
	"encoding/json"
)

// ParseState reports how ParsePartialJSON arrived at its result.
type ParseState string

const (
	ParseStateUndefinedInput ParseState = "undefined-input"
	ParseStateSuccessful     ParseState = "successful-parse"
	ParseStateRepaired       ParseState = "repaired-parse"
	ParseStateFailed         ParseState = "failed-parse"
)

// ParseResult is what ParsePartialJSON returns: the decoded value (of any
// JSON type), which State produced it, and the terminal error on failure.
type ParseResult struct {
	Value interface{}
	State ParseState
	Error error
}

// ParsePartialJSON decodes raw as-is; on failure it runs FixJSON to close
// out unterminated strings/objects/arrays and retries once.
func ParsePartialJSON(raw string) ParseResult {
	if raw == "" {
		return ParseResult{State: ParseStateUndefinedInput}
	}

	var value interface{}
	firstErr := json.Unmarshal([]byte(raw), &value)
	if firstErr == nil {
		return ParseResult{Value: value, State: ParseStateSuccessful}
	}

	repaired := FixJSON(raw)
	if repaired == "" {
		return ParseResult{State: ParseStateFailed, Error: firstErr}
	}

	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return ParseResult{State: ParseStateFailed, Error: err}
	}
	return ParseResult{Value: value, State: ParseStateRepaired}
}
