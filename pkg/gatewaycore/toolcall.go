package gatewaycore

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/digitallysavvy/onlocal-gateway/pkg/jsonparser"
)

var (
	functionTagRe  = regexp.MustCompile(`<function=([^>]+)>`)
	parameterTagRe = regexp.MustCompile(`(?s)<parameter=([^>]+)>([\s\S]*?)</parameter>`)
	// trailingParamRe matches an opened-but-unclosed parameter at the very
	// end of a body, for end-of-stream salvage.
	trailingParamRe = regexp.MustCompile(`(?s)<parameter=([^>]+)>([\s\S]*)$`)
	// bareToolCallRe matches the bare {"name":...,"arguments":{...}} form;
	// group 2 is a closed arguments object, group 3 an arguments object cut
	// off at the end of the text.
	bareToolCallRe = regexp.MustCompile(`(?s)\{"name"\s*:\s*"([^"]+)".*?"arguments"\s*:\s*(?:(\{.*?\})\s*\}|(\{.*)$)`)
)

// ToolCallEventKind discriminates the events ToolCallTransducer.Feed
// produces.
type ToolCallEventKind int

const (
	// EventOpen is the opening delta for a newly detected function call.
	EventOpen ToolCallEventKind = iota
	// EventArgFragment is one JSON argument-fragment delta.
	EventArgFragment
	// EventClose is the closing-arguments delta for the current call.
	EventClose
)

// ToolCallEvent is one emission the transducer produces while scanning
// tool-call markup; the pipeline converts these into chatapi deltas.
type ToolCallEvent struct {
	Kind     ToolCallEventKind
	Index    int
	ID       string
	Name     string
	Fragment string
	// FinalArguments carries the authoritative, fully parsed arguments
	// JSON; only populated on EventClose.
	FinalArguments string
}

// ToolCallTransducer incrementally recognizes <function=NAME> and
// <parameter=KEY>VALUE</parameter> markup inside a <tool_call>...</tool_call>
// region and emits JSON argument-fragment deltas in append order.
type ToolCallTransducer struct {
	startTag, endTag string
	remapper         *KeyRemapper

	inCall      bool
	currentText strings.Builder
	current     *ToolCallAccumulator
	nextIndex   int

	anyFinalized bool
	sawMarkup    bool
	rawAll       strings.Builder
}

// NewToolCallTransducer returns a transducer scoped to one request.
func NewToolCallTransducer(remapper *KeyRemapper) *ToolCallTransducer {
	return &ToolCallTransducer{
		startTag: DefaultToolCallStartTag,
		endTag:   DefaultToolCallEndTag,
		remapper: remapper,
	}
}

// InCall reports whether a tool-call body is currently being accumulated.
func (t *ToolCallTransducer) InCall() bool { return t.inCall }

// AnyFinalized reports whether at least one tool call was finalized over
// the lifetime of the stream.
func (t *ToolCallTransducer) AnyFinalized() bool { return t.anyFinalized }

// FeedResult is what Feed returns for one generator piece: the plain text
// surrounding a tool-call region, plus any transducer events produced.
type FeedResult struct {
	PreText  string
	Events   []ToolCallEvent
	PostText string
}

// Feed processes one generator text piece. When not already inside a
// call, text up to a start tag is returned as PreText (content that must
// flush before any tool-call delta); text after an end tag is returned as
// PostText and re-enters the extractor.
func (t *ToolCallTransducer) Feed(piece string) FeedResult {
	t.rawAll.WriteString(piece)
	var result FeedResult
	remaining := piece

	for {
		if !t.inCall {
			idx := strings.Index(remaining, t.startTag)
			if idx < 0 {
				result.PreText += remaining
				return result
			}
			t.sawMarkup = true
			result.PreText += remaining[:idx]
			remaining = remaining[idx+len(t.startTag):]
			t.inCall = true
			t.current = newToolCallAccumulator(t.nextIndex)
			t.nextIndex++
			continue
		}

		idx := strings.Index(remaining, t.endTag)
		if idx < 0 {
			t.currentText.WriteString(remaining)
			result.Events = append(result.Events, t.scanIncremental()...)
			return result
		}
		t.currentText.WriteString(remaining[:idx])
		result.Events = append(result.Events, t.scanIncremental()...)
		result.Events = append(result.Events, t.closeCurrentCall())
		remaining = remaining[idx+len(t.endTag):]
		t.inCall = false
	}
}

// scanIncremental rescans the current call's accumulated body for a
// not-yet-opened function tag and any complete, not-yet-emitted parameter
// elements, returning the deltas they produce.
func (t *ToolCallTransducer) scanIncremental() []ToolCallEvent {
	var events []ToolCallEvent
	body := t.currentText.String()
	acc := t.current

	if !acc.opened {
		if m := functionTagRe.FindStringSubmatch(body); m != nil {
			acc.opened = true
			acc.Name = strings.TrimSpace(m[1])
			events = append(events, ToolCallEvent{
				Kind: EventOpen, Index: acc.Index, ID: acc.ID, Name: acc.Name,
			})
		}
	}
	if !acc.opened {
		return events
	}

	for _, m := range parameterTagRe.FindAllStringSubmatch(body, -1) {
		key := m[1]
		if acc.emittedKeys[key] {
			continue
		}
		if frag, ok := t.argFragment(acc, key, m[2]); ok {
			events = append(events, ToolCallEvent{
				Kind: EventArgFragment, Index: acc.Index, Fragment: frag,
			})
		}
	}
	return events
}

// argFragment applies the strip/skip/dedup/remap rules to one parameter
// match and returns the JSON fragment to emit, if any.
func (t *ToolCallTransducer) argFragment(acc *ToolCallAccumulator, key, rawValue string) (string, bool) {
	value := stripOneNewline(rawValue)
	if value == "" {
		return "", false
	}
	if !acc.markEmitted(key) {
		return "", false
	}
	mappedKey := t.remapper.Remap(acc.Name, key)
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", false
	}
	prefix := ","
	if acc.ParamCount == 0 {
		prefix = "{"
	}
	acc.ParamCount++
	return prefix + encodeKey(mappedKey) + ":" + string(encoded), true
}

func encodeKey(key string) string {
	encoded, _ := json.Marshal(key)
	return string(encoded)
}

// stripOneNewline removes exactly one leading and one trailing '\n', not a
// general whitespace trim, matching how the markup pads values.
func stripOneNewline(s string) string {
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimSuffix(s, "\n")
	return s
}

func (t *ToolCallTransducer) closeCurrentCall() ToolCallEvent {
	acc := t.current
	fragment := "}"
	if acc.ParamCount == 0 {
		fragment = "{}"
	}
	acc.finalizedArg = ParseToolCallBody(acc.Name, t.currentText.String(), t.remapper)
	t.anyFinalized = true
	t.currentText.Reset()
	return ToolCallEvent{
		Kind: EventClose, Index: acc.Index,
		Fragment: fragment, FinalArguments: acc.finalizedArg,
	}
}

// RawText returns the full raw text fed to the transducer over the
// lifetime of the stream, used by the post-loop fallback parser.
func (t *ToolCallTransducer) RawText() string {
	return t.rawAll.String()
}

// Salvage handles a stream that ends with inCall still true (e.g.
// max_tokens reached mid-value): it looks for a trailing, unterminated
// <parameter=KEY>VALUE at the tail of the body and, if found, emits it
// before closing.
func (t *ToolCallTransducer) Salvage() []ToolCallEvent {
	if !t.inCall || t.current == nil {
		return nil
	}
	events := t.scanIncremental()
	body := t.currentText.String()
	if i := strings.LastIndex(body, "<parameter="); i >= 0 {
		if m := trailingParamRe.FindStringSubmatch(body[i:]); m != nil && !strings.Contains(m[2], "</parameter>") {
			if frag, ok := t.argFragment(t.current, m[1], m[2]); ok {
				events = append(events, ToolCallEvent{
					Kind: EventArgFragment, Index: t.current.Index, Fragment: frag,
				})
			}
			// Close the element so the full-body parse that finalizes the
			// call includes the salvaged value.
			t.currentText.WriteString("</parameter>")
		}
	}
	events = append(events, t.closeCurrentCall())
	t.inCall = false
	return events
}

// NeedsFallback reports whether the accumulated raw text looks like it
// contains tool-call markup that per-piece scanning never detected,
// signalling the caller should run ParseFallbackToolCalls over the full
// text. This protects against detokenizer fragmentation defeating the
// incremental `contains` check.
func (t *ToolCallTransducer) NeedsFallback() bool {
	if t.anyFinalized || t.sawMarkup {
		return false
	}
	text := t.rawAll.String()
	return strings.Contains(text, t.startTag) ||
		strings.Contains(text, "[TOOL_CALLS]") ||
		strings.HasPrefix(strings.TrimSpace(text), `{"name"`)
}

// ParseToolCallBody runs a full-body parse of one tool call's markup,
// applying the same skip/strip/dedup/remap rules as incremental scanning,
// and returns the resulting JSON arguments object (or "{}" when empty).
// This is the authority used to finalize a streamed call and the whole
// mechanism used by the buffered (non-streaming) path.
func ParseToolCallBody(toolName, body string, remapper *KeyRemapper) string {
	var b strings.Builder
	seen := make(map[string]bool)
	count := 0
	for _, m := range parameterTagRe.FindAllStringSubmatch(body, -1) {
		key := m[1]
		if seen[key] {
			continue
		}
		value := stripOneNewline(m[2])
		if value == "" {
			continue
		}
		seen[key] = true
		mappedKey := remapper.Remap(toolName, key)
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		if count == 0 {
			b.WriteByte('{')
		} else {
			b.WriteByte(',')
		}
		b.WriteString(encodeKey(mappedKey))
		b.WriteByte(':')
		b.Write(encoded)
		count++
	}
	if count == 0 {
		return "{}"
	}
	b.WriteByte('}')
	return b.String()
}

// ParseFallbackToolCalls recovers tool calls from accumulated text when
// per-piece scanning never fired, e.g. because a detokenizer split the
// start tag across pieces in a way that defeated substring detection on
// every individual piece. It recognizes <tool_call> blocks and a bare
// {"name":...,"arguments":{...}} form.
func ParseFallbackToolCalls(fullText string, remapper *KeyRemapper) []VendorToolCall {
	var calls []VendorToolCall
	index := 0

	start, end := DefaultToolCallStartTag, DefaultToolCallEndTag
	rest := fullText
	for {
		s := strings.Index(rest, start)
		if s < 0 {
			break
		}
		rest = rest[s+len(start):]
		e := strings.Index(rest, end)
		body := rest
		if e >= 0 {
			body = rest[:e]
			rest = rest[e+len(end):]
		} else {
			rest = ""
		}
		name := ""
		if m := functionTagRe.FindStringSubmatch(body); m != nil {
			name = strings.TrimSpace(m[1])
		}
		calls = append(calls, VendorToolCall{
			Index:     index,
			Name:      name,
			Arguments: ParseToolCallBody(name, body, remapper),
		})
		index++
		if e < 0 {
			break
		}
	}
	if len(calls) > 0 {
		return calls
	}

	for _, m := range bareToolCallRe.FindAllStringSubmatch(fullText, -1) {
		// A detokenizer can truncate the arguments object mid-value; repair
		// it with jsonparser before trusting it as a tool call's final
		// arguments.
		raw := m[2]
		if raw == "" {
			raw = m[3]
		}
		args, ok := repairArguments(raw)
		if !ok {
			continue
		}
		calls = append(calls, VendorToolCall{
			Index:     index,
			Name:      m[1],
			Arguments: args,
		})
		index++
	}
	return calls
}

// repairArguments validates raw as a JSON object, repairing it with
// jsonparser when it's incomplete, and re-encoding to canonical form.
func repairArguments(raw string) (string, bool) {
	result := jsonparser.ParsePartialJSON(raw)
	if result.State == jsonparser.ParseStateFailed || result.Value == nil {
		return "", false
	}
	encoded, err := json.Marshal(result.Value)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}
