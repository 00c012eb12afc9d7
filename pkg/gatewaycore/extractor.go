package gatewaycore

import "strings"

// ExtractResult is what ThinkExtractor.Feed or Flush produces for one
// generator piece. Content and Reasoning are independent: a result may
// carry either, both, or neither, but the two text spans are never
// concatenated into a single field.
type ExtractResult struct {
	Content   *string
	Reasoning *string
}

func (r ExtractResult) empty() bool {
	return r.Content == nil && r.Reasoning == nil
}

func appendResult(r *ExtractResult, content, reasoning string) {
	if content != "" {
		if r.Content == nil {
			r.Content = new(string)
		}
		*r.Content += content
	}
	if reasoning != "" {
		if r.Reasoning == nil {
			r.Reasoning = new(string)
		}
		*r.Reasoning += reasoning
	}
}

// ThinkExtractor splits an unframed token stream into reasoning_content
// spans (inside <think>...</think>) and content spans (outside), holding
// back a residual tail long enough to guarantee a split marker is never
// leaked a byte at a time.
type ThinkExtractor struct {
	buffer strings.Builder
	inside bool
}

// NewThinkExtractor returns an extractor in the initial (outside) state.
func NewThinkExtractor() *ThinkExtractor {
	return &ThinkExtractor{}
}

// Feed appends one generator text piece and returns the content/reasoning
// recovered so far, retaining a residual tail that might still be part of
// an unfinished tag.
func (e *ThinkExtractor) Feed(piece string) ExtractResult {
	e.buffer.WriteString(piece)
	buf := e.buffer.String()
	e.buffer.Reset()

	var out ExtractResult
	for {
		if e.inside {
			if idx := strings.Index(buf, thinkEndTag); idx >= 0 {
				appendResult(&out, "", buf[:idx])
				buf = buf[idx+len(thinkEndTag):]
				e.inside = false
				continue
			}
			keep := len(thinkEndTag) - 1
			if len(buf) <= keep {
				break
			}
			appendResult(&out, "", buf[:len(buf)-keep])
			buf = buf[len(buf)-keep:]
			break
		}

		if idx := strings.Index(buf, thinkStartTag); idx >= 0 {
			appendResult(&out, buf[:idx], "")
			buf = buf[idx+len(thinkStartTag):]
			e.inside = true
			continue
		}
		keep := len(thinkStartTag) - 1
		if len(buf) <= keep {
			break
		}
		appendResult(&out, buf[:len(buf)-keep], "")
		buf = buf[len(buf)-keep:]
		break
	}

	e.buffer.WriteString(buf)
	return out
}

// Flush drains whatever remains in the residual buffer at stream end,
// attributing it to reasoning or content depending on the last known
// state. trimSpace should be true only for the non-streaming final object;
// streaming flushes never trim.
func (e *ThinkExtractor) Flush(trimSpace bool) ExtractResult {
	buf := e.buffer.String()
	e.buffer.Reset()
	if trimSpace {
		buf = strings.TrimSpace(buf)
	}
	if buf == "" {
		return ExtractResult{}
	}
	var out ExtractResult
	if e.inside {
		appendResult(&out, "", buf)
	} else {
		appendResult(&out, buf, "")
	}
	return out
}
