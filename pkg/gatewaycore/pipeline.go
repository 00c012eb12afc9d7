package gatewaycore

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/digitallysavvy/onlocal-gateway/pkg/chatapi"
)

// DeltaSink receives one streaming chunk at a time. A write failure
// (client disconnect) must cancel the generator; the pipeline surfaces the
// sink's error back to the caller for exactly that purpose.
type DeltaSink func(chatapi.ChatCompletionChunk) error

// Pipeline runs the extractor + transducer state machine over one
// request's generator output, for either the streaming or the buffered
// path. A Pipeline is scoped to a single request and is not reused.
type Pipeline struct {
	ID     string
	Model  string
	Params EffectiveParams

	extractor  *ThinkExtractor
	transducer *ToolCallTransducer
	remapper   *KeyRemapper
	rawOutput  bool

	promptTokens      int
	completionTokens  int
	haveAuthoritative bool
	rawText           strings.Builder
	startedAt         time.Time
	firstTokenAt      time.Time
}

// NewPipeline builds a pipeline for one request. When rawOutput is set
// (the server's raw-output option), <think> spans are left in the
// content stream verbatim instead of being extracted into
// reasoning_content, for clients that render raw model output.
func NewPipeline(model string, params EffectiveParams, remapper *KeyRemapper, rawOutput bool) *Pipeline {
	return &Pipeline{
		ID:         "chatcmpl-" + uuid.New().String(),
		Model:      model,
		Params:     params,
		extractor:  NewThinkExtractor(),
		transducer: NewToolCallTransducer(remapper),
		remapper:   remapper,
		rawOutput:  rawOutput,
	}
}

// feed routes text through the think-tag extractor, unless raw-output
// mode is on, in which case it passes straight through as content.
func (p *Pipeline) feed(text string) ExtractResult {
	if p.rawOutput {
		if text == "" {
			return ExtractResult{}
		}
		s := text
		return ExtractResult{Content: &s}
	}
	return p.extractor.Feed(text)
}

// flush finalizes any buffered extractor state; a no-op in raw-output
// mode since feed never buffers there.
func (p *Pipeline) flush(trimSpace bool) ExtractResult {
	if p.rawOutput {
		return ExtractResult{}
	}
	return p.extractor.Flush(trimSpace)
}

// RunStreaming drains gen, emitting chunks via sink, and returns once the
// generator is exhausted, a sink write fails, or the generator errors.
func (p *Pipeline) RunStreaming(gen Generator, sink DeltaSink) error {
	now := time.Now()
	p.startedAt = now
	created := now.Unix()

	if err := sink(p.roleMarkerChunk(created)); err != nil {
		return err
	}

	for {
		chunk, ok, err := gen.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		p.markFirstToken(chunk)
		p.accountTokens(chunk)

		if len(chunk.ToolCalls) > 0 {
			if err := p.emitVendorToolCalls(created, chunk.ToolCalls, sink); err != nil {
				return err
			}
			continue
		}

		p.rawText.WriteString(chunk.Text)
		result := p.transducer.Feed(chunk.Text)
		if err := p.flushFeedResult(created, result, sink); err != nil {
			return err
		}
	}

	if p.transducer.InCall() {
		for _, ev := range p.transducer.Salvage() {
			if err := sink(p.toolCallEventChunk(created, ev)); err != nil {
				return err
			}
		}
	}
	if res := p.flush(false); !res.empty() {
		if err := sink(p.contentChunk(created, res)); err != nil {
			return err
		}
	}
	if p.transducer.NeedsFallback() {
		for _, call := range ParseFallbackToolCalls(p.transducer.RawText(), p.remapper) {
			if err := p.emitVendorToolCalls(created, []VendorToolCall{call}, sink); err != nil {
				return err
			}
		}
	}

	return sink(p.finishedChunk(created))
}

// RunBuffered drains gen to completion and returns a single buffered
// response, equivalent in semantics to RunStreaming but without emitting
// any intermediate deltas.
func (p *Pipeline) RunBuffered(gen Generator) (*chatapi.ChatCompletionResponse, error) {
	now := time.Now()
	p.startedAt = now
	created := now.Unix()
	var content, reasoning strings.Builder
	var toolCalls []chatapi.ToolCall
	var vendorSeen bool
	positions := make(map[int]int)

	applyEvent := func(ev ToolCallEvent) {
		switch ev.Kind {
		case EventOpen:
			positions[ev.Index] = len(toolCalls)
			toolCalls = append(toolCalls, chatapi.ToolCall{
				ID:   ev.ID,
				Type: "function",
				Function: chatapi.ToolCallFunction{
					Name: ev.Name,
				},
			})
		case EventClose:
			if pos, ok := positions[ev.Index]; ok {
				toolCalls[pos].Function.Arguments = ev.FinalArguments
			}
		}
	}

	for {
		chunk, ok, err := gen.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		p.accountTokens(chunk)

		if len(chunk.ToolCalls) > 0 {
			vendorSeen = true
			for _, vc := range chunk.ToolCalls {
				toolCalls = append(toolCalls, p.bufferedToolCall(vc))
			}
			continue
		}

		p.rawText.WriteString(chunk.Text)
		result := p.transducer.Feed(chunk.Text)
		p.feedExtractorBuffered(result.PreText, &content, &reasoning)
		for _, ev := range result.Events {
			applyEvent(ev)
		}
		p.feedExtractorBuffered(result.PostText, &content, &reasoning)
	}

	if p.transducer.InCall() {
		for _, ev := range p.transducer.Salvage() {
			applyEvent(ev)
		}
	}
	if res := p.flush(true); res.Content != nil {
		content.WriteString(*res.Content)
	} else if res.Reasoning != nil {
		reasoning.WriteString(*res.Reasoning)
	}
	if len(toolCalls) == 0 && !vendorSeen && p.transducer.NeedsFallback() {
		for _, call := range ParseFallbackToolCalls(p.transducer.RawText(), p.remapper) {
			toolCalls = append(toolCalls, chatapi.ToolCall{
				ID:   newToolCallID(),
				Type: "function",
				Function: chatapi.ToolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
	}

	finishReason := p.finishReason(len(toolCalls) > 0)
	msg := chatapi.ResponseMessage{Role: "assistant"}
	sanitized := SanitizeTail(content.String())
	if sanitized != "" {
		msg.Content = &sanitized
	}
	if r := reasoning.String(); r != "" {
		msg.ReasoningContent = &r
	}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}

	return &chatapi.ChatCompletionResponse{
		ID:      p.ID,
		Object:  "chat.completion",
		Created: created,
		Model:   p.Model,
		Choices: []chatapi.Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: finishReason,
		}},
		Usage: p.usage(),
	}, nil
}

func (p *Pipeline) feedExtractorBuffered(text string, content, reasoning *strings.Builder) {
	if text == "" {
		return
	}
	res := p.feed(text)
	if res.Content != nil {
		content.WriteString(*res.Content)
	}
	if res.Reasoning != nil {
		reasoning.WriteString(*res.Reasoning)
	}
}

func (p *Pipeline) bufferedToolCall(vc VendorToolCall) chatapi.ToolCall {
	return chatapi.ToolCall{
		ID:   newToolCallID(),
		Type: "function",
		Function: chatapi.ToolCallFunction{
			Name:      vc.Name,
			Arguments: vc.Arguments,
		},
	}
}

// Created returns the Unix timestamp RunStreaming/RunBuffered recorded at
// start, for building a terminal chunk outside the normal RunStreaming
// return path (e.g. a mid-stream error).
func (p *Pipeline) Created() int64 {
	return p.startedAt.Unix()
}

// Elapsed is the wall-clock time since RunStreaming/RunBuffered started.
func (p *Pipeline) Elapsed() time.Duration {
	if p.startedAt.IsZero() {
		return 0
	}
	return time.Since(p.startedAt)
}

// CompletionTokens reports the completion-token count accounted so far,
// for logging a token/s rate on a stream that ended before RunStreaming
// returned normally.
func (p *Pipeline) CompletionTokens() int {
	return p.completionTokens
}

// markFirstToken records the wall-clock time of the first piece of
// generated output, splitting the request into a prompt-processing phase
// and a generation phase for Timings.
func (p *Pipeline) markFirstToken(chunk StreamChunk) {
	if !p.firstTokenAt.IsZero() {
		return
	}
	if chunk.Text == "" && len(chunk.ToolCalls) == 0 {
		return
	}
	p.firstTokenAt = time.Now()
}

func (p *Pipeline) accountTokens(chunk StreamChunk) {
	if chunk.PromptTokens != nil {
		p.promptTokens = *chunk.PromptTokens
		p.haveAuthoritative = true
	}
	if chunk.CompletionTokens != nil {
		p.completionTokens = *chunk.CompletionTokens
		p.haveAuthoritative = true
	}
}

func (p *Pipeline) flushFeedResult(created int64, result FeedResult, sink DeltaSink) error {
	if result.PreText != "" {
		if res := p.feed(result.PreText); !res.empty() {
			if err := sink(p.contentChunk(created, res)); err != nil {
				return err
			}
		}
	}
	for _, ev := range result.Events {
		if err := sink(p.toolCallEventChunk(created, ev)); err != nil {
			return err
		}
	}
	if result.PostText != "" {
		if res := p.feed(result.PostText); !res.empty() {
			if err := sink(p.contentChunk(created, res)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Pipeline) emitVendorToolCalls(created int64, calls []VendorToolCall, sink DeltaSink) error {
	for _, vc := range calls {
		id := newToolCallID()
		idx := vc.Index
		if err := sink(p.rawChunk(created, chatapi.Delta{
			ToolCalls: []chatapi.ToolCall{{
				Index: &idx, ID: id, Type: "function",
				Function: chatapi.ToolCallFunction{Name: vc.Name, Arguments: ""},
			}},
		})); err != nil {
			return err
		}
		if err := sink(p.rawChunk(created, chatapi.Delta{
			ToolCalls: []chatapi.ToolCall{{
				Index: &idx,
				Function: chatapi.ToolCallFunction{Arguments: vc.Arguments},
			}},
		})); err != nil {
			return err
		}
		p.transducer.anyFinalized = true
	}
	return nil
}

func (p *Pipeline) roleMarkerChunk(created int64) chatapi.ChatCompletionChunk {
	return p.rawChunk(created, chatapi.Delta{Role: "assistant"})
}

func (p *Pipeline) contentChunk(created int64, res ExtractResult) chatapi.ChatCompletionChunk {
	return p.rawChunk(created, chatapi.Delta{Content: res.Content, ReasoningContent: res.Reasoning})
}

func (p *Pipeline) toolCallEventChunk(created int64, ev ToolCallEvent) chatapi.ChatCompletionChunk {
	idx := ev.Index
	switch ev.Kind {
	case EventOpen:
		return p.rawChunk(created, chatapi.Delta{ToolCalls: []chatapi.ToolCall{{
			Index: &idx, ID: ev.ID, Type: "function",
			Function: chatapi.ToolCallFunction{Name: ev.Name, Arguments: ""},
		}}})
	default:
		return p.rawChunk(created, chatapi.Delta{ToolCalls: []chatapi.ToolCall{{
			Index:    &idx,
			Function: chatapi.ToolCallFunction{Arguments: ev.Fragment},
		}}})
	}
}

func (p *Pipeline) finishedChunk(created int64) chatapi.ChatCompletionChunk {
	return p.FinishedChunk(created, p.transducer.AnyFinalized())
}

// FinishedChunk builds the terminal streaming chunk: finish_reason, usage,
// and timings always populated, even when called from an error/cancellation
// path rather than a normal end of stream.
func (p *Pipeline) FinishedChunk(created int64, anyToolCalls bool) chatapi.ChatCompletionChunk {
	fr := p.finishReason(anyToolCalls)
	usage := p.usage()
	timings := p.timings()
	c := p.rawChunk(created, chatapi.Delta{})
	c.Choices[0].FinishReason = &fr
	c.Usage = &usage
	c.Timings = &timings
	return c
}

// timings reports the wall-clock split between prompt processing (time to
// first generated token) and generation (time to last token), falling back
// to the full elapsed duration as predicted_ms when no token was ever
// produced (e.g. an immediate error).
func (p *Pipeline) timings() chatapi.Timings {
	if p.startedAt.IsZero() {
		return chatapi.Timings{}
	}
	now := time.Now()
	if p.firstTokenAt.IsZero() {
		return chatapi.Timings{PredictedMS: now.Sub(p.startedAt).Milliseconds()}
	}
	return chatapi.Timings{
		PromptMS:    p.firstTokenAt.Sub(p.startedAt).Milliseconds(),
		PredictedMS: now.Sub(p.firstTokenAt).Milliseconds(),
	}
}

func (p *Pipeline) finishReason(anyToolCalls bool) chatapi.FinishReason {
	if anyToolCalls {
		return chatapi.FinishToolCalls
	}
	if p.completionTokens >= p.Params.MaxTokens {
		return chatapi.FinishLength
	}
	return chatapi.FinishStop
}

func (p *Pipeline) usage() chatapi.Usage {
	prompt, completion := p.promptTokens, p.completionTokens
	if !p.haveAuthoritative {
		completion = estimateTokens(p.rawText.String())
	}
	return chatapi.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}

func (p *Pipeline) rawChunk(created int64, delta chatapi.Delta) chatapi.ChatCompletionChunk {
	return chatapi.ChatCompletionChunk{
		ID:      p.ID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   p.Model,
		Choices: []chatapi.ChunkChoice{{Index: 0, Delta: delta}},
	}
}

// estimateTokens approximates a token count from raw text when a
// generator does not report authoritative counts: the larger of a
// word-based and a character-based estimate.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text) / 4
	if words > chars {
		return words
	}
	return chars
}
