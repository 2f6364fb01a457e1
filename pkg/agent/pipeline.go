// Kissan - agricultural advisory chat client
// License: MIT
//
// Copyright (c) 2026 Kissan contributors

package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kissan-ai/kissan/pkg/bus"
	"github.com/kissan-ai/kissan/pkg/compose"
	"github.com/kissan-ai/kissan/pkg/conversation"
	"github.com/kissan-ai/kissan/pkg/logger"
	"github.com/kissan-ai/kissan/pkg/media"
	"github.com/kissan-ai/kissan/pkg/metrics"
	"github.com/kissan-ai/kissan/pkg/providers"
	"github.com/kissan-ai/kissan/pkg/utils"
)

// State is the pipeline's position in the current (or last) submission.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAwaitingResponse
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errEmptyResponse = errors.New("advisor returned no response")

// Outcome describes how a placeholder was settled.
type Outcome struct {
	MessageID string
	State     State
	Err       error
}

type Options struct {
	Language providers.Language
	Timeout  time.Duration
	Tracker  *metrics.Tracker
}

// Pipeline turns a submitted draft into a user message plus an assistant
// placeholder, calls the advisor, and settles the placeholder in place.
// Only one request is in flight at a time; submissions while busy are dropped.
//
// All methods except the constructor must be called on the loop goroutine.
type Pipeline struct {
	loop    *bus.Loop
	store   *conversation.Store
	advisor providers.Advisor
	tracker *metrics.Tracker
	timeout time.Duration

	language      providers.Language
	state         State
	placeholderID string
	onBusy        func(busy bool)
	onSettled     func(Outcome)
}

func NewPipeline(loop *bus.Loop, store *conversation.Store, advisor providers.Advisor, opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Language == "" {
		opts.Language = providers.LanguageUrdu
	}
	return &Pipeline{
		loop:     loop,
		store:    store,
		advisor:  advisor,
		tracker:  opts.Tracker,
		timeout:  opts.Timeout,
		language: opts.Language,
		state:    StateIdle,
	}
}

func (p *Pipeline) State() State {
	return p.state
}

// Busy reports whether a submission is in flight.
func (p *Pipeline) Busy() bool {
	return p.state == StateSubmitting || p.state == StateAwaitingResponse
}

func (p *Pipeline) Language() providers.Language {
	return p.language
}

// SetLanguage changes the target language of later submissions.
func (p *Pipeline) SetLanguage(lang providers.Language) {
	p.language = lang
}

func (p *Pipeline) OnBusy(fn func(busy bool)) {
	p.onBusy = fn
}

func (p *Pipeline) OnSettled(fn func(Outcome)) {
	p.onSettled = fn
}

// Submit starts a new turn. It returns false, without touching the store,
// when the draft is empty or a request is already in flight.
func (p *Pipeline) Submit(ctx context.Context, draft compose.Draft) bool {
	if draft.IsEmpty() || p.Busy() {
		return false
	}

	p.setState(StateSubmitting)

	var image *media.ContentPart
	var encodeErr error
	if draft.ImagePath != "" {
		image, encodeErr = media.EncodeImage(draft.ImagePath)
	}

	p.store.Append(conversation.NewUserMessage(draft.Text, image.DataURL()))
	id := p.store.Append(conversation.NewPlaceholder())
	p.placeholderID = id
	p.setState(StateAwaitingResponse)

	logger.InfoCF("agent", fmt.Sprintf("Submitting: %s", utils.Truncate(draft.Text, 80)),
		map[string]interface{}{
			"message_id": id,
			"language":   string(p.language),
			"image":      image != nil,
		})

	req := providers.AdvisoryRequest{Text: draft.Text, Image: image, Language: p.language}

	if encodeErr != nil {
		p.resolve(id, req, nil, fmt.Errorf("encode image: %w", encodeErr), 0)
		return true
	}

	go p.invoke(ctx, id, req)
	return true
}

// invoke runs off the loop; its result is posted back as an event.
func (p *Pipeline) invoke(ctx context.Context, id string, req providers.AdvisoryRequest) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.advisor.Advise(callCtx, req)
	if err == nil && resp == nil {
		err = errEmptyResponse
	}
	latency := time.Since(start)

	if !p.loop.Post(func() { p.resolve(id, req, resp, err, latency) }) {
		logger.WarnCF("agent", "Event loop stopped, dropping advisory result",
			map[string]interface{}{"message_id": id})
	}
}

func (p *Pipeline) resolve(id string, req providers.AdvisoryRequest, resp *providers.AdvisoryResponse, err error, latency time.Duration) {
	if id != p.placeholderID || p.state != StateAwaitingResponse {
		logger.WarnCF("agent", "Ignoring result for a placeholder that is not in flight",
			map[string]interface{}{"message_id": id})
		return
	}

	outcome := Outcome{MessageID: id, Err: err}
	event := metrics.AdvisoryEvent{
		MessageID: id,
		Provider:  p.advisor.Name(),
		Language:  string(req.Language),
		HasImage:  req.Image != nil,
		LatencyMS: latency.Milliseconds(),
	}

	if err == nil {
		p.store.UpdateByID(id, func(m *conversation.Message) {
			m.Content = conversation.AdvisoryContent(resp.Advisory)
			m.Citations = resp.Citations
			m.Pending = false
		})
		outcome.State = StateResolved
		event.Outcome = "resolved"
		event.Model = resp.Model
		if resp.Usage != nil {
			event.InputTokens = resp.Usage.PromptTokens
			event.OutputTokens = resp.Usage.CompletionTokens
		}

		logger.InfoCF("agent", fmt.Sprintf("Advisory: %s", utils.Truncate(resp.Advisory.Heading, 80)),
			map[string]interface{}{
				"message_id": id,
				"steps":      len(resp.Advisory.Steps),
				"citations":  len(resp.Citations),
				"latency_ms": latency.Milliseconds(),
			})
	} else {
		text := FailureText(req.Language, err)
		p.store.UpdateByID(id, func(m *conversation.Message) {
			m.Content = conversation.TextContent(text)
			m.Pending = false
		})
		outcome.State = StateFailed
		event.Outcome = "failed"
		if providers.IsConfigError(err) {
			event.Outcome = "config_error"
		}

		logger.ErrorCF("agent", "Advisory request failed",
			map[string]interface{}{
				"message_id": id,
				"config":     providers.IsConfigError(err),
				"error":      err.Error(),
			})
	}

	p.placeholderID = ""
	p.setState(outcome.State)
	p.tracker.Record(event)

	if p.onSettled != nil {
		p.onSettled(outcome)
	}
}

func (p *Pipeline) setState(s State) {
	wasBusy := p.Busy()
	p.state = s
	if busy := p.Busy(); busy != wasBusy && p.onBusy != nil {
		p.onBusy(busy)
	}
}
