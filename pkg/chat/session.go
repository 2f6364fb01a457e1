package chat

import (
	"context"
	"time"

	"github.com/kissan-ai/kissan/pkg/agent"
	"github.com/kissan-ai/kissan/pkg/bus"
	"github.com/kissan-ai/kissan/pkg/compose"
	"github.com/kissan-ai/kissan/pkg/conversation"
	"github.com/kissan-ai/kissan/pkg/logger"
	"github.com/kissan-ai/kissan/pkg/metrics"
	"github.com/kissan-ai/kissan/pkg/providers"
	"github.com/kissan-ai/kissan/pkg/speech"
)

type Options struct {
	Language       providers.Language
	Timeout        time.Duration
	NoticeDuration time.Duration
	Tracker        *metrics.Tracker
}

// Session is one chat surface: a draft, a transcript and the machinery
// that fills them. Every method must run on the session's loop.
type Session struct {
	loop       *bus.Loop
	buffer     *compose.Buffer
	store      *conversation.Store
	pipeline   *agent.Pipeline
	controller *speech.Controller
}

// NewSession wires a session onto loop. recognizer may be nil, in which
// case dictation is unavailable.
func NewSession(loop *bus.Loop, advisor providers.Advisor, recognizer speech.Recognizer, opts Options) *Session {
	buffer := compose.NewBuffer()
	store := conversation.NewStore()
	return &Session{
		loop:   loop,
		buffer: buffer,
		store:  store,
		pipeline: agent.NewPipeline(loop, store, advisor, agent.Options{
			Language: opts.Language,
			Timeout:  opts.Timeout,
			Tracker:  opts.Tracker,
		}),
		controller: speech.NewController(loop, recognizer, buffer, opts.NoticeDuration),
	}
}

func (s *Session) Loop() *bus.Loop                { return s.loop }
func (s *Session) Buffer() *compose.Buffer        { return s.buffer }
func (s *Session) Store() *conversation.Store     { return s.store }
func (s *Session) Pipeline() *agent.Pipeline      { return s.pipeline }
func (s *Session) Controller() *speech.Controller { return s.controller }

func (s *Session) Language() providers.Language {
	return s.pipeline.Language()
}

// SetLanguage applies to later submissions and dictation sessions.
func (s *Session) SetLanguage(lang providers.Language) {
	if lang == s.pipeline.Language() {
		return
	}
	s.pipeline.SetLanguage(lang)
	logger.InfoCF("chat", "Language changed", map[string]interface{}{"language": string(lang)})
}

// Type replaces the draft text.
func (s *Session) Type(text string) {
	s.buffer.SetText(text)
}

func (s *Session) AttachImage(path string) error {
	return s.buffer.AttachImage(path)
}

func (s *Session) RemoveImage() {
	s.buffer.RemoveImage()
}

// ToggleMic starts or stops dictation in the current language.
func (s *Session) ToggleMic(ctx context.Context) {
	s.controller.Toggle(ctx, s.pipeline.Language())
}

// CanSubmit reports whether Submit would accept the current draft.
func (s *Session) CanSubmit() bool {
	return !s.buffer.IsEmpty() && !s.pipeline.Busy()
}

// Submit sends the current draft. An empty draft, or one offered while a
// request is in flight, is ignored and the buffer is left as it was.
func (s *Session) Submit(ctx context.Context) bool {
	if !s.CanSubmit() {
		return false
	}

	s.controller.Stop()
	s.controller.ClearNotice()

	return s.pipeline.Submit(ctx, s.buffer.Take())
}

// Messages returns the transcript in display order.
func (s *Session) Messages() []conversation.Message {
	return s.store.Messages()
}
