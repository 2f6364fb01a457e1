package speech

import (
	"context"
	"time"

	"github.com/kissan-ai/kissan/pkg/bus"
	"github.com/kissan-ai/kissan/pkg/compose"
	"github.com/kissan-ai/kissan/pkg/logger"
	"github.com/kissan-ai/kissan/pkg/providers"
	"github.com/kissan-ai/kissan/pkg/utils"
)

const DefaultNoticeDuration = 4 * time.Second

// Controller feeds dictation into the composition buffer. Recognizer
// callbacks are re-posted onto the loop, so all state below is touched
// only by the loop goroutine.
type Controller struct {
	loop           *bus.Loop
	recognizer     Recognizer
	buffer         *compose.Buffer
	noticeDuration time.Duration

	listening bool
	language  providers.Language
	session   uint64
	cancel    context.CancelFunc

	notice    string
	noticeGen uint64

	onListening  func(bool)
	onNotice     func(string)
	onTranscript func(string)
}

func NewController(loop *bus.Loop, recognizer Recognizer, buffer *compose.Buffer, noticeDuration time.Duration) *Controller {
	if noticeDuration <= 0 {
		noticeDuration = DefaultNoticeDuration
	}
	return &Controller{
		loop:           loop,
		recognizer:     recognizer,
		buffer:         buffer,
		noticeDuration: noticeDuration,
	}
}

func (c *Controller) Supported() bool {
	return c.recognizer != nil && c.recognizer.Supported()
}

func (c *Controller) Listening() bool {
	return c.listening
}

// Notice returns the visible error notice, or "".
func (c *Controller) Notice() string {
	return c.notice
}

func (c *Controller) OnListening(fn func(bool)) {
	c.onListening = fn
}

// OnNotice is called with the notice text when one appears and with ""
// when it is dismissed.
func (c *Controller) OnNotice(fn func(string)) {
	c.onNotice = fn
}

// OnTranscript is called with the buffer text after each committed fragment.
func (c *Controller) OnTranscript(fn func(string)) {
	c.onTranscript = fn
}

// Toggle starts a session, or stops the current one when already listening.
// Starting on an unsupported recognizer does nothing.
func (c *Controller) Toggle(ctx context.Context, lang providers.Language) {
	c.ClearNotice()

	if c.listening {
		c.Stop()
		return
	}
	if !c.Supported() {
		return
	}

	c.session++
	sess := c.session
	sctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.language = lang
	c.setListening(true)

	if err := c.recognizer.Start(sctx, lang.SpeechTag(), &sessionSink{c: c, session: sess}); err != nil {
		logger.ErrorCF("speech", "Failed to start recognition", map[string]interface{}{
			"error": err.Error(),
		})
		c.endSession()
		c.showNotice(NoticeText(lang, ErrAborted))
	}
}

// Stop ends the current session. Results still in flight from it are
// discarded.
func (c *Controller) Stop() {
	if !c.listening {
		return
	}
	c.recognizer.Stop()
	c.endSession()
}

// ClearNotice dismisses the notice immediately.
func (c *Controller) ClearNotice() {
	if c.notice == "" {
		return
	}
	c.noticeGen++
	c.notice = ""
	if c.onNotice != nil {
		c.onNotice("")
	}
}

func (c *Controller) endSession() {
	c.session++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.setListening(false)
}

func (c *Controller) setListening(v bool) {
	if c.listening == v {
		return
	}
	c.listening = v
	if c.onListening != nil {
		c.onListening(v)
	}
}

func (c *Controller) current(session uint64) bool {
	return c.listening && session == c.session
}

func (c *Controller) handleResult(session uint64, f Fragment) {
	if !c.current(session) || !f.Final {
		return
	}
	c.buffer.AppendTranscript(f.Text)
	logger.DebugCF("speech", "Transcript committed", map[string]interface{}{
		"fragment": utils.Truncate(f.Text, 60),
	})
	if c.onTranscript != nil {
		c.onTranscript(c.buffer.Text())
	}
}

func (c *Controller) handleError(session uint64, code ErrorCode) {
	if !c.current(session) {
		return
	}
	logger.WarnCF("speech", "Speech recognition error", map[string]interface{}{
		"error": string(code),
	})
	c.endSession()

	if code == ErrNoSpeech {
		return
	}
	c.showNotice(NoticeText(c.language, code))
}

func (c *Controller) handleEnd(session uint64) {
	if !c.current(session) {
		return
	}
	c.endSession()
}

func (c *Controller) showNotice(text string) {
	c.noticeGen++
	gen := c.noticeGen
	c.notice = text
	if c.onNotice != nil {
		c.onNotice(text)
	}

	time.AfterFunc(c.noticeDuration, func() {
		c.loop.Post(func() {
			if c.noticeGen != gen {
				return
			}
			c.notice = ""
			if c.onNotice != nil {
				c.onNotice("")
			}
		})
	})
}

// sessionSink tags recognizer callbacks with the session that produced them.
type sessionSink struct {
	c       *Controller
	session uint64
}

func (s *sessionSink) Result(f Fragment) {
	s.c.loop.Post(func() { s.c.handleResult(s.session, f) })
}

func (s *sessionSink) Error(code ErrorCode) {
	s.c.loop.Post(func() { s.c.handleError(s.session, code) })
}

func (s *sessionSink) End() {
	s.c.loop.Post(func() { s.c.handleEnd(s.session) })
}
