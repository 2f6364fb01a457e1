package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os/exec"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kissan-ai/kissan/pkg/logger"
)

const (
	audioChunkSize = 8000
	eofMessage     = `{"eof" : 1}`
	drainTimeout   = 5 * time.Second
	handoffTimeout = 2 * time.Second
)

// serverResult is a message from a Vosk-style streaming server.
type serverResult struct {
	Partial *string `json:"partial"`
	Text    *string `json:"text"`
}

// WSRecognizer streams raw PCM audio to a Vosk-compatible websocket server.
// Sessions are single-utterance: the first non-empty final result ends them.
type WSRecognizer struct {
	URL        string
	SampleRate int
	// OpenAudio returns a stream of 16-bit mono PCM. Closing it releases
	// the capture device.
	OpenAudio func(ctx context.Context) (io.ReadCloser, error)

	dialer *websocket.Dialer
	mu     sync.Mutex
	active *wsSession
}

type wsSession struct {
	stop     chan struct{}
	once     sync.Once
	mu       sync.Mutex
	byUser   bool
	finished chan struct{}
}

func (s *wsSession) halt(byUser bool) {
	s.mu.Lock()
	if byUser {
		s.byUser = true
	}
	s.mu.Unlock()
	s.once.Do(func() { close(s.stop) })
}

func (s *wsSession) stoppedByUser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byUser
}

func (s *wsSession) halted() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// NewWSRecognizer creates a recognizer that captures audio by running
// captureCmd and reading its stdout. With no usable capture command the
// recognizer reports itself unsupported.
func NewWSRecognizer(serverURL string, captureCmd []string, sampleRate int) *WSRecognizer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	r := &WSRecognizer{
		URL:        serverURL,
		SampleRate: sampleRate,
		dialer:     &websocket.Dialer{HandshakeTimeout: 8 * time.Second},
	}
	if len(captureCmd) > 0 {
		if _, err := exec.LookPath(captureCmd[0]); err == nil {
			r.OpenAudio = commandAudio(captureCmd)
		}
	}
	return r
}

func (r *WSRecognizer) Supported() bool {
	return r.URL != "" && r.OpenAudio != nil
}

// Start begins a session in the background. Failures are reported through
// the sink, followed by End. A session still winding down is stopped and
// waited for.
func (r *WSRecognizer) Start(ctx context.Context, languageTag string, sink Sink) error {
	if !r.Supported() {
		return fmt.Errorf("speech recognition not supported")
	}

	r.mu.Lock()
	prev := r.active
	r.mu.Unlock()
	if prev != nil {
		// A quick re-toggle can land while the last session is still
		// draining; let it finish first.
		prev.halt(true)
		select {
		case <-prev.finished:
		case <-time.After(handoffTimeout):
			return fmt.Errorf("previous recognition did not finish")
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return fmt.Errorf("recognition already running")
	}
	sess := &wsSession{stop: make(chan struct{}), finished: make(chan struct{})}
	r.active = sess
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			if r.active == sess {
				r.active = nil
			}
			r.mu.Unlock()
			sink.End()
			close(sess.finished)
		}()
		if code := r.run(ctx, languageTag, sess, sink); code != "" {
			sink.Error(code)
		}
	}()
	return nil
}

// Stop asks the server to finalize the current utterance. The last final
// result, if any, is still delivered.
func (r *WSRecognizer) Stop() {
	r.mu.Lock()
	sess := r.active
	r.mu.Unlock()
	if sess != nil {
		sess.halt(true)
	}
}

func (r *WSRecognizer) run(ctx context.Context, languageTag string, sess *wsSession, sink Sink) ErrorCode {
	audio, err := r.OpenAudio(ctx)
	if err != nil {
		logger.ErrorCF("speech", "Failed to open audio capture", map[string]interface{}{"error": err.Error()})
		if errors.Is(err, fs.ErrPermission) {
			return ErrNotAllowed
		}
		return ErrAudioCapture
	}
	defer audio.Close()

	conn, _, err := r.dialer.DialContext(ctx, r.sessionURL(languageTag), nil)
	if err != nil {
		logger.ErrorCF("speech", "Failed to connect to speech server", map[string]interface{}{
			"url":   r.URL,
			"error": err.Error(),
		})
		return ErrNetwork
	}
	defer conn.Close()
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer stopClose()

	config := map[string]interface{}{"config": map[string]interface{}{"sample_rate": r.SampleRate}}
	if err := conn.WriteJSON(config); err != nil {
		return ErrNetwork
	}

	readerDone := make(chan struct{})
	defer close(readerDone)
	go pumpAudio(conn, audio, sess, readerDone)

	heard := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ErrAborted
			}
			if !sess.halted() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.WarnCF("speech", "Speech server connection lost", map[string]interface{}{"error": err.Error()})
				return ErrNetwork
			}
			break
		}

		var res serverResult
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		switch {
		case res.Text != nil:
			if *res.Text == "" {
				continue
			}
			heard = true
			sink.Result(Fragment{Final: true, Text: *res.Text})
			sess.halt(false)
			conn.SetReadDeadline(time.Now().Add(drainTimeout))
		case res.Partial != nil && *res.Partial != "":
			sink.Result(Fragment{Final: false, Text: *res.Partial})
		}

		if sess.halted() {
			conn.SetReadDeadline(time.Now().Add(drainTimeout))
		}
	}

	if !heard && !sess.stoppedByUser() {
		return ErrNoSpeech
	}
	return ""
}

func (r *WSRecognizer) sessionURL(languageTag string) string {
	u, err := url.Parse(r.URL)
	if err != nil || languageTag == "" {
		return r.URL
	}
	q := u.Query()
	q.Set("lang", languageTag)
	u.RawQuery = q.Encode()
	return u.String()
}

// pumpAudio is the only writer on conn after the config message.
func pumpAudio(conn *websocket.Conn, audio io.Reader, sess *wsSession, readerDone <-chan struct{}) {
	buf := make([]byte, audioChunkSize)
	for {
		select {
		case <-sess.stop:
			conn.WriteMessage(websocket.TextMessage, []byte(eofMessage))
			return
		case <-readerDone:
			return
		default:
		}

		n, err := audio.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte(eofMessage))
			// Keep the session open until the server answers the eof.
			sess.halt(false)
			return
		}
	}
}

// commandAudio runs the capture command and streams its stdout.
func commandAudio(argv []string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("capture stdout: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", argv[0], err)
		}
		return &processReader{ReadCloser: stdout, cmd: cmd}, nil
	}
}

type processReader struct {
	io.ReadCloser
	cmd  *exec.Cmd
	once sync.Once
}

func (p *processReader) Close() error {
	p.once.Do(func() {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		p.cmd.Wait()
	})
	return nil
}
