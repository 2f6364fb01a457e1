package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// recordingSink collects recognizer events and signals End.
type recordingSink struct {
	mu        sync.Mutex
	fragments []Fragment
	errors    []ErrorCode
	ended     chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ended: make(chan struct{})}
}

func (s *recordingSink) Result(f Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fragments = append(s.fragments, f)
}

func (s *recordingSink) Error(code ErrorCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, code)
}

func (s *recordingSink) End() { close(s.ended) }

func (s *recordingSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.ended:
	case <-time.After(3 * time.Second):
		t.Fatal("recognizer session did not end")
	}
}

// capture records what a fake speech server received.
type capture struct {
	mu    sync.Mutex
	audio bytes.Buffer
	query string
}

func (c *capture) snapshot() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio.String(), c.query
}

// voskServer mimics a streaming speech server. After the client's eof it
// sends the given replies and closes.
func voskServer(t *testing.T, replies []string) (*httptest.Server, *capture) {
	upgrader := websocket.Upgrader{}
	got := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.mu.Lock()
		got.query = r.URL.RawQuery
		got.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var cfg map[string]map[string]int
		if err := conn.ReadJSON(&cfg); err != nil || cfg["config"]["sample_rate"] != 16000 {
			t.Errorf("Expected config message with sample_rate, got %v (%v)", cfg, err)
			return
		}

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				got.mu.Lock()
				got.audio.Write(data)
				got.mu.Unlock()
				continue
			}
			if strings.Contains(string(data), "eof") {
				break
			}
		}

		for _, reply := range replies {
			conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	return srv, got
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func staticAudio(data []byte) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func TestWSRecognizer_PartialThenFinal(t *testing.T) {
	srv, got := voskServer(t, []string{`{"partial" : "good"}`, `{"text" : "good morning"}`})
	defer srv.Close()

	r := NewWSRecognizer(wsURL(srv), nil, 16000)
	r.OpenAudio = staticAudio([]byte("pcm-samples"))

	sink := newRecordingSink()
	if err := r.Start(context.Background(), "en-US", sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.errors) != 0 {
		t.Errorf("Unexpected errors %v", sink.errors)
	}
	if len(sink.fragments) != 2 {
		t.Fatalf("Expected 2 fragments, got %+v", sink.fragments)
	}
	if sink.fragments[0].Final || sink.fragments[0].Text != "good" {
		t.Errorf("Expected interim 'good', got %+v", sink.fragments[0])
	}
	if !sink.fragments[1].Final || sink.fragments[1].Text != "good morning" {
		t.Errorf("Expected final 'good morning', got %+v", sink.fragments[1])
	}
	audio, query := got.snapshot()
	if audio != "pcm-samples" {
		t.Errorf("Server received %q", audio)
	}
	if query != "lang=en-US" {
		t.Errorf("Expected language tag in query, got %q", query)
	}
}

func TestWSRecognizer_NoSpeech(t *testing.T) {
	srv, _ := voskServer(t, []string{`{"text" : ""}`})
	defer srv.Close()

	r := NewWSRecognizer(wsURL(srv), nil, 16000)
	r.OpenAudio = staticAudio([]byte("silence"))

	sink := newRecordingSink()
	r.Start(context.Background(), "ur-PK", sink)
	sink.wait(t)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.errors) != 1 || sink.errors[0] != ErrNoSpeech {
		t.Errorf("Expected no-speech error, got %v", sink.errors)
	}
	if len(sink.fragments) != 0 {
		t.Errorf("Expected no fragments, got %+v", sink.fragments)
	}
}

func TestWSRecognizer_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	r := NewWSRecognizer(url, nil, 16000)
	r.OpenAudio = staticAudio(nil)

	sink := newRecordingSink()
	r.Start(context.Background(), "en-US", sink)
	sink.wait(t)

	if len(sink.errors) != 1 || sink.errors[0] != ErrNetwork {
		t.Errorf("Expected network error, got %v", sink.errors)
	}
}

func TestWSRecognizer_CapturePermissionDenied(t *testing.T) {
	r := NewWSRecognizer("ws://127.0.0.1:1", nil, 16000)
	r.OpenAudio = func(ctx context.Context) (io.ReadCloser, error) {
		return nil, &fs.PathError{Op: "open", Path: "/dev/snd/pcmC0D0c", Err: fs.ErrPermission}
	}

	sink := newRecordingSink()
	r.Start(context.Background(), "en-US", sink)
	sink.wait(t)

	if len(sink.errors) != 1 || sink.errors[0] != ErrNotAllowed {
		t.Errorf("Expected not-allowed error, got %v", sink.errors)
	}
}

func TestWSRecognizer_Supported(t *testing.T) {
	r := NewWSRecognizer("ws://localhost:2700", []string{"definitely-not-a-real-capture-tool"}, 0)
	if r.Supported() {
		t.Error("Recognizer without a capture tool must be unsupported")
	}
	if r.SampleRate != 16000 {
		t.Errorf("Expected default sample rate, got %d", r.SampleRate)
	}
	if err := r.Start(context.Background(), "en-US", newRecordingSink()); err == nil {
		t.Error("Expected Start to fail when unsupported")
	}

	r.OpenAudio = staticAudio(nil)
	if !r.Supported() {
		t.Error("Expected recognizer with audio and URL to be supported")
	}
}

func TestServerResult_Decoding(t *testing.T) {
	var res serverResult
	json.Unmarshal([]byte(`{"partial": ""}`), &res)
	if res.Partial == nil || res.Text != nil {
		t.Errorf("Unexpected decode %+v", res)
	}
}

// slowAudio yields a few small chunks with a pause between them, like a
// live capture device.
type slowAudio struct {
	chunks int
}

func (a *slowAudio) Read(p []byte) (int, error) {
	if a.chunks == 0 {
		return 0, io.EOF
	}
	a.chunks--
	time.Sleep(20 * time.Millisecond)
	return copy(p, "pcm"), nil
}

func (a *slowAudio) Close() error { return nil }

func TestWSRecognizer_RestartWhileDraining(t *testing.T) {
	srv, _ := voskServer(t, []string{`{"text" : ""}`})
	defer srv.Close()

	r := NewWSRecognizer(wsURL(srv), nil, 16000)
	r.OpenAudio = func(ctx context.Context) (io.ReadCloser, error) {
		return &slowAudio{chunks: 10}, nil
	}

	first := newRecordingSink()
	if err := r.Start(context.Background(), "en-US", first); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	r.Stop()

	second := newRecordingSink()
	if err := r.Start(context.Background(), "en-US", second); err != nil {
		t.Fatalf("Start right after Stop should wait for the old session, got %v", err)
	}
	select {
	case <-first.ended:
	default:
		t.Error("Expected the first session to have ended before the second started")
	}
	second.wait(t)

	first.mu.Lock()
	defer first.mu.Unlock()
	if len(first.errors) != 0 {
		t.Errorf("User-stopped session must not report an error, got %v", first.errors)
	}
}
