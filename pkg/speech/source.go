package speech

import (
	"context"

	"github.com/kissan-ai/kissan/pkg/providers"
)

// ErrorCode is the terminal error vocabulary of a recognizer.
type ErrorCode string

const (
	ErrNotAllowed   ErrorCode = "not-allowed"
	ErrNoSpeech     ErrorCode = "no-speech"
	ErrNetwork      ErrorCode = "network"
	ErrAudioCapture ErrorCode = "audio-capture"
	ErrAborted      ErrorCode = "aborted"
)

// Fragment is one recognition result. Interim fragments may still change.
type Fragment struct {
	Final bool
	Text  string
}

// Sink receives recognizer events. Implementations may be called from any
// goroutine. Error is terminal; End is always delivered last.
type Sink interface {
	Result(f Fragment)
	Error(code ErrorCode)
	End()
}

// Recognizer is a platform speech-to-text capability.
type Recognizer interface {
	Supported() bool
	Start(ctx context.Context, languageTag string, sink Sink) error
	Stop()
}

// NoticeText is the short message shown for a recognizer error.
func NoticeText(lang providers.Language, code ErrorCode) string {
	switch code {
	case ErrNotAllowed:
		if lang == providers.LanguageEnglish {
			return "Microphone access denied. Please enable permissions."
		}
		return "مائیکروفون کی اجازت نہیں دی گئی۔"
	case ErrNetwork:
		return "Network error."
	default:
		return "Error: " + string(code)
	}
}
