package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kissan-ai/kissan/pkg/media"
)

// Language is the language an advisory should be written in.
type Language string

const (
	LanguageUrdu    Language = "Urdu"
	LanguagePunjabi Language = "Punjabi (Pakistani)"
	LanguageSindhi  Language = "Sindhi"
	LanguagePashto  Language = "Pashto"
	LanguageEnglish Language = "English"
)

// Languages lists the supported target languages in display order.
var Languages = []Language{LanguageUrdu, LanguagePunjabi, LanguageSindhi, LanguagePashto, LanguageEnglish}

// ParseLanguage matches a language by name, case-insensitively. "Punjabi" alone
// is accepted for the Pakistani variant.
func ParseLanguage(s string) (Language, bool) {
	s = strings.TrimSpace(s)
	for _, l := range Languages {
		if strings.EqualFold(string(l), s) {
			return l, true
		}
	}
	if strings.EqualFold(s, "punjabi") {
		return LanguagePunjabi, true
	}
	return "", false
}

// SpeechTag returns the BCP-47 tag used for dictation in this language.
// Punjabi dictation goes through the Urdu recognizer.
func (l Language) SpeechTag() string {
	switch l {
	case LanguageUrdu, LanguagePunjabi:
		return "ur-PK"
	case LanguageSindhi:
		return "sd-PK"
	case LanguagePashto:
		return "ps-PK"
	default:
		return "en-US"
	}
}

// Advisory is the structured success payload of an advisor.
type Advisory struct {
	Language string   `json:"advice_language"`
	Heading  string   `json:"summary_heading"`
	Finding  string   `json:"diagnosis_or_market_finding"`
	Steps    []string `json:"actionable_steps"`
	Strategy string   `json:"long_term_strategy,omitempty"`
}

// Citation is a source link returned alongside an advisory.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AdvisoryRequest struct {
	Text     string
	Image    *media.ContentPart
	Language Language
}

type AdvisoryResponse struct {
	Advisory  Advisory
	Citations []Citation
	Model     string
	Usage     *UsageInfo
}

// Advisor is the remote advisory collaborator.
type Advisor interface {
	Advise(ctx context.Context, req AdvisoryRequest) (*AdvisoryResponse, error)
	Name() string
}

// ErrMissingCredential is wrapped by a ConfigError when no key is configured.
var ErrMissingCredential = errors.New("API key is missing")

// ErrMalformedResponse marks a reply that does not follow the advisory contract.
var ErrMalformedResponse = errors.New("malformed advisory response")

// ConfigError reports a missing or rejected service credential.
type ConfigError struct {
	Provider string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: API key is missing or invalid: %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// advisoryEnvelope is the JSON object advisors are asked to produce.
type advisoryEnvelope struct {
	Advisory
	Sources []Citation `json:"sources"`
}

// ParseAdvisory decodes a model reply into an advisory and its citations.
// Code fences and leading prose around the JSON object are tolerated.
func ParseAdvisory(raw string) (Advisory, []Citation, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return Advisory{}, nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var env advisoryEnvelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return Advisory{}, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(env.Finding) == "" {
		return Advisory{}, nil, fmt.Errorf("%w: missing diagnosis_or_market_finding", ErrMalformedResponse)
	}
	if env.Steps == nil {
		env.Steps = []string{}
	}

	citations := make([]Citation, 0, len(env.Sources))
	for _, c := range env.Sources {
		if strings.TrimSpace(c.URL) == "" {
			continue
		}
		if c.Title == "" {
			c.Title = c.URL
		}
		citations = append(citations, c)
	}
	return env.Advisory, citations, nil
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// systemPrompt instructs the model to answer with the advisory JSON contract.
func systemPrompt(lang Language) string {
	return fmt.Sprintf(`You are Kissan, an agricultural advisor for farmers in Pakistan.
Analyse the farmer's question and any attached crop image. Give practical crop disease,
pest, soil, irrigation or market advice.

Reply with a single JSON object and nothing else:
{
  "advice_language": "%[1]s",
  "summary_heading": "short title",
  "diagnosis_or_market_finding": "what is wrong or what the market shows",
  "actionable_steps": ["step", "..."],
  "long_term_strategy": "optional long-term recommendation",
  "sources": [{"title": "source title", "url": "https://..."}]
}
Write every text field in %[1]s.`, lang)
}
