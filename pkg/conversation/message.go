package conversation

import (
	"time"

	"github.com/kissan-ai/kissan/pkg/providers"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind discriminates the Content union.
type ContentKind int

const (
	KindRawText ContentKind = iota
	KindAdvisory
)

// Content holds either raw text (user input, assistant error) or a
// structured advisory, never both. Use the constructors.
type Content struct {
	Kind     ContentKind
	Text     string
	Advisory *providers.Advisory
}

func TextContent(text string) Content {
	return Content{Kind: KindRawText, Text: text}
}

func AdvisoryContent(a providers.Advisory) Content {
	a.Steps = append([]string(nil), a.Steps...)
	return Content{Kind: KindAdvisory, Advisory: &a}
}

func (c Content) IsAdvisory() bool {
	return c.Kind == KindAdvisory && c.Advisory != nil
}

// Message is one entry of the chat log. ID is assigned by Store.Append.
type Message struct {
	ID        string
	Role      Role
	Content   Content
	Image     string // data: URL, user messages only
	Pending   bool
	Citations []providers.Citation
	CreatedAt time.Time
}

// NewUserMessage builds a user message; image is an optional data URL.
func NewUserMessage(text, image string) Message {
	return Message{Role: RoleUser, Content: TextContent(text), Image: image}
}

// NewPlaceholder builds the pending assistant entry that a submission
// appends before the remote call is made.
func NewPlaceholder() Message {
	return Message{Role: RoleAssistant, Content: TextContent(""), Pending: true}
}

// clone copies the slices a mutator could otherwise share with the stored entry.
func (m Message) clone() Message {
	if m.Citations != nil {
		m.Citations = append([]providers.Citation(nil), m.Citations...)
	}
	if m.Content.Advisory != nil {
		a := *m.Content.Advisory
		a.Steps = append([]string(nil), a.Steps...)
		m.Content.Advisory = &a
	}
	return m
}
