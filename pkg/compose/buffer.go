package compose

import (
	"fmt"
	"os"
	"strings"
)

// Draft is a snapshot of the composition buffer taken at submit time.
// ImagePath is the attached file; it is read only when the draft is submitted.
type Draft struct {
	Text      string
	ImagePath string
}

// IsEmpty reports whether the draft has neither visible text nor an image.
func (d Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == "" && d.ImagePath == ""
}

// Buffer is the single mutable draft shared by typing and dictation.
// It is owned by the event loop and not safe for concurrent use.
type Buffer struct {
	text      string
	imagePath string
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Text() string {
	return b.text
}

func (b *Buffer) SetText(text string) {
	b.text = text
}

// AppendTranscript joins a final dictation fragment onto the draft text.
// Existing text is trimmed and separated from the fragment by one space;
// blank text is replaced by the fragment.
func (b *Buffer) AppendTranscript(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	if trimmed := strings.TrimSpace(b.text); trimmed != "" {
		b.text = trimmed + " " + fragment
		return
	}
	b.text = fragment
}

// AttachImage selects an image file, replacing any earlier selection.
func (b *Buffer) AttachImage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("attach image: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("attach image: %s is a directory", path)
	}
	b.imagePath = path
	return nil
}

func (b *Buffer) RemoveImage() {
	b.imagePath = ""
}

func (b *Buffer) ImagePath() string {
	return b.imagePath
}

func (b *Buffer) IsEmpty() bool {
	return b.Snapshot().IsEmpty()
}

func (b *Buffer) Snapshot() Draft {
	return Draft{Text: b.text, ImagePath: b.imagePath}
}

// Take returns the current draft and clears the buffer.
func (b *Buffer) Take() Draft {
	d := b.Snapshot()
	b.text = ""
	b.imagePath = ""
	return d
}
