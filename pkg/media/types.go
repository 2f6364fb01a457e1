package media

// ContentPart represents a single part of a multimodal message.
// Used to pass an encoded image from the composer to the advisors
// without circular imports.
type ContentPart struct {
	Type      string `json:"type"`       // "image"
	MediaType string `json:"media_type"` // MIME type, e.g. "image/jpeg"
	Data      string `json:"data"`       // base64-encoded image data
	FileName  string `json:"file_name"`  // original filename
}

// DataURL returns the part as a data: URL, the form the chat log keeps
// for user images and the form OpenAI-compatible APIs accept.
func (p *ContentPart) DataURL() string {
	if p == nil || p.Type != "image" {
		return ""
	}
	return "data:" + p.MediaType + ";base64," + p.Data
}
