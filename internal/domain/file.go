package domain

import "strings"

// FileKind is an optional explicit tag overriding content-type sniffing.
type FileKind string

const (
	FileKindImage    FileKind = "image"
	FileKindAudio    FileKind = "audio"
	FileKindDocument FileKind = "document"
)

// File is a binary attachment referenced by a message. Exactly one of Data
// (base64) or URL must be set before the file is handed to an adapter;
// adapters that only accept inline payloads report RequiresFileDownload and
// the caller must resolve URL into Data first.
type File struct {
	ContentType string   `json:"content_type"`
	Data        string   `json:"data,omitempty"` // base64
	URL         string   `json:"url,omitempty"`
	Kind        FileKind `json:"kind,omitempty"`
}

// IsImage reports whether the file is an image, from the explicit kind tag or
// the content type.
func (f *File) IsImage() bool {
	if f.Kind != "" {
		return f.Kind == FileKindImage
	}
	return strings.HasPrefix(f.ContentType, "image/")
}

// IsAudio reports whether the file is audio.
func (f *File) IsAudio() bool {
	if f.Kind != "" {
		return f.Kind == FileKindAudio
	}
	return strings.HasPrefix(f.ContentType, "audio/")
}

// IsPDF reports whether the file is a PDF document.
func (f *File) IsPDF() bool {
	if f.Kind == FileKindDocument {
		return true
	}
	return f.ContentType == "application/pdf"
}

// Resolved reports whether the file carries usable content.
func (f *File) Resolved() bool {
	return f.Data != "" || f.URL != ""
}

// Validate checks the data-or-URL invariant.
func (f *File) Validate() error {
	if f.Data != "" && f.URL != "" {
		return NewProviderError(CodeInvalidFile, "file must carry either inline data or a URL, not both")
	}
	if !f.Resolved() {
		return NewProviderError(CodeInvalidFile, "file resolves to neither inline data nor a URL")
	}
	return nil
}
