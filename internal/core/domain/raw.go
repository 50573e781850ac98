package domain

// RawDocument is a file's bytes before text extraction.
type RawDocument struct {
	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata carries caller-supplied key-value pairs such as a title.
	Metadata map[string]any
}
