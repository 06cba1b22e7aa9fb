package entity

// SourceFile is a PDF as listed by a file source. It is never persisted.
type SourceFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ModifiedTime string `json:"modifiedTime"` // RFC 3339 text, compared as a string
	MimeType     string `json:"mimeType"`
	Size         *int64 `json:"size,omitempty"`
}
