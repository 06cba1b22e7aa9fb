package constants

import "strings"

const (
	// MimeTypePDF is the only MIME type the file sources list.
	MimeTypePDF = "application/pdf"
	ExtPDF      = "pdf"
)

// AllowedExtensions holds the file extensions accepted by the local source.
var AllowedExtensions = map[string]struct{}{
	ExtPDF: {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MaxPDFBytes caps a single download.
const MaxPDFBytes = 32 << 20
