package llm

import (
	"encoding/base64"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
)

// EncodeBase64 returns the standard base64 encoding of b.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// PDFDataURL returns b as a data: URL with the PDF media type.
func PDFDataURL(b []byte) string {
	return "data:" + constants.MimeTypePDF + ";base64," + EncodeBase64(b)
}
