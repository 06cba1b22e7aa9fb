package pdftext

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePDF(t *testing.T) {
	assert.True(t, LooksLikePDF([]byte("%PDF-1.7\n...")))
	assert.False(t, LooksLikePDF([]byte("hello")))
	assert.False(t, LooksLikePDF(nil))
}

func TestExtract_RejectsNonPDF(t *testing.T) {
	_, err := Extract([]byte("plain text, not a pdf"), 0)
	assert.True(t, errors.Is(err, ErrNotPDF))
}

func TestExtract_TruncatedPDFReturnsError(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4\n%garbage without xref"), 0)
	assert.Error(t, err)
}
