package local

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/pdf-cost-reports/constants"
)

// isHidden reports dot files and the "~$" lock files editors leave next to open documents.
func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}

// hasPDFExt reports whether path carries one of the accepted extensions.
func hasPDFExt(path string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
