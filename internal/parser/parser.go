package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/kbchat/internal/doctree"
)

// Parser converts raw source document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// Options tunes the parsers returned by ForFile.
type Options struct {
	PDFValidate          bool
	PDFFallbackPdftotext bool
}

// SourceExtensions lists the file extensions that are converted into text extracts.
var SourceExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{Validate: opts.PDFValidate, FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSource reports whether a filename is a convertible source document.
func IsSource(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SourceExtensions[ext]
}

// trimExt drops the extension of a filename, whatever its case.
func trimExt(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
