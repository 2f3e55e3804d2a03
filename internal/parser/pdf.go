package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/dgallion1/kbchat/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser handles PDF files. Every page becomes one node, in page order,
// whose text is the page's text fragments joined by a single space.
// It tries the Go library first, then falls back to pdftotext if enabled.
type PDFParser struct {
	Validate          bool
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}

	if p.Validate {
		if err := validatePDF(data); err != nil {
			return nil, fmt.Errorf("validate pdf: %w", err)
		}
	}

	pages, err := extractPDFPages(data)
	if err != nil && p.FallbackPdftotext {
		pages, err = extractPdftotext(data)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	tree := &doctree.DocTree{Title: trimExt(filename)}
	for i, page := range pages {
		tree.Children = append(tree.Children, &doctree.DocNode{
			Text: page,
			Page: i + 1,
		})
	}
	return tree, nil
}

var disableConfigDir sync.Once

// validatePDF runs pdfcpu's relaxed structural validation.
func validatePDF(data []byte) error {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.Validate(bytes.NewReader(data), conf)
}

// extractPDFPages reads each page's plain text. Lines become fragments
// joined by a single space. The pdf library panics on some malformed
// inputs, so panics are turned into errors.
func extractPDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, joinLines(text))
	}
	return pages, nil
}

func extractPdftotext(data []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "kbchat-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-layout", tmpPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPdftotextPages(string(out)), nil
}

// splitPdftotextPages splits pdftotext output on form feeds into pages.
func splitPdftotextPages(text string) []string {
	raw := strings.Split(text, "\f")
	// pdftotext terminates every page, including the last, with a form feed.
	if len(raw) > 0 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}
	pages := make([]string, 0, len(raw))
	for _, page := range raw {
		pages = append(pages, joinLines(page))
	}
	return pages
}

// joinLines treats each non-blank line as a fragment, collapses its inner
// whitespace, and joins the fragments with a single space.
func joinLines(text string) string {
	var fragments []string
	for _, line := range strings.Split(text, "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			fragments = append(fragments, strings.Join(fields, " "))
		}
	}
	return strings.Join(fragments, " ")
}
