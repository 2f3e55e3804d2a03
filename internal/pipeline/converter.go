package pipeline

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/kbchat/internal/doctree"
	"github.com/dgallion1/kbchat/internal/parser"
)

// Outcome is the per-document result of a conversion attempt.
type Outcome string

const (
	OutcomeConverted Outcome = "converted"
	OutcomeUnchanged Outcome = "unchanged" // extract already present
	OutcomeSkipped   Outcome = "skipped"   // empty source
	OutcomeFailed    Outcome = "failed"    // unreadable or unparseable source
)

// DocumentResult records what happened to one source document.
type DocumentResult struct {
	Source  string  `json:"source"`
	Extract string  `json:"extract"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// ParserFunc picks the parser for a source filename.
type ParserFunc func(filename string) (parser.Parser, error)

// Converter turns one source document into its text extract. It never
// returns an error: failures are logged and reported in the result.
type Converter struct {
	parserFor      ParserFunc
	reconvertStale bool
}

func NewConverter(parserFor ParserFunc, reconvertStale bool) *Converter {
	return &Converter{parserFor: parserFor, reconvertStale: reconvertStale}
}

// ExtractName derives the extract filename from a source filename by
// swapping its extension for .txt.
func ExtractName(source string) string {
	return source[:len(source)-len(filepath.Ext(source))] + ExtractSuffix
}

// Convert writes the extract for srcPath to dstPath unless one already exists.
func (c *Converter) Convert(log *slog.Logger, srcPath, dstPath string) DocumentResult {
	res := DocumentResult{
		Source:  filepath.Base(srcPath),
		Extract: filepath.Base(dstPath),
	}
	log = log.With("document", res.Source)

	if dst, err := os.Stat(dstPath); err == nil {
		if !c.reconvertStale || !isStale(srcPath, dst.ModTime().UnixNano()) {
			res.Outcome = OutcomeUnchanged
			return res
		}
		log.Info("source newer than extract, reconverting")
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		log.Error("failed to read document", "error", err)
		return failed(res, err)
	}
	if len(data) == 0 {
		log.Warn("skipping empty document")
		res.Outcome = OutcomeSkipped
		return res
	}

	text, err := c.extract(data, res.Source)
	if err != nil {
		log.Error("failed to convert document", "error", err)
		return failed(res, err)
	}

	if err := writeFileAtomic(dstPath, []byte(text)); err != nil {
		log.Error("failed to write extract", "extract", res.Extract, "error", err)
		return failed(res, err)
	}

	log.Info("converted document", "extract", res.Extract, "bytes", len(text))
	res.Outcome = OutcomeConverted
	return res
}

// extract parses data and flattens it to trimmed plain text. Parser panics
// are reported as errors.
func (c *Converter) extract(data []byte, name string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	p, err := c.parserFor(name)
	if err != nil {
		return "", err
	}
	tree, err := p.Parse(bytes.NewReader(data), name)
	if err != nil {
		return "", err
	}
	return doctree.Flatten(tree), nil
}

func isStale(srcPath string, extractModNano int64) bool {
	src, err := os.Stat(srcPath)
	if err != nil {
		return false
	}
	return src.ModTime().UnixNano() > extractModNano
}

func failed(res DocumentResult, err error) DocumentResult {
	res.Outcome = OutcomeFailed
	res.Error = err.Error()
	return res
}
