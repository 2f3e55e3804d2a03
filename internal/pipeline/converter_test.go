package pipeline

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractName(t *testing.T) {
	tests := map[string]string{
		"guide.pdf":         "guide.txt",
		"Guide.PDF":         "Guide.txt",
		"annual.report.pdf": "annual.report.txt",
		"memo.docx":         "memo.txt",
		"no-extension":      "no-extension.txt",
		"already.pdf.pdf":   "already.pdf.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtractName(in), in)
	}
}

func TestConverter_MissingSource(t *testing.T) {
	dir := t.TempDir()
	c := NewConverter(fakeParserFor, false)

	res := c.Convert(slog.New(slog.NewTextHandler(io.Discard, nil)),
		filepath.Join(dir, "gone.pdf"), filepath.Join(dir, "gone.txt"))

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, "gone.pdf", res.Source)
	assert.Equal(t, "gone.txt", res.Extract)
}

func TestConverter_TrimsExtract(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pad.pdf"), []byte("%FAKE\n\f  padded  \f"), 0o644))
	c := NewConverter(fakeParserFor, false)

	res := c.Convert(slog.New(slog.NewTextHandler(io.Discard, nil)),
		filepath.Join(dir, "pad.pdf"), filepath.Join(dir, "pad.txt"))
	require.Equal(t, OutcomeConverted, res.Outcome)

	data, err := os.ReadFile(filepath.Join(dir, "pad.txt"))
	require.NoError(t, err)
	assert.Equal(t, "padded", string(data))

	info, err := os.Stat(filepath.Join(dir, "pad.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}
