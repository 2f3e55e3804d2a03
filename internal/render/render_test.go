package render

import (
	"strings"
	"testing"
)

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"broken link keeps text", "See [Panduan](https://kb.local/doc?id=undefined) now", "See Panduan now"},
		{"stray undefined removed", "hello undefined world", "hello world"},
		{"case insensitive", "Undefined value", "value"},
		{"undefined inside parens kept", "link (https://a/undefined/x) ok undefined", "link (https://a/undefined/x) ok"},
		{"word boundary", "undefinedness stays", "undefinedness stays"},
		{"horizontal runs collapse", "a \t  b", "a b"},
		{"newline runs collapse", "a\n\n\n\nb", "a\n\nb"},
		{"single newlines kept", "a\nb", "a\nb"},
		{"trimmed", "  \n hi \n ", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Preprocess(tt.in); got != tt.want {
				t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		contains    []string
		notContains []string
	}{
		{
			name:     "emphasis",
			in:       "**bold** text",
			contains: []string{"<strong>bold</strong>"},
		},
		{
			name:     "hard line breaks",
			in:       "line one\nline two",
			contains: []string{"line one<br", "line two"},
		},
		{
			name:        "links open in new tab",
			in:          "[Docs](https://example.com/docs)",
			contains:    []string{`href="https://example.com/docs"`, `target="_blank" rel="noopener noreferrer"`, ">Docs</a>"},
			notContains: []string{"nofollow"},
		},
		{
			name:        "autolinks carry the same rel",
			in:          "see https://example.com/faq",
			contains:    []string{`href="https://example.com/faq"`, `rel="noopener noreferrer"`},
			notContains: []string{"nofollow"},
		},
		{
			name:        "broken link rendered as text",
			in:          "[Bad](https://example.com/undefined/page)",
			contains:    []string{"Bad"},
			notContains: []string{"<a", "undefined"},
		},
		{
			name:        "javascript link rendered as text",
			in:          "[x](javascript:alert(1))",
			notContains: []string{"javascript:", "<a"},
		},
		{
			name:        "script stripped",
			in:          "<script>alert(1)</script>\n\nhi",
			contains:    []string{"hi"},
			notContains: []string{"<script", "alert(1)"},
		},
		{
			name:     "gfm table",
			in:       "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "bare url autolinked",
			in:       "visit https://example.com today",
			contains: []string{`href="https://example.com"`, `target="_blank"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.in)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("output missing %q:\n%s", want, got)
				}
			}
			for _, bad := range tt.notContains {
				if strings.Contains(got, bad) {
					t.Errorf("output unexpectedly contains %q:\n%s", bad, got)
				}
			}
		})
	}
}

func TestRenderEmpty(t *testing.T) {
	got, err := Render("   ")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestTerminal(t *testing.T) {
	got := Terminal("Halo undefined [doc](https://kb.local/x?id=undefined)", "notty", 80)
	if !strings.Contains(got, "Halo") || !strings.Contains(got, "doc") {
		t.Fatalf("unexpected output %q", got)
	}
	if strings.Contains(got, "undefined") {
		t.Fatalf("broken reference kept: %q", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("trailing newline kept: %q", got)
	}
}
