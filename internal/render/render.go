// Package render turns markdown chat replies into sanitized HTML.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// brokenMarker identifies links produced from missing document references.
const brokenMarker = "undefined"

var (
	brokenLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\([^)]*id=undefined[^)]*\)`)
	undefinedRe    = regexp.MustCompile(`(?i)\bundefined\b`)
	hSpaceRunRe    = regexp.MustCompile(`[ \t]{2,}`)
	blankLineRunRe = regexp.MustCompile(`\n{3,}`)
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithUnsafe(),
		renderer.WithNodeRenderers(util.Prioritized(&linkRenderer{}, 100)),
	),
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^noopener noreferrer$`)).OnElements("a")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Render converts a markdown reply into sanitized HTML. Line breaks inside
// paragraphs are kept, links open in a new tab, and links pointing at
// missing documents are reduced to their text.
func Render(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Preprocess(markdown)), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

// Preprocess cleans artifacts the reply service leaves in its markdown:
// links to missing documents keep only their text, stray "undefined" words
// outside parentheses are removed, and runs of blanks are collapsed.
func Preprocess(s string) string {
	s = brokenLinkRe.ReplaceAllString(s, "$1")
	s = removeStrayUndefined(s)
	s = hSpaceRunRe.ReplaceAllString(s, " ")
	s = blankLineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// removeStrayUndefined drops each "undefined" word unless the next
// parenthesis after it is a closing one, which marks it as part of a URL.
func removeStrayUndefined(s string) string {
	matches := undefinedRe.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if insideParens(s[m[1]:]) {
			continue
		}
		b.WriteString(s[last:m[0]])
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

func insideParens(rest string) bool {
	i := strings.IndexAny(rest, "()")
	return i >= 0 && rest[i] == ')'
}

type linkRenderer struct{}

func (r *linkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
}

func (r *linkRenderer) renderLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Link)
	if !linkable(n.Destination) {
		return ast.WalkContinue, nil
	}
	if !entering {
		_, _ = w.WriteString("</a>")
		return ast.WalkContinue, nil
	}
	writeAnchorOpen(w, n.Destination, n.Title)
	return ast.WalkContinue, nil
}

func (r *linkRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.AutoLink)
	url := n.URL(source)
	label := n.Label(source)
	if n.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower(url), []byte("mailto:")) {
		url = append([]byte("mailto:"), url...)
	}
	if !linkable(url) {
		_, _ = w.Write(util.EscapeHTML(label))
		return ast.WalkContinue, nil
	}
	writeAnchorOpen(w, url, nil)
	_, _ = w.Write(util.EscapeHTML(label))
	_, _ = w.WriteString("</a>")
	return ast.WalkContinue, nil
}

func linkable(dest []byte) bool {
	return !bytes.Contains(dest, []byte(brokenMarker)) && !html.IsDangerousURL(dest)
}

func writeAnchorOpen(w util.BufWriter, dest, title []byte) {
	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(dest, true)))
	_, _ = w.WriteString(`" target="_blank" rel="noopener noreferrer"`)
	if len(title) > 0 {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(title))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
}
