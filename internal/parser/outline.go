package parser

import (
	"strings"

	"github.com/dgallion1/kbchat/internal/doctree"
)

// outline builds a heading hierarchy from a flat stream of headings and
// paragraphs. Paragraph text accumulates under the most recent heading.
type outline struct {
	title string
	root  *doctree.DocNode
	stack []outlineLevel
	buf   strings.Builder
}

type outlineLevel struct {
	node  *doctree.DocNode
	level int
}

func newOutline(title string) *outline {
	root := &doctree.DocNode{}
	return &outline{
		title: title,
		root:  root,
		stack: []outlineLevel{{node: root, level: 0}},
	}
}

// heading opens a section at level (1 = top). Sections at the same or a
// deeper level are closed first.
func (o *outline) heading(level int, title string) {
	o.flush()
	node := &doctree.DocNode{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, node)
	o.stack = append(o.stack, outlineLevel{node: node, level: level})
}

func (o *outline) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if o.buf.Len() > 0 {
		o.buf.WriteString("\n\n")
	}
	o.buf.WriteString(text)
}

func (o *outline) flush() {
	t := strings.TrimSpace(o.buf.String())
	o.buf.Reset()
	if t == "" {
		return
	}
	top := o.stack[len(o.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// tree closes the outline. Text before the first heading becomes the first child.
func (o *outline) tree() *doctree.DocTree {
	o.flush()
	t := &doctree.DocTree{Title: o.title}
	if o.root.Text != "" {
		t.Children = append(t.Children, &doctree.DocNode{Text: o.root.Text})
	}
	t.Children = append(t.Children, o.root.Children...)
	return t
}
