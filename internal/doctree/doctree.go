package doctree

import "strings"

// DocTree is the root of a parsed source document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Pages for paged formats, top-level sections otherwise
}

// DocNode is a recursive section or page in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for pages and leaf text)
	Text     string     // Text content of this node (may be empty)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Flatten renders the tree as plain text. Units are emitted in document order
// and separated by a blank line; the result is trimmed.
//
// A paged node (Page > 0) always contributes a unit, even when its text is
// empty, so blank pages still leave their separator behind.
func Flatten(tree *DocTree) string {
	if tree == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Page > 0 {
				sb.WriteString(n.Text)
				sb.WriteString("\n\n")
			} else {
				if n.Title != "" {
					sb.WriteString(n.Title)
					sb.WriteString("\n\n")
				}
				if n.Text != "" {
					sb.WriteString(n.Text)
					sb.WriteString("\n\n")
				}
			}
			walk(n.Children)
		}
	}
	walk(tree.Children)
	return strings.TrimSpace(sb.String())
}
