// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BuiltinSupports reports whether the builtin converter handles dialect.
func BuiltinSupports(dialect string) bool {
	switch dialect {
	case "markdown", "gfm", "commonmark", "markdown_strict":
		return true
	}
	return false
}

// BuiltinConverter converts between markdown and HTML in-process: goldmark
// renders markdown, and a walk over the parsed HTML tree writes markdown
// back. It covers the elements the remote note editor produces.
type BuiltinConverter struct {
	md goldmark.Markdown
}

// NewBuiltinConverter returns a converter with GitHub-flavored markdown
// extensions enabled.
func NewBuiltinConverter() *BuiltinConverter {
	return &BuiltinConverter{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Convert handles html to markdown and markdown to html.
func (b *BuiltinConverter) Convert(_ context.Context, text, from, to string) (string, error) {
	switch {
	case BuiltinSupports(from) && to == FormatHTML:
		var out bytes.Buffer
		if err := b.md.Convert([]byte(text), &out); err != nil {
			return "", fmt.Errorf("rendering markdown: %w", err)
		}
		return out.String(), nil
	case from == FormatHTML && BuiltinSupports(to):
		return htmlToMarkdown(text)
	default:
		return "", fmt.Errorf("builtin converter cannot convert %s to %s", from, to)
	}
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func htmlToMarkdown(fragment string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	w := &mdWriter{}
	for _, n := range nodes {
		w.node(n)
	}
	out := blankLines.ReplaceAllString(w.b.String(), "\n\n")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", nil
	}
	return out + "\n", nil
}

// mdWriter accumulates markdown while walking an HTML tree.
type mdWriter struct {
	b      strings.Builder
	prefix []string // indentation of nested list items
	inPre  bool
}

func (w *mdWriter) block() {
	s := strings.TrimRight(w.b.String(), " ")
	w.b.Reset()
	w.b.WriteString(s)
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		w.b.WriteString("\n")
	default:
		w.b.WriteString("\n\n")
	}
}

func (w *mdWriter) newline() {
	w.b.WriteString("\n")
	w.b.WriteString(strings.Join(w.prefix, ""))
}

func (w *mdWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *mdWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	default:
		w.children(n)
		return
	}

	switch n.DataAtom {
	case atom.P, atom.Div:
		w.block()
		w.children(n)
		w.block()
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		w.block()
		w.b.WriteString(strings.Repeat("#", level) + " ")
		w.children(n)
		w.block()
	case atom.Br:
		w.b.WriteString("  ")
		w.newline()
	case atom.Hr:
		w.block()
		w.b.WriteString("---")
		w.block()
	case atom.Strong, atom.B:
		w.wrap(n, "**")
	case atom.Em, atom.I:
		w.wrap(n, "*")
	case atom.S, atom.Del, atom.Strike:
		w.wrap(n, "~~")
	case atom.Code:
		if w.inPre {
			w.children(n)
			return
		}
		w.wrap(n, "`")
	case atom.Pre:
		w.block()
		w.b.WriteString("```")
		w.newline()
		w.inPre = true
		w.children(n)
		w.inPre = false
		if !strings.HasSuffix(w.b.String(), "\n") {
			w.newline()
		}
		w.b.WriteString("```")
		w.block()
	case atom.A:
		href := attr(n, "href")
		if href == "" {
			w.children(n)
			return
		}
		w.b.WriteString("[")
		w.children(n)
		w.b.WriteString("](" + href + ")")
	case atom.Img:
		w.b.WriteString("![" + attr(n, "alt") + "](" + attr(n, "src") + ")")
	case atom.Blockquote:
		sub := &mdWriter{}
		sub.children(n)
		inner := strings.TrimSpace(blankLines.ReplaceAllString(sub.b.String(), "\n\n"))
		w.block()
		for i, line := range strings.Split(inner, "\n") {
			if i > 0 {
				w.newline()
			}
			if line == "" {
				w.b.WriteString(">")
			} else {
				w.b.WriteString("> " + line)
			}
		}
		w.block()
	case atom.Ul, atom.Ol:
		w.list(n, n.DataAtom == atom.Ol)
	case atom.Script, atom.Style:
	default:
		w.children(n)
	}
}

func (w *mdWriter) wrap(n *html.Node, marker string) {
	w.b.WriteString(marker)
	w.children(n)
	w.b.WriteString(marker)
}

func (w *mdWriter) list(n *html.Node, ordered bool) {
	w.block()
	w.items(n, ordered)
	w.block()
}

func (w *mdWriter) items(n *html.Node, ordered bool) {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		i++
		marker := "- "
		if ordered {
			marker = strconv.Itoa(i) + ". "
		}
		if i > 1 {
			w.newline()
		}
		w.b.WriteString(marker)
		w.prefix = append(w.prefix, strings.Repeat(" ", len(marker)))
		w.listItem(c)
		w.prefix = w.prefix[:len(w.prefix)-1]
	}
}

// listItem writes an item's content without the blank lines paragraphs
// would add, so simple lists stay tight.
func (w *mdWriter) listItem(li *html.Node) {
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.P {
			w.children(c)
			continue
		}
		if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
			w.newline()
			w.items(c, c.DataAtom == atom.Ol)
			continue
		}
		w.node(c)
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func (w *mdWriter) text(s string) {
	if w.inPre {
		for i, l := range strings.Split(s, "\n") {
			if i > 0 {
				w.newline()
			}
			w.b.WriteString(l)
		}
		return
	}
	s = whitespaceRun.ReplaceAllString(s, " ")
	cur := w.b.String()
	if cur == "" || strings.HasSuffix(cur, "\n") || strings.HasSuffix(cur, " ") {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return
	}
	w.b.WriteString(escapeMarkdown(s))
}

var markdownSpecial = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

func escapeMarkdown(s string) string {
	return markdownSpecial.Replace(s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
