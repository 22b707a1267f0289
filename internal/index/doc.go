// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"github.com/pdiddy/zotnote/internal/store"
	"github.com/pdiddy/zotnote/pkg/types"
)

// Tokenize lower-cases s and splits it on runs of characters that are
// neither letters nor digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BuildDoc projects an item and its child notes onto a search document.
// It reads nothing but its arguments, so the same inputs always produce
// the same document.
func BuildDoc(it types.Item, notes []types.Note) store.SearchDoc {
	doc := store.SearchDoc{}
	add := func(s string) {
		for _, tok := range Tokenize(s) {
			doc[tok]++
		}
	}

	add(it.Title)
	for _, c := range it.Creators {
		add(c.Name)
	}
	add(it.Abstract)
	add(it.CiteKey)
	add(it.Year())
	for _, n := range notes {
		add(PlainText(n.HTML))
	}
	return doc
}

// PlainText returns the text content of an HTML fragment with tags removed
// and block boundaries turned into whitespace.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way the text so far is all there is.
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}
