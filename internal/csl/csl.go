// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package csl renders cached items as CSL-YAML (Citation Style Language),
// the bibliography format pandoc reads with --bibliography.
package csl

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/zotnote/pkg/types"
)

// Item is one CSL bibliography entry.
type Item struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"`
	Title      string `yaml:"title"`
	Author     []Name `yaml:"author,omitempty"`
	Editor     []Name `yaml:"editor,omitempty"`
	Translator []Name `yaml:"translator,omitempty"`
	Abstract   string `yaml:"abstract,omitempty"`
	Issued     *Date  `yaml:"issued,omitempty"`
}

// Name is a person in CSL form. Single-field names use Literal.
type Name struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// Date holds CSL date-parts: year, and optionally month and day.
type Date struct {
	DateParts [][]int `yaml:"date-parts"`
}

// Write encodes items as a CSL-YAML list.
func Write(w io.Writer, items []types.Item) error {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = FromItem(it)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(out)
}

// FromItem converts a library item. The citation key, when the item has
// one, becomes the CSL id so [@key] citations resolve; otherwise the item
// key is used.
func FromItem(it types.Item) Item {
	out := Item{
		ID:       it.CiteKey,
		Type:     cslType(it.ItemType),
		Title:    it.Title,
		Abstract: it.Abstract,
		Issued:   parseDate(it.Date),
	}
	if out.ID == "" {
		out.ID = it.Key
	}
	for _, c := range it.Creators {
		n := parseName(c.Name)
		switch c.Role {
		case "editor", "seriesEditor":
			out.Editor = append(out.Editor, n)
		case "translator":
			out.Translator = append(out.Translator, n)
		default:
			out.Author = append(out.Author, n)
		}
	}
	return out
}

var itemTypes = map[string]string{
	"journalArticle":   "article-journal",
	"magazineArticle":  "article-magazine",
	"newspaperArticle": "article-newspaper",
	"preprint":         "article",
	"book":             "book",
	"bookSection":      "chapter",
	"conferencePaper":  "paper-conference",
	"thesis":           "thesis",
	"report":           "report",
	"manuscript":       "manuscript",
	"webpage":          "webpage",
	"patent":           "patent",
	"dataset":          "dataset",
	"computerProgram":  "software",
}

func cslType(itemType string) string {
	if t, ok := itemTypes[itemType]; ok {
		return t
	}
	return "document"
}

// parseName splits the "Family, Given" display names the remote client
// produces.
func parseName(name string) Name {
	name = strings.TrimSpace(name)
	family, given, ok := strings.Cut(name, ",")
	if !ok {
		return Name{Literal: name}
	}
	return Name{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
}

var isoDate = regexp.MustCompile(`\b(\d{4})(?:-(\d{1,2})(?:-(\d{1,2}))?)?\b`)

// parseDate reads the leading ISO-style part of a free-form date. Dates
// without a recognizable year give nil.
func parseDate(s string) *Date {
	m := isoDate.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	var parts []int
	for _, p := range m[1:] {
		if p == "" {
			break
		}
		n, _ := strconv.Atoi(p)
		parts = append(parts, n)
	}
	return &Date{DateParts: [][]int{parts}}
}
