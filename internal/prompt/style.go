// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdiddy/zotnote/pkg/types"
)

var (
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	creatorStyle = lipgloss.NewStyle().Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	metaStyle    = lipgloss.NewStyle().Faint(true)
)

// ItemLine renders one query result: "[KEY] Creators: Title (year) @citekey".
// Colors are dropped automatically when output is not a terminal.
func ItemLine(it types.Item) string {
	var b strings.Builder
	b.WriteString(keyStyle.Render("[" + it.Key + "]"))
	b.WriteByte(' ')
	if c := it.CreatorSummary(); c != "" {
		b.WriteString(creatorStyle.Render(c + ":"))
		b.WriteByte(' ')
	}
	title := it.Title
	if title == "" {
		title = "Untitled"
	}
	b.WriteString(titleStyle.Render(title))
	var meta []string
	if y := it.Year(); y != "" {
		meta = append(meta, "("+y+")")
	}
	if it.CiteKey != "" {
		meta = append(meta, "@"+it.CiteKey)
	}
	if len(meta) > 0 {
		b.WriteByte(' ')
		b.WriteString(metaStyle.Render(strings.Join(meta, " ")))
	}
	return b.String()
}
