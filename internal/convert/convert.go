// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert moves note bodies between the remote's sanitized HTML and
// the user's local markup dialect.
//
// The pipeline is pure: it holds no state beyond its converter and dialect,
// and the same input gives the same output for a given converter version.
// It is not lossless. The remote re-sanitizes HTML on every write and drops
// structure the pipeline cannot recover later, so ToLocal(ToRemote(m)) may
// differ from m and ToRemote(ToLocal(h)) may differ from h. Callers must
// not rely on round trips being the identity.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/pkg/types"
)

// FormatHTML is the remote note format.
const FormatHTML = "html"

// Converter transforms text between two formats named the way pandoc
// names them ("html", "markdown", "rst", "latex", ...).
type Converter interface {
	Convert(ctx context.Context, text, from, to string) (string, error)
}

// Pipeline converts notes for one local dialect.
type Pipeline struct {
	conv    Converter
	dialect string
}

// NewPipeline returns a pipeline using conv for dialect.
func NewPipeline(conv Converter, dialect string) *Pipeline {
	return &Pipeline{conv: conv, dialect: dialect}
}

// Dialect is the local markup format.
func (p *Pipeline) Dialect() string { return p.dialect }

// ToLocal renders a remote HTML body as local markup.
func (p *Pipeline) ToLocal(ctx context.Context, html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	out, err := p.conv.Convert(ctx, html, FormatHTML, p.dialect)
	if err != nil {
		return "", conversionError(FormatHTML, p.dialect, err)
	}
	return out, nil
}

// ToRemote renders local markup as HTML for the remote.
func (p *Pipeline) ToRemote(ctx context.Context, markup string) (string, error) {
	if strings.TrimSpace(markup) == "" {
		return "", nil
	}
	out, err := p.conv.Convert(ctx, markup, p.dialect, FormatHTML)
	if err != nil {
		return "", conversionError(p.dialect, FormatHTML, err)
	}
	return out, nil
}

func conversionError(from, to string, err error) error {
	return fmt.Errorf("%s to %s: %w: %w", from, to, apperr.ErrConversion, err)
}

// Extension returns the file extension editors expect for dialect, used
// to name edit buffers so syntax highlighting kicks in.
func Extension(dialect string) string {
	// Pandoc format names may carry extension toggles: markdown+smart-raw_html.
	base := dialect
	if i := strings.IndexAny(base, "+-"); i > 0 {
		base = base[:i]
	}
	switch {
	case strings.HasPrefix(base, "markdown"), base == "gfm", base == "commonmark", base == "commonmark_x":
		return ".md"
	case base == "latex":
		return ".tex"
	case base == "docbook", base == "docbook4", base == "docbook5":
		return ".dbk"
	case base == "asciidoc":
		return ".adoc"
	case base == "textile":
		return ".textile"
	case base == "":
		return ".txt"
	default:
		return "." + base
	}
}

// New builds the converter cfg selects. The container backend needs a
// working docker or podman and may pull the pandoc image.
func New(ctx context.Context, cfg types.NotesConfig, logger *slog.Logger) (Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Converter {
	case types.ConverterPandoc, "":
		return NewPandocConverter(), nil
	case types.ConverterContainer:
		return NewContainerConverter(ctx, logger)
	case types.ConverterBuiltin:
		if !BuiltinSupports(cfg.Dialect) {
			return nil, fmt.Errorf("the builtin converter only handles markdown, not %q", cfg.Dialect)
		}
		return NewBuiltinConverter(), nil
	default:
		return nil, fmt.Errorf("unknown converter %q", cfg.Converter)
	}
}
