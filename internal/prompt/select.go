// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt holds the terminal side of user interaction: the
// interactive selector used for disambiguation, the configure form, and
// the styles for listing items.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/resolve"
)

// HuhSelector asks with a huh select list.
type HuhSelector struct {
	In  io.Reader
	Out io.Writer

	// Accessible switches huh to plain line prompts, for screen readers
	// and dumb terminals.
	Accessible bool
}

// Select shows labels and blocks until the user picks one. Escape or
// Ctrl-C abort the selection.
func (s HuhSelector) Select(ctx context.Context, title string, labels []string) (int, error) {
	options := make([]huh.Option[int], len(labels))
	for i, l := range labels {
		options[i] = huh.NewOption(fmt.Sprintf("%d. %s", i+1, l), i)
	}

	choice := -1
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title(title).
			Options(options...).
			Height(min(len(options)+2, 15)).
			Value(&choice),
	)).WithAccessible(s.Accessible)
	if s.In != nil {
		form = form.WithInput(s.In)
	}
	if s.Out != nil {
		form = form.WithOutput(s.Out)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return 0, apperr.ErrSelectionAborted
		}
		return 0, fmt.Errorf("running selection prompt: %w", err)
	}
	if choice < 0 {
		return 0, apperr.ErrSelectionAborted
	}
	return choice, nil
}

// Confirm asks a yes/no question. Escape or Ctrl-C abort it.
func (s HuhSelector) Confirm(ctx context.Context, question string) (bool, error) {
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).WithAccessible(s.Accessible)
	if s.In != nil {
		form = form.WithInput(s.In)
	}
	if s.Out != nil {
		form = form.WithOutput(s.Out)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled) {
			return false, apperr.ErrSelectionAborted
		}
		return false, fmt.Errorf("running confirm prompt: %w", err)
	}
	return ok, nil
}

// NonInteractive refuses every choice. It is used when no terminal is
// attached, so an ambiguous query fails instead of hanging.
type NonInteractive struct {
	// Out, when set, receives the candidate list so the user can rerun
	// with an exact key.
	Out io.Writer
}

// Select lists labels to Out and aborts.
func (n NonInteractive) Select(_ context.Context, title string, labels []string) (int, error) {
	if n.Out != nil {
		fmt.Fprintf(n.Out, "%s:\n", title)
		for i, l := range labels {
			fmt.Fprintf(n.Out, "  %d. %s\n", i+1, l)
		}
	}
	return 0, fmt.Errorf("%d candidates and no terminal to choose from: %w", len(labels), apperr.ErrSelectionAborted)
}

// Confirm answers no without asking.
func (NonInteractive) Confirm(context.Context, string) (bool, error) {
	return false, nil
}

// Asker chooses among candidates and answers yes/no questions.
type Asker interface {
	resolve.Selector
	Confirm(ctx context.Context, question string) (bool, error)
}

// ForTerminal returns an interactive asker when in is a terminal and a
// non-interactive one otherwise.
func ForTerminal(in *os.File, out io.Writer) Asker {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return HuhSelector{In: in, Out: out, Accessible: os.Getenv("ACCESSIBLE") != ""}
	}
	return NonInteractive{Out: out}
}
