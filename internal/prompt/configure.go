// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/charmbracelet/huh"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/pkg/types"
)

var libraryIDPattern = regexp.MustCompile(`^[0-9]+$`)

// Configure walks the user through the settings needed to talk to the
// remote library and edit notes, updating cfg in place.
func Configure(ctx context.Context, cfg *types.Config, in io.Reader, out io.Writer) error {
	libraryType := string(cfg.Zotero.LibraryType)
	if libraryType == "" {
		libraryType = string(types.LibraryUser)
	}
	converter := string(cfg.Notes.Converter)
	if converter == "" {
		converter = string(types.ConverterPandoc)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Zotero API key").
				Description("Create one at https://www.zotero.org/settings/keys with note write access.").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Zotero.APIKey).
				Validate(nonEmpty("API key")),
			huh.NewInput().
				Title("Library ID").
				Description("Your numeric user ID, or the group ID for a group library.").
				Value(&cfg.Zotero.LibraryID).
				Validate(func(s string) error {
					if !libraryIDPattern.MatchString(s) {
						return errors.New("library ID must be numeric")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Library type").
				Options(
					huh.NewOption("Personal library", string(types.LibraryUser)),
					huh.NewOption("Group library", string(types.LibraryGroup)),
				).
				Value(&libraryType),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Note markup dialect").
				Description("Any format the converter understands, e.g. markdown, rst, org, latex.").
				Value(&cfg.Notes.Dialect).
				Validate(nonEmpty("dialect")),
			huh.NewSelect[string]().
				Title("Converter").
				Options(
					huh.NewOption("pandoc binary", string(types.ConverterPandoc)),
					huh.NewOption("pandoc in a container (docker/podman)", string(types.ConverterContainer)),
					huh.NewOption("built-in (markdown only)", string(types.ConverterBuiltin)),
				).
				Value(&converter),
			huh.NewInput().
				Title("Zotero storage directory (optional)").
				Description("Local attachment storage, usually ~/Zotero/storage.").
				Value(&cfg.Storage.Dir),
		),
	)
	if in != nil {
		form = form.WithInput(in)
	}
	if out != nil {
		form = form.WithOutput(out)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("configuration: %w", apperr.ErrSelectionAborted)
		}
		return fmt.Errorf("running configuration form: %w", err)
	}
	cfg.Zotero.LibraryType = types.LibraryType(libraryType)
	cfg.Notes.Converter = types.ConverterBackend(converter)
	return nil
}

func nonEmpty(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}
