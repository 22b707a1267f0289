// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/pkg/types"
)

// Validate checks the shape of every setting. Credentials may be blank;
// RequireRemote checks those.
func Validate(cfg types.Config) error {
	z := &cfg.Zotero
	if err := validation.ValidateStruct(z,
		validation.Field(&z.LibraryID, is.Digit),
		validation.Field(&z.LibraryType, validation.Required, validation.In(types.LibraryUser, types.LibraryGroup)),
		validation.Field(&z.BaseURL, validation.Required, is.URL),
		validation.Field(&z.Timeout, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("zotero: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Store,
		validation.Field(&cfg.Store.Dir, validation.Required),
	); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Sync,
		validation.Field(&cfg.Sync.Interval, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	n := &cfg.Notes
	if err := validation.ValidateStruct(n,
		validation.Field(&n.Dialect, validation.Required),
		validation.Field(&n.Converter, validation.Required,
			validation.In(types.ConverterPandoc, types.ConverterContainer, types.ConverterBuiltin)),
		validation.Field(&n.StaleAfter, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("notes: %w", err)
	}

	if err := validation.ValidateStruct(&cfg.Log,
		validation.Field(&cfg.Log.Level, validation.In("debug", "info", "warn", "error")),
	); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// RequireRemote reports an authentication error when the credentials the
// remote client needs are missing.
func RequireRemote(cfg types.Config) error {
	z := &cfg.Zotero
	if err := validation.ValidateStruct(z,
		validation.Field(&z.APIKey, validation.Required),
		validation.Field(&z.LibraryID, validation.Required),
	); err != nil {
		return fmt.Errorf("%w: %w (run `zotnote configure`)", apperr.ErrAuth, err)
	}
	return nil
}
