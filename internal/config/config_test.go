// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/pkg/types"
)

// isolate points the user directories at temp dirs and runs the test from
// an empty working directory, so no real config or .env leaks in.
func isolate(t *testing.T) (configHome string) {
	t.Helper()
	configHome = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	for _, k := range []string{"ZOTNOTE_ZOTERO_API_KEY", "ZOTNOTE_ZOTERO_LIBRARY_ID", "ZOTNOTE_NOTES_DIALECT", "ZOTNOTE_NOTES_EDITOR", "VISUAL", "EDITOR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Chdir(t.TempDir())
	return configHome
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, used, err := Load(Options{})
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, "markdown", cfg.Notes.Dialect)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	require.NoError(t, Validate(cfg))

	err = RequireRemote(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuth))
}

func TestLoad_FileEnvAndSecrets(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, "zotnote", "zotnote.yaml"), `
zotero:
  library_id: "12345"
  library_type: group
  timeout: 30s
notes:
  dialect: rst
  converter: container
  stale_after: 1m
storage:
  dir: /data/Zotero/storage
`)
	writeFile(t, filepath.Join(home, "zotnote", "secrets", SecretAPIKey), "  secret-key\n")
	writeFile(t, filepath.Join(home, "zotnote", "secrets", SecretLibraryID), "999")
	t.Setenv("ZOTNOTE_NOTES_DIALECT", "org")

	cfg, used, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "zotnote", "zotnote.yaml"), used)

	assert.Equal(t, "secret-key", cfg.Zotero.APIKey)
	// The file wins over the secrets directory.
	assert.Equal(t, "12345", cfg.Zotero.LibraryID)
	assert.Equal(t, types.LibraryGroup, cfg.Zotero.LibraryType)
	assert.Equal(t, 30*time.Second, cfg.Zotero.Timeout)
	assert.Equal(t, "org", cfg.Notes.Dialect)
	assert.Equal(t, types.ConverterContainer, cfg.Notes.Converter)
	assert.Equal(t, time.Minute, cfg.Notes.StaleAfter)
	assert.Equal(t, "/data/Zotero/storage", cfg.Storage.Dir)
	assert.Equal(t, DefaultBaseURL, cfg.Zotero.BaseURL)

	require.NoError(t, Validate(cfg))
	require.NoError(t, RequireRemote(cfg))
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	writeFile(t, ".env", "ZOTNOTE_ZOTERO_API_KEY=from-dotenv\n")
	t.Cleanup(func() { os.Unsetenv("ZOTNOTE_ZOTERO_API_KEY") })

	cfg, _, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Zotero.APIKey)
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)

	_, _, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "store:\n  dir: ~/zotcache\n")
	cfg, used, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, path, used)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "zotcache"), cfg.Store.Dir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.Config)
		errMsg string
	}{
		{"bad library type", func(c *types.Config) { c.Zotero.LibraryType = "team" }, "zotero"},
		{"non-numeric library id", func(c *types.Config) { c.Zotero.LibraryID = "abc" }, "zotero"},
		{"bad base url", func(c *types.Config) { c.Zotero.BaseURL = "not a url" }, "zotero"},
		{"no store dir", func(c *types.Config) { c.Store.Dir = "" }, "store"},
		{"negative interval", func(c *types.Config) { c.Sync.Interval = -time.Second }, "sync"},
		{"no dialect", func(c *types.Config) { c.Notes.Dialect = "" }, "notes"},
		{"unknown converter", func(c *types.Config) { c.Notes.Converter = "word" }, "notes"},
		{"bad log level", func(c *types.Config) { c.Log.Level = "loud" }, "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "conf", "zotnote.yaml")

	cfg := Defaults()
	cfg.Zotero.APIKey = "k"
	cfg.Zotero.LibraryID = "42"
	cfg.Notes.Dialect = "latex"
	require.NoError(t, Write(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, _, err := Load(Options{File: path})
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SecretAPIKey), "  k_abc \n")
	writeFile(t, filepath.Join(dir, "empty"), "  \n")
	writeFile(t, filepath.Join(dir, ".hidden"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	got, err := LoadSecrets(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{SecretAPIKey: "k_abc"}, got)

	got, err = LoadSecrets(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_EditorPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		visual     string
		editor     string
		want       string
	}{
		{"config wins", "emacs -nw", "nvim", "nano", "emacs -nw"},
		{"visual next", "", "nvim", "nano", "nvim"},
		{"editor next", "", "", "nano", "nano"},
		{"left blank", "", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := isolate(t)
			if tt.configured != "" {
				writeFile(t, filepath.Join(home, "zotnote", "zotnote.yaml"), "notes:\n  editor: "+tt.configured+"\n")
			}
			t.Setenv("VISUAL", tt.visual)
			t.Setenv("EDITOR", tt.editor)

			cfg, _, err := Load(Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Notes.Editor)
		})
	}
}
