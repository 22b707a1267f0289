// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads zotnote settings. Values come, lowest precedence
// first, from built-in defaults, the config file, the secrets directory,
// a .env file in the working directory, and ZOTNOTE_* environment
// variables. The result is a plain types.Config handed to constructors.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/zotnote/internal/fslock"
	"github.com/pdiddy/zotnote/pkg/types"
)

const (
	// FileName is the config file base name, without extension.
	FileName = "zotnote"

	// EnvPrefix prefixes environment overrides: ZOTNOTE_ZOTERO_API_KEY
	// sets zotero.api_key.
	EnvPrefix = "ZOTNOTE"

	// DefaultBaseURL is the Zotero Web API root.
	DefaultBaseURL = "https://api.zotero.org"
)

// Secret file names in the secrets directory.
const (
	SecretAPIKey    = "zotero-api-key"
	SecretLibraryID = "zotero-library-id"
)

// Dir returns the per-user config directory, ~/.config/zotnote.
func Dir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "zotnote")
	}
	return filepath.Join(".config", "zotnote")
}

// CacheDir returns the per-user cache directory, ~/.cache/zotnote.
func CacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "zotnote")
	}
	return filepath.Join(".cache", "zotnote")
}

// DefaultPath is where configure writes when no config file exists yet.
func DefaultPath() string {
	return filepath.Join(Dir(), FileName+".yaml")
}

// Defaults returns the built-in settings.
func Defaults() types.Config {
	cache := CacheDir()
	return types.Config{
		Zotero: types.ZoteroConfig{
			LibraryType: types.LibraryUser,
			BaseURL:     DefaultBaseURL,
			Timeout:     60 * time.Second,
			UserAgent:   "zotnote",
		},
		Store: types.StoreConfig{Dir: cache},
		Sync:  types.SyncConfig{Interval: 5 * time.Minute},
		Notes: types.NotesConfig{
			Dialect:    "markdown",
			Converter:  types.ConverterPandoc,
			StaleAfter: 5 * time.Minute,
		},
		Log: types.LogConfig{
			File:  filepath.Join(cache, "zotnote.log"),
			Level: "info",
		},
	}
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal, including keys without a useful default.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("zotero.api_key", "")
	v.SetDefault("zotero.library_id", "")
	v.SetDefault("zotero.library_type", string(d.Zotero.LibraryType))
	v.SetDefault("zotero.base_url", d.Zotero.BaseURL)
	v.SetDefault("zotero.timeout", d.Zotero.Timeout)
	v.SetDefault("zotero.user_agent", d.Zotero.UserAgent)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("sync.interval", d.Sync.Interval)
	v.SetDefault("notes.dialect", d.Notes.Dialect)
	v.SetDefault("notes.converter", string(d.Notes.Converter))
	v.SetDefault("notes.editor", "")
	v.SetDefault("notes.stale_after", d.Notes.StaleAfter)
	v.SetDefault("notes.temp_dir", "")
	v.SetDefault("storage.dir", "")
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
}

// Options control where Load looks.
type Options struct {
	// File is an explicit config file. When empty, zotnote.yaml is
	// searched in the working directory and then in Dir().
	File string

	// SecretsDir holds one file per secret (default Dir()/secrets).
	SecretsDir string

	// EnvFile is loaded into the environment before variables are read
	// (default ".env"). A missing file is ignored.
	EnvFile string
}

// Load reads the configuration. It does not validate it; call Validate
// before using the values, and RequireRemote before talking to the remote.
// The second result is the config file used, or "" when none was found.
func Load(opts Options) (types.Config, string, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.Config{}, "", fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return types.Config{}, "", fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, "", fmt.Errorf("decoding config: %w", err)
	}

	secretsDir := opts.SecretsDir
	if secretsDir == "" {
		secretsDir = filepath.Join(Dir(), "secrets")
	}
	secrets, err := LoadSecrets(secretsDir)
	if err != nil {
		return types.Config{}, "", err
	}
	if cfg.Zotero.APIKey == "" {
		cfg.Zotero.APIKey = secrets[SecretAPIKey]
	}
	if cfg.Zotero.LibraryID == "" {
		cfg.Zotero.LibraryID = secrets[SecretLibraryID]
	}

	// notes.editor wins over the conventional editor variables.
	if strings.TrimSpace(cfg.Notes.Editor) == "" {
		cfg.Notes.Editor = firstNonEmpty(os.Getenv("VISUAL"), os.Getenv("EDITOR"))
	}

	cfg.Store.Dir = expandHome(cfg.Store.Dir)
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	cfg.Notes.TempDir = expandHome(cfg.Notes.TempDir)
	cfg.Log.File = expandHome(cfg.Log.File)
	return cfg, v.ConfigFileUsed(), nil
}

// Write saves cfg as YAML to path, replacing the file atomically. The file
// holds the API key, so it is readable by the owner only.
func Write(path string, cfg types.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	return fslock.WriteFileAtomic(path, data, 0o600)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
