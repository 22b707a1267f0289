package types

import "time"

// LibraryType selects between a personal and a group library.
type LibraryType string

const (
	LibraryUser  LibraryType = "user"
	LibraryGroup LibraryType = "group"
)

// ZoteroConfig holds credentials and transport settings for the remote library.
type ZoteroConfig struct {
	// APIKey authenticates requests (Zotero-API-Key header).
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`

	// LibraryID is the numeric user or group ID the key is valid for.
	LibraryID string `mapstructure:"library_id" yaml:"library_id"`

	// LibraryType is "user" (default) or "group".
	LibraryType LibraryType `mapstructure:"library_type" yaml:"library_type"`

	// BaseURL is the API root (default https://api.zotero.org).
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// Timeout is the HTTP request timeout (default 60s).
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty"`

	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
}

// StoreConfig locates the local cache database.
type StoreConfig struct {
	// Dir contains zotnote.db and the sync lock file.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SyncConfig controls automatic synchronization before commands.
type SyncConfig struct {
	// Interval is the minimum time between automatic incremental syncs
	// (default 5m). Zero disables automatic sync.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// ConverterBackend selects how notes are converted between HTML and markup.
type ConverterBackend string

const (
	ConverterPandoc    ConverterBackend = "pandoc"
	ConverterContainer ConverterBackend = "container"
	ConverterBuiltin   ConverterBackend = "builtin"
)

// NotesConfig holds settings for the note editing pipeline.
type NotesConfig struct {
	// Dialect is the local markup format, one of the converter's formats
	// (default "markdown").
	Dialect string `mapstructure:"dialect" yaml:"dialect"`

	// Converter selects the conversion backend (default "pandoc").
	Converter ConverterBackend `mapstructure:"converter" yaml:"converter"`

	// Editor overrides $VISUAL / $EDITOR.
	Editor string `mapstructure:"editor" yaml:"editor,omitempty"`

	// StaleAfter is the age after which a cached note is refreshed from the
	// remote before editing (default 5m).
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after"`

	// TempDir holds edit buffers (default os.TempDir()).
	TempDir string `mapstructure:"temp_dir" yaml:"temp_dir,omitempty"`
}

// StorageConfig points at the local attachment storage directory.
type StorageConfig struct {
	// Dir is the Zotero "storage" directory; attachments live in
	// <Dir>/<attachment key>/<filename>.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	// File is the log file path (default ~/.cache/zotnote/zotnote.log).
	File string `mapstructure:"file" yaml:"file,omitempty"`

	// Level is debug, info, warn or error (default info).
	Level string `mapstructure:"level" yaml:"level,omitempty"`
}

// Config groups the settings of every component.
type Config struct {
	Zotero  ZoteroConfig  `mapstructure:"zotero" yaml:"zotero"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Notes   NotesConfig   `mapstructure:"notes" yaml:"notes"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}
