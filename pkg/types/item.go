// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for zotnote: library items,
// notes, attachments, the records the remote library yields, and the
// configuration passed into each component.
package types

import (
	"regexp"
	"strings"
	"time"
)

// Version is a remote-assigned revision marker. Zotero versions are
// monotonic integers per library.
type Version = int64

// keyPattern matches remote item keys: eight upper-case letters or digits.
var keyPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// IsKey reports whether s has the shape of a remote item key.
func IsKey(s string) bool {
	return keyPattern.MatchString(s)
}

// Creator is an author, editor or other contributor of an item.
type Creator struct {
	// Name is the display name ("Goodfellow, Ian" or a single-field name).
	Name string `json:"name" yaml:"name"`

	// Role is the creator type as reported by the remote (author, editor, ...).
	Role string `json:"role" yaml:"role"`
}

// Attachment references a file attached to an item.
type Attachment struct {
	Key      string `json:"key" yaml:"key"`
	Title    string `json:"title" yaml:"title"`
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	// LinkMode is the remote link mode (imported_file, imported_url,
	// linked_file, linked_url).
	LinkMode string `json:"link_mode" yaml:"link_mode"`

	// LocalPath is the file a linked_file attachment points at, as recorded
	// by the remote library. Empty for stored files.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}

// Imported reports whether the attachment file is stored by the library
// rather than linked from elsewhere.
func (a Attachment) Imported() bool {
	return strings.HasPrefix(a.LinkMode, "imported")
}

// Item is a bibliographic record in the library.
type Item struct {
	// Key is the remote identifier (e.g. "F5R83K6P").
	Key string `json:"key" yaml:"key"`

	// Version is the remote version of the item the stored fields reflect.
	Version Version `json:"version" yaml:"version"`

	// ItemType is the remote item type (journalArticle, book, ...).
	ItemType string `json:"item_type" yaml:"item_type"`

	Title    string    `json:"title" yaml:"title"`
	Creators []Creator `json:"creators" yaml:"creators"`

	// Date is the free-form date string as entered in the library.
	Date string `json:"date,omitempty" yaml:"date,omitempty"`

	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// CiteKey is parsed from a "bibtex: <key>" line in the item's extra field.
	CiteKey string `json:"citekey,omitempty" yaml:"citekey,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty" yaml:"attachments,omitempty"`

	// NoteKeys lists child notes ordered by key.
	NoteKeys []string `json:"note_keys,omitempty" yaml:"note_keys,omitempty"`
}

var yearPattern = regexp.MustCompile(`\b(\d{4})\b`)

// Year extracts a four-digit year from the date field, or "" if none.
func (it Item) Year() string {
	if m := yearPattern.FindStringSubmatch(it.Date); m != nil {
		return m[1]
	}
	return ""
}

// CreatorSummary returns a short author line in the style of the remote's
// creatorSummary: "Smith", "Smith and Doe", or "Smith et al.".
func (it Item) CreatorSummary() string {
	var names []string
	for _, c := range it.Creators {
		if c.Role != "" && c.Role != "author" {
			continue
		}
		names = append(names, lastName(c.Name))
	}
	if len(names) == 0 {
		for _, c := range it.Creators {
			names = append(names, lastName(c.Name))
		}
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return names[0] + " et al."
	}
}

func lastName(name string) string {
	if i := strings.Index(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i])
	}
	return name
}

// Note is a free-text annotation stored remotely as sanitized HTML.
type Note struct {
	Key string `json:"key" yaml:"key"`

	// ParentKey is the owning item; empty for standalone notes.
	ParentKey string `json:"parent_key,omitempty" yaml:"parent_key,omitempty"`

	Version Version `json:"version" yaml:"version"`

	// HTML is the canonical note body.
	HTML string `json:"html" yaml:"html"`

	// Markup, Dialect and MarkupVersion cache the last local rendering of
	// the note. The cache is only valid while MarkupVersion equals Version.
	Markup        string  `json:"markup,omitempty" yaml:"markup,omitempty"`
	Dialect       string  `json:"dialect,omitempty" yaml:"dialect,omitempty"`
	MarkupVersion Version `json:"markup_version,omitempty" yaml:"markup_version,omitempty"`

	// SyncedAt is when the stored copy was last confirmed against the remote.
	SyncedAt time.Time `json:"synced_at" yaml:"synced_at"`
}

// CachedMarkup returns the cached local markup for dialect when it is still
// valid for the stored version.
func (n Note) CachedMarkup(dialect string) (string, bool) {
	if n.Markup == "" || n.Dialect != dialect || n.MarkupVersion != n.Version {
		return "", false
	}
	return n.Markup, true
}

// RecordKind classifies a remote record.
type RecordKind string

const (
	KindItem       RecordKind = "item"
	KindNote       RecordKind = "note"
	KindAttachment RecordKind = "attachment"
)

// Record is one remote object as yielded by the remote client. Exactly one
// of Item, Note or Attachment is set, matching Kind.
type Record struct {
	Kind    RecordKind
	Key     string
	Version Version

	// ParentKey is set for child notes and attachments.
	ParentKey string

	Item       *Item
	Note       *Note
	Attachment *Attachment
}
