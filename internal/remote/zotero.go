// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package remote talks to the Zotero Web API v3. It turns library objects
// into types.Record values and classifies failures into the apperr
// taxonomy: transport errors are network failures, 401/403 are
// authentication failures, 412 on a conditional write is a conflict.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/httputil"
	"github.com/pdiddy/zotnote/pkg/types"
)

const (
	defaultBaseURL = "https://api.zotero.org"
	apiVersion     = "3"
	pageSize       = 100
)

// Client is a Zotero Web API client bound to one library.
type Client struct {
	http   *http.Client
	base   string
	prefix string
	cfg    types.ZoteroConfig
	logger *slog.Logger

	// notBefore is set from a Backoff header; requests wait until then.
	notBefore time.Time
}

// New returns a client for the library described by cfg.
func New(cfg types.ZoteroConfig, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.LibraryID == "" {
		return nil, fmt.Errorf("zotero api key and library id are required: %w", apperr.ErrAuth)
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	var prefix string
	switch cfg.LibraryType {
	case types.LibraryGroup:
		prefix = "/groups/" + url.PathEscape(cfg.LibraryID)
	case types.LibraryUser, "":
		prefix = "/users/" + url.PathEscape(cfg.LibraryID)
	default:
		return nil, fmt.Errorf("unknown library type %q", cfg.LibraryType)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		base:   base,
		prefix: prefix,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// ChangedSince pages through every item, note and attachment modified after
// since and calls fn for each. It returns the library version reported by
// the first page, so records modified while paging are picked up again by
// the next pass rather than skipped.
func (c *Client) ChangedSince(ctx context.Context, since types.Version, fn func(types.Record) error) (types.Version, error) {
	var libVersion types.Version
	for start := 0; ; {
		params := url.Values{
			"since":  {strconv.FormatInt(since, 10)},
			"format": {"json"},
			"limit":  {strconv.Itoa(pageSize)},
			"start":  {strconv.Itoa(start)},
			"sort":   {"dateModified"},
		}

		var page []apiObject
		resp, err := c.getJSON(ctx, c.prefix+"/items?"+params.Encode(), &page)
		if err != nil {
			return 0, err
		}
		if start == 0 {
			libVersion = lastModified(resp)
		}

		for _, obj := range page {
			rec, err := obj.record()
			if err != nil {
				c.logger.Warn("remote: skipping undecodable object", slog.String("key", obj.Key), slog.String("error", err.Error()))
				continue
			}
			if err := fn(rec); err != nil {
				return 0, err
			}
		}

		start += len(page)
		total, _ := strconv.Atoi(resp.Header.Get("Total-Results"))
		c.logger.Debug("remote: page", slog.Int("start", start), slog.Int("total", total))
		if len(page) == 0 || start >= total {
			return libVersion, nil
		}
	}
}

// DeletedSince returns the keys of items (including notes and attachments)
// deleted after since.
func (c *Client) DeletedSince(ctx context.Context, since types.Version) ([]string, error) {
	var body struct {
		Items []string `json:"items"`
	}
	params := url.Values{"since": {strconv.FormatInt(since, 10)}}
	if _, err := c.getJSON(ctx, c.prefix+"/deleted?"+params.Encode(), &body); err != nil {
		return nil, err
	}
	return body.Items, nil
}

// FetchOne returns the current remote state of the object with key.
func (c *Client) FetchOne(ctx context.Context, key string) (types.Record, error) {
	var obj apiObject
	if _, err := c.getJSON(ctx, c.prefix+"/items/"+url.PathEscape(key)+"?format=json", &obj); err != nil {
		return types.Record{}, err
	}
	return obj.record()
}

// Download streams the stored file of attachment key into w. The file
// endpoint redirects to the storage host, which the HTTP client follows.
func (c *Client) Download(ctx context.Context, key string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.prefix+"/items/"+url.PathEscape(key)+"/file", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "GET "+req.URL.Path)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return apperr.NetworkFailure(fmt.Errorf("downloading %s: %w", key, err))
	}
	c.logger.Debug("remote: downloaded", slog.String("key", key), slog.Int64("bytes", n))
	return nil
}

// UpdateNote replaces the body of note key, provided the note is still at
// version expected. It returns the new version.
func (c *Client) UpdateNote(ctx context.Context, key, html string, expected types.Version) (types.Version, error) {
	body, err := json.Marshal(map[string]string{"note": html})
	if err != nil {
		return 0, err
	}
	req, err := c.newRequest(ctx, http.MethodPatch, c.prefix+"/items/"+url.PathEscape(key), body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("If-Unmodified-Since-Version", strconv.FormatInt(expected, 10))

	resp, err := c.do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return lastModified(resp), nil
	case http.StatusPreconditionFailed:
		conflict := &apperr.ConflictError{Key: key, Expected: expected}
		if rec, err := c.FetchOne(ctx, key); err == nil {
			conflict.Current = rec.Version
		}
		return 0, conflict
	default:
		return 0, statusError(resp, "updating note "+key)
	}
}

// CreateNote adds a child note under parent. The write is refused with a
// conflict when parent is no longer at version expected. It returns the
// new note's key and version.
func (c *Client) CreateNote(ctx context.Context, parent, html string, expected types.Version) (string, types.Version, error) {
	current, err := c.FetchOne(ctx, parent)
	if err != nil {
		return "", 0, err
	}
	if current.Version != expected {
		return "", 0, &apperr.ConflictError{Key: parent, Expected: expected, Current: current.Version}
	}

	body, err := json.Marshal([]newNote{{
		ItemType:    "note",
		ParentItem:  parent,
		Note:        html,
		Tags:        []string{},
		Collections: []string{},
		Relations:   map[string]string{},
	}})
	if err != nil {
		return "", 0, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.prefix+"/items", body)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Zotero-Write-Token", strings.ReplaceAll(uuid.NewString(), "-", ""))

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, statusError(resp, "creating note")
	}

	var result writeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("parsing create response: %w", err)
	}
	if failed, ok := result.Failed["0"]; ok {
		return "", 0, fmt.Errorf("creating note: remote rejected it (%d): %s", failed.Code, failed.Message)
	}
	created, ok := result.Successful["0"]
	if !ok {
		return "", 0, fmt.Errorf("creating note: response lists no created object")
	}
	version := created.Version
	if version == 0 {
		version = lastModified(resp)
	}
	return created.Key, version, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Zotero-API-Key", c.cfg.APIKey)
	req.Header.Set("Zotero-API-Version", apiVersion)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req with rate-limit retries and maps transport and
// authentication failures. Other statuses are left to the caller.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if wait := time.Until(c.notBefore); wait > 0 {
		c.logger.Debug("remote: honouring backoff", slog.Duration("wait", wait))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0, c.logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.NetworkFailure(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s returned HTTP %d: %w", req.Method, req.URL.Path, resp.StatusCode, apperr.ErrAuth)
	}
	if d := httputil.BackoffHint(resp.Header); d > 0 {
		c.logger.Warn("remote: server requested backoff", slog.Duration("backoff", d))
		c.notBefore = time.Now().Add(d)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp, statusError(resp, "GET "+req.URL.Path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("parsing response of %s: %w", req.URL.Path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response, what string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s: HTTP %d: %s", what, resp.StatusCode, strings.TrimSpace(string(msg)))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", err, apperr.ErrNotFound)
	case resp.StatusCode >= 500:
		return apperr.NetworkFailure(err)
	default:
		return err
	}
}

func lastModified(resp *http.Response) types.Version {
	v, _ := strconv.ParseInt(resp.Header.Get("Last-Modified-Version"), 10, 64)
	return v
}

// --- wire format ---

type apiObject struct {
	Key     string  `json:"key"`
	Version int64   `json:"version"`
	Meta    apiMeta `json:"meta"`
	Data    apiData `json:"data"`
}

type apiMeta struct {
	CreatorSummary string `json:"creatorSummary"`
	ParsedDate     string `json:"parsedDate"`
}

type apiData struct {
	Key          string       `json:"key"`
	Version      int64        `json:"version"`
	ItemType     string       `json:"itemType"`
	ParentItem   string       `json:"parentItem"`
	Title        string       `json:"title"`
	Creators     []apiCreator `json:"creators"`
	Date         string       `json:"date"`
	AbstractNote string       `json:"abstractNote"`
	Extra        string       `json:"extra"`
	Note         string       `json:"note"`
	LinkMode     string       `json:"linkMode"`
	Filename     string       `json:"filename"`
	Path         string       `json:"path"`
}

type apiCreator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Name        string `json:"name"`
}

func (c apiCreator) displayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.LastName + ", " + c.FirstName
	}
}

var citeKeyPattern = regexp.MustCompile(`(?m)^bibtex: *(\S+)\s*$`)

// citeKey extracts a "bibtex: <key>" line from an item's extra field.
func citeKey(extra string) string {
	if m := citeKeyPattern.FindStringSubmatch(extra); m != nil {
		return m[1]
	}
	return ""
}

func (o apiObject) record() (types.Record, error) {
	key := o.Key
	if key == "" {
		key = o.Data.Key
	}
	if key == "" {
		return types.Record{}, errors.New("object without key")
	}
	version := o.Version
	if version == 0 {
		version = o.Data.Version
	}
	rec := types.Record{Key: key, Version: version, ParentKey: o.Data.ParentItem}

	switch o.Data.ItemType {
	case "note":
		rec.Kind = types.KindNote
		rec.Note = &types.Note{Key: key, ParentKey: o.Data.ParentItem, Version: version, HTML: o.Data.Note}
	case "attachment":
		rec.Kind = types.KindAttachment
		rec.Attachment = &types.Attachment{
			Key: key, Title: o.Data.Title, Filename: o.Data.Filename, LinkMode: o.Data.LinkMode,
		}
		// Only linked files carry a usable path; stored files live under
		// the storage directory or behind the file endpoint.
		if o.Data.LinkMode == "linked_file" {
			rec.Attachment.LocalPath = o.Data.Path
		}
	case "annotation":
		return types.Record{}, fmt.Errorf("annotations are not cached")
	default:
		it := &types.Item{
			Key:      key,
			Version:  version,
			ItemType: o.Data.ItemType,
			Title:    o.Data.Title,
			Date:     o.Data.Date,
			Abstract: o.Data.AbstractNote,
			CiteKey:  citeKey(o.Data.Extra),
		}
		for _, cr := range o.Data.Creators {
			it.Creators = append(it.Creators, types.Creator{Name: cr.displayName(), Role: cr.CreatorType})
		}
		rec.Kind = types.KindItem
		rec.ParentKey = ""
		rec.Item = it
	}
	return rec, nil
}

type newNote struct {
	ItemType    string            `json:"itemType"`
	ParentItem  string            `json:"parentItem"`
	Note        string            `json:"note"`
	Tags        []string          `json:"tags"`
	Collections []string          `json:"collections"`
	Relations   map[string]string `json:"relations"`
}

type writeResult struct {
	Successful map[string]apiObject `json:"successful"`
	Failed     map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}
