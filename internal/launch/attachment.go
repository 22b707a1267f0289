// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/zotnote/pkg/types"
)

// Locate returns the local file of an attachment. Stored files live in
// <storageDir>/<attachment key>/<filename>; linked files carry their own
// path in LocalPath.
func Locate(storageDir string, a types.Attachment) (string, error) {
	var candidates []string
	if a.LocalPath != "" {
		candidates = append(candidates, a.LocalPath)
	}
	if storageDir != "" && a.Filename != "" {
		candidates = append(candidates, filepath.Join(storageDir, a.Key, a.Filename))
	}
	if len(candidates) == 0 {
		if storageDir == "" {
			return "", fmt.Errorf("attachment %s: storage.dir is not configured", a.Key)
		}
		return "", fmt.Errorf("attachment %s has no file", a.Key)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("attachment %s: %s does not exist", a.Key, candidates[len(candidates)-1])
}

// Downloader fetches the stored file of an attachment from the remote.
type Downloader interface {
	Download(ctx context.Context, key string, w io.Writer) error
}

// Retrieve is Locate with a remote fallback: a stored file that is not on
// this machine is downloaded into <cacheDir>/<key>/<filename>, and an
// earlier download there is reused. Linked files are never downloaded.
// With a nil dl it behaves like Locate.
func Retrieve(ctx context.Context, storageDir, cacheDir string, a types.Attachment, dl Downloader) (string, error) {
	path, err := Locate(storageDir, a)
	if err == nil || dl == nil || !a.Imported() || a.Filename == "" {
		return path, err
	}

	dest := filepath.Join(cacheDir, a.Key, filepath.Base(a.Filename))
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}
	if err := dl.Download(ctx, a.Key, tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("downloading attachment %s: %w", a.Key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("moving download into place: %w", err)
	}
	return dest, nil
}
