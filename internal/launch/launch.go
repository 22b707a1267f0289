// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package launch starts the user's text editor on a note buffer and opens
// attachments in the desktop's default viewer.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	// RunAttached runs a command on the user's terminal and waits for it.
	RunAttached(ctx context.Context, name string, args ...string) error
	// Start runs a command in the background without waiting.
	Start(name string, args ...string) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) RunAttached(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (osExecutor) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child so it does not linger as a zombie.
	go cmd.Wait()
	return nil
}

// Editor runs an interactive text editor.
type Editor struct {
	// Command is the editor command line; it may carry arguments, as in
	// "code --wait".
	Command string
	exec    executor
}

// NewEditor runs the configured editor command, or vi when it is blank.
// The environment fallbacks ($VISUAL, $EDITOR) are resolved by the config
// loader.
func NewEditor(configured string) *Editor {
	cmd := strings.TrimSpace(configured)
	if cmd == "" {
		cmd = "vi"
	}
	return &Editor{Command: cmd, exec: osExecutor{}}
}

// Edit opens path in the editor and blocks until it exits. It returns the
// editor's exit code; err is set only when the editor could not be run.
func (e *Editor) Edit(ctx context.Context, path string) (int, error) {
	fields := strings.Fields(e.Command)
	if len(fields) == 0 {
		return -1, fmt.Errorf("no editor configured")
	}
	if _, err := e.exec.LookPath(fields[0]); err != nil {
		return -1, fmt.Errorf("editor %q not found on PATH: %w", fields[0], err)
	}

	args := append(fields[1:len(fields):len(fields)], path)
	err := e.exec.RunAttached(ctx, fields[0], args...)
	if err == nil {
		return 0, nil
	}
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("running editor %s: %w", fields[0], err)
}

// Viewer opens files with the platform's default application.
type Viewer struct {
	exec executor
	goos string
}

// NewViewer returns a viewer for the running platform.
func NewViewer() *Viewer {
	return &Viewer{exec: osExecutor{}, goos: runtime.GOOS}
}

// Open hands path to the default application and returns without waiting
// for it to close.
func (v *Viewer) Open(_ context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	var name string
	var args []string
	switch v.goos {
	case "darwin":
		name, args = "open", []string{path}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", path}
	default:
		name, args = "xdg-open", []string{path}
	}
	if _, err := v.exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	if err := v.exec.Start(name, args...); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	return nil
}
