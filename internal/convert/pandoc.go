// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// pandocArgs is the command line for one conversion. Wrapping is disabled
// so a paragraph stays on one line in both directions.
func pandocArgs(from, to string) []string {
	return []string{"--from", from, "--to", to, "--wrap=none"}
}

// runner abstracts command execution for testing.
type runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osRunner struct{}

func (osRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// PandocConverter runs a locally installed pandoc binary.
type PandocConverter struct {
	// Bin is the pandoc executable (default "pandoc").
	Bin string
	run runner
}

// NewPandocConverter returns a converter using pandoc from PATH.
func NewPandocConverter() *PandocConverter {
	return &PandocConverter{Bin: "pandoc", run: osRunner{}}
}

// Convert pipes text through pandoc.
func (p *PandocConverter) Convert(ctx context.Context, text, from, to string) (string, error) {
	if _, err := p.run.LookPath(p.Bin); err != nil {
		return "", fmt.Errorf("%s not found on PATH (install it or set notes.converter): %w", p.Bin, err)
	}
	var stdout, stderr bytes.Buffer
	if err := p.run.Run(ctx, p.Bin, pandocArgs(from, to), strings.NewReader(text), &stdout, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", p.Bin, err, msg)
		}
		return "", fmt.Errorf("%s: %w", p.Bin, err)
	}
	return stdout.String(), nil
}
