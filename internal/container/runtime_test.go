// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runPipedFunc  func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
	piped         []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	m.piped = append(m.piped, name+" "+strings.Join(args, " "))
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdin, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
		{
			name: "docker on PATH but daemon down, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "no container runtime available") {
					t.Errorf("error should mention no runtime available, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestEnsureImage(t *testing.T) {
	tests := []struct {
		name       string
		mkRT       func(executor) *runtime
		cmds       map[string]bool
		wantPulled bool
	}{
		{
			name: "docker image present",
			mkRT: newDockerRuntime,
			cmds: map[string]bool{"docker image inspect pandoc/core:latest": true},
		},
		{
			name: "podman image present",
			mkRT: newPodmanRuntime,
			cmds: map[string]bool{"podman image exists pandoc/core:latest": true},
		},
		{
			name:       "missing image is pulled",
			mkRT:       newDockerRuntime,
			wantPulled: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{runnableCmds: tt.cmds}
			if err := EnsureImage(context.Background(), tt.mkRT(exec), "pandoc/core:latest"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			pulled := len(exec.piped) == 1 && strings.HasSuffix(exec.piped[0], "pull --quiet pandoc/core:latest")
			if pulled != tt.wantPulled {
				t.Errorf("pulled = %v (calls %v), want %v", pulled, exec.piped, tt.wantPulled)
			}
		})
	}
}

func TestRun(t *testing.T) {
	exec := &mockExecutor{
		runPipedFunc: func(name string, args []string, stdin io.Reader, stdout, _ io.Writer) error {
			data, _ := io.ReadAll(stdin)
			_, _ = stdout.Write([]byte(strings.ToUpper(string(data))))
			return nil
		},
	}
	var out bytes.Buffer
	err := newPodmanRuntime(exec).Run(context.Background(), "pandoc/core:latest", []string{"-f", "html", "-t", "markdown"}, strings.NewReader("<p>x</p>"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "<P>X</P>" {
		t.Errorf("got output %q", got)
	}
	want := "podman run --rm -i --network none pandoc/core:latest -f html -t markdown"
	if exec.piped[0] != want {
		t.Errorf("command = %q, want %q", exec.piped[0], want)
	}
}

func TestRun_ErrorIncludesStderr(t *testing.T) {
	exec := &mockExecutor{
		runPipedFunc: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
			_, _ = stderr.Write([]byte("Unknown input format foo\n"))
			return errors.New("exit status 21")
		},
	}
	err := newDockerRuntime(exec).Run(context.Background(), "pandoc/core:latest", nil, strings.NewReader(""), io.Discard)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "Unknown input format foo") {
		t.Errorf("error should carry stderr, got: %v", err)
	}
}
