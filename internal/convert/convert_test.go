// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/pkg/types"
)

// fakeConverter records calls and upper-cases its input.
type fakeConverter struct {
	calls [][3]string
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, text, from, to string) (string, error) {
	f.calls = append(f.calls, [3]string{text, from, to})
	if f.err != nil {
		return "", f.err
	}
	return strings.ToUpper(text), nil
}

func TestPipeline_Directions(t *testing.T) {
	ctx := context.Background()
	conv := &fakeConverter{}
	p := NewPipeline(conv, "rst")

	out, err := p.ToLocal(ctx, "<p>x</p>")
	require.NoError(t, err)
	assert.Equal(t, "<P>X</P>", out)

	out, err = p.ToRemote(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, "Y", out)

	assert.Equal(t, [][3]string{{"<p>x</p>", "html", "rst"}, {"y", "rst", "html"}}, conv.calls)
	assert.Equal(t, "rst", p.Dialect())
}

func TestPipeline_EmptyBodiesSkipConverter(t *testing.T) {
	conv := &fakeConverter{}
	p := NewPipeline(conv, "markdown")

	out, err := p.ToLocal(context.Background(), "  \n")
	require.NoError(t, err)
	assert.Empty(t, out)
	out, err = p.ToRemote(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, conv.calls)
}

func TestPipeline_FailureIsConversionError(t *testing.T) {
	p := NewPipeline(&fakeConverter{err: errors.New("pandoc: exit status 64")}, "markdown")

	_, err := p.ToRemote(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConversion))
	assert.Contains(t, err.Error(), "exit status 64")
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"markdown":             ".md",
		"markdown_strict":      ".md",
		"markdown+smart":       ".md",
		"gfm":                  ".md",
		"commonmark_x-raw_tex": ".md",
		"latex":                ".tex",
		"docbook5":             ".dbk",
		"rst":                  ".rst",
		"org":                  ".org",
		"asciidoc":             ".adoc",
		"":                     ".txt",
	}
	for dialect, want := range tests {
		assert.Equal(t, want, Extension(dialect), dialect)
	}
}

func TestBuiltin_HTMLToMarkdown(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"paragraph", "<p>hello</p>", "hello\n"},
		{"inline", "<h1>Title</h1><p>Some <strong>bold</strong> and <em>it</em>.</p>", "# Title\n\nSome **bold** and *it*.\n"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "- one\n- two\n"},
		{"ordered", "<ol><li><p>first</p></li><li>second</li></ol>", "1. first\n2. second\n"},
		{"link", `<p>see <a href="https://example.org">site</a></p>`, "see [site](https://example.org)\n"},
		{"code", "<pre><code>a := 1\nb := 2</code></pre>", "```\na := 1\nb := 2\n```\n"},
		{"quote", "<blockquote><p>quoted</p></blockquote>", "> quoted\n"},
		{"escape", "<p>a*b_c</p>", "a\\*b\\_c\n"},
		{"zotero wrapper", `<div data-schema-version="8"><p>note</p></div>`, "note\n"},
		{"empty", "", ""},
	}
	conv := NewBuiltinConverter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := conv.Convert(context.Background(), tt.html, "html", "markdown")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltin_MarkdownToHTML(t *testing.T) {
	conv := NewBuiltinConverter()
	got, err := conv.Convert(context.Background(), "hello *world*\n\n- a\n- b\n", "markdown", "html")
	require.NoError(t, err)
	assert.Equal(t, "<p>hello <em>world</em></p>\n<ul>\n<li>a</li>\n<li>b</li>\n</ul>\n", got)

	_, err = conv.Convert(context.Background(), "x", "rst", "html")
	assert.Error(t, err)
}

// Round trips are not the identity: setext headings come back as ATX
// headings and emphasis markers are normalized.
func TestBuiltin_RoundTripIsLossy(t *testing.T) {
	ctx := context.Background()
	p := NewPipeline(NewBuiltinConverter(), "markdown")

	original := "Title\n=====\n\n_hello_\n"
	html, err := p.ToRemote(ctx, original)
	require.NoError(t, err)
	back, err := p.ToLocal(ctx, html)
	require.NoError(t, err)

	assert.Equal(t, "# Title\n\n*hello*\n", back)
	assert.NotEqual(t, original, back)

	// A second round trip is stable.
	html2, err := p.ToRemote(ctx, back)
	require.NoError(t, err)
	again, err := p.ToLocal(ctx, html2)
	require.NoError(t, err)
	assert.Equal(t, back, again)
}

// --- pandoc backend ---

type fakeRunner struct {
	missing bool
	args    []string
	stdout  string
	stderr  string
	err     error
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.missing {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f.args = append([]string{name}, args...)
	io.Copy(io.Discard, stdin)
	io.WriteString(stdout, f.stdout)
	io.WriteString(stderr, f.stderr)
	return f.err
}

func TestPandocConverter(t *testing.T) {
	run := &fakeRunner{stdout: "hello\n"}
	p := &PandocConverter{Bin: "pandoc", run: run}

	out, err := p.Convert(context.Background(), "<p>hello</p>", "html", "markdown")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	assert.Equal(t, []string{"pandoc", "--from", "html", "--to", "markdown", "--wrap=none"}, run.args)

	run.err, run.stderr = errors.New("exit status 21"), "Unknown output format foo"
	_, err = p.Convert(context.Background(), "x", "html", "foo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown output format foo")

	_, err = (&PandocConverter{Bin: "pandoc", run: &fakeRunner{missing: true}}).Convert(context.Background(), "x", "html", "markdown")
	assert.ErrorContains(t, err, "not found on PATH")
}

// --- container backend ---

type fakeRuntime struct {
	image string
	args  []string
}

func (f *fakeRuntime) Name() string                              { return "podman" }
func (f *fakeRuntime) Available(context.Context) bool            { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return nil }
func (f *fakeRuntime) Pull(context.Context, string) error        { return nil }
func (f *fakeRuntime) Run(_ context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error {
	f.image, f.args = image, args
	data, _ := io.ReadAll(stdin)
	_, err := stdout.Write([]byte("converted " + string(data)))
	return err
}

func TestContainerConverter(t *testing.T) {
	rt := &fakeRuntime{}
	c := newContainerConverter(rt)

	out, err := c.Convert(context.Background(), "hi", "markdown", "html")
	require.NoError(t, err)
	assert.Equal(t, "converted hi", out)
	assert.Equal(t, PandocImage, rt.image)
	assert.Equal(t, []string{"--from", "markdown", "--to", "html", "--wrap=none"}, rt.args)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	conv, err := New(ctx, types.NotesConfig{Converter: types.ConverterPandoc, Dialect: "rst"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &PandocConverter{}, conv)

	conv, err = New(ctx, types.NotesConfig{Converter: types.ConverterBuiltin, Dialect: "markdown"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BuiltinConverter{}, conv)

	_, err = New(ctx, types.NotesConfig{Converter: types.ConverterBuiltin, Dialect: "latex"}, nil)
	assert.Error(t, err)

	_, err = New(ctx, types.NotesConfig{Converter: "word"}, nil)
	assert.Error(t, err)
}
