package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotnote/internal/config"
	"github.com/pdiddy/zotnote/internal/launch"
	"github.com/pdiddy/zotnote/internal/resolve"
	"github.com/pdiddy/zotnote/pkg/types"
)

var readCmd = &cobra.Command{
	Use:   "read <id-or-query>",
	Short: "Open an item's attachment in the default viewer",
	Long: `Read opens the attached file of an item (usually the PDF) with the
desktop's default application. Stored attachments are looked up in
storage.dir and, when missing there, downloaded from the Zotero file API
into the cache directory. Linked files open from the path the library
records. When an item has several attachments, you are asked which one to
open.

With --with-note, a note session follows: you are asked whether to edit an
existing note, otherwise a new one is started.`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().BoolP("with-note", "n", false, "take a note on the item after opening it")
	readCmd.Flags().StringP("format", "f", "", "markup dialect for the note (default notes.dialect)")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	withNote, _ := cmd.Flags().GetBool("with-note")
	a, err := openApp(withNote)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.autoSync(ctx); err != nil {
		return err
	}

	it, err := a.resolver.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	if err := openAttachment(ctx, cmd, a, it); err != nil {
		return err
	}
	if !withNote {
		return nil
	}

	dialect, _ := cmd.Flags().GetString("format")
	o, err := a.orchestrator(ctx, dialect)
	if err != nil {
		return err
	}
	s, err := o.TakeNote(ctx, it.Key)
	if err != nil {
		return err
	}
	report(cmd, s)
	return nil
}

func openAttachment(ctx context.Context, cmd *cobra.Command, a *app, it types.Item) error {
	var files []types.Attachment
	for _, att := range it.Attachments {
		if att.Filename != "" || att.LocalPath != "" {
			files = append(files, att)
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("%s has no attached files", resolve.Label(it))
	}

	labels := make([]string, len(files))
	for i, f := range files {
		name := f.Filename
		if name == "" {
			name = filepath.Base(f.LocalPath)
		}
		labels[i] = fmt.Sprintf("%s (%s)", f.Title, name)
	}
	i, err := resolve.Choose(ctx, a.selector, "Open which attachment?", labels)
	if err != nil {
		return err
	}

	var dl launch.Downloader
	if a.client != nil {
		dl = a.client
	}
	path, err := launch.Retrieve(ctx, cfg.Storage.Dir, filepath.Join(config.CacheDir(), "attachments"), files[i], dl)
	if err != nil {
		return err
	}
	if err := launch.NewViewer().Open(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", path)
	return nil
}
