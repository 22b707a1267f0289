package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotnote/internal/fslock"
	"github.com/pdiddy/zotnote/internal/notes"
)

var addNoteCmd = &cobra.Command{
	Use:   "add-note <id-or-query>",
	Short: "Write a new note for an item in your editor",
	Long: `Add-note opens an empty buffer in notes.editor, falling back to $VISUAL,
$EDITOR and then vi when it is unset. When you save and quit, the text is
converted to HTML and added to the item as a child note. Quitting without
changes adds nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAddNote,
}

var editNoteCmd = &cobra.Command{
	Use:   "edit-note <id-or-query> [note-num]",
	Short: "Edit an existing note of an item in your editor",
	Long: `Edit-note converts the note to your markup dialect, opens it in your
editor, and writes the result back. The write only succeeds if nobody
changed the note remotely in the meantime; on a conflict your edited text
is kept in a temporary file and nothing is overwritten.

Notes are numbered from 1 in key order; without a number, an item with
several notes asks which one to edit.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runEditNote,
}

var exportNoteCmd = &cobra.Command{
	Use:   "export-note <id-or-query> [note-num]",
	Short: "Print a note in your markup dialect",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runExportNote,
}

func init() {
	for _, c := range []*cobra.Command{addNoteCmd, editNoteCmd, exportNoteCmd} {
		c.Flags().StringP("format", "f", "", "markup dialect for this note (default notes.dialect)")
		rootCmd.AddCommand(c)
	}
	exportNoteCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
}

func noteNumber(args []string) (int, error) {
	if len(args) < 2 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("note number must be a positive integer, got %q", args[1])
	}
	return n, nil
}

func noteSession(cmd *cobra.Command, needRemote bool) (*app, *notes.Orchestrator, error) {
	a, err := openApp(needRemote)
	if err != nil {
		return nil, nil, err
	}
	if err := a.autoSync(cmd.Context()); err != nil {
		a.Close()
		return nil, nil, err
	}
	dialect, _ := cmd.Flags().GetString("format")
	o, err := a.orchestrator(cmd.Context(), dialect)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, o, nil
}

func report(cmd *cobra.Command, s *notes.Session) {
	out := cmd.OutOrStdout()
	switch s.State() {
	case notes.StateCommitted:
		fmt.Fprintf(out, "Saved note %s on item %s.\n", s.NoteKey, s.ItemKey)
	case notes.StateUnchangedAbort:
		fmt.Fprintln(out, "No changes; nothing written.")
	}
}

func runAddNote(cmd *cobra.Command, args []string) error {
	a, o, err := noteSession(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := o.AddNote(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	report(cmd, s)
	return nil
}

func runEditNote(cmd *cobra.Command, args []string) error {
	n, err := noteNumber(args)
	if err != nil {
		return err
	}
	a, o, err := noteSession(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := o.EditNote(cmd.Context(), args[0], n)
	if err != nil {
		return err
	}
	report(cmd, s)
	return nil
}

func runExportNote(cmd *cobra.Command, args []string) error {
	n, err := noteNumber(args)
	if err != nil {
		return err
	}
	a, o, err := noteSession(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err := o.ExportNote(cmd.Context(), args[0], n, cmd.OutOrStdout())
		return err
	}
	var buf bytes.Buffer
	if _, err := o.ExportNote(cmd.Context(), args[0], n, &buf); err != nil {
		return err
	}
	if err := fslock.WriteFileAtomic(output, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	return nil
}
