package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotnote/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Bring the local cache up to date with the remote library",
	Long: `Sync fetches items, notes and attachments changed since the last sync.
With --full every record is fetched again and local entries the remote no
longer has are removed. The first sync is always full.

If the connection drops midway, everything received so far stays cached and
the next sync resumes from the last completed pass.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("full", false, "re-fetch the whole library")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	mode := syncer.ModeIncremental
	if full, _ := cmd.Flags().GetBool("full"); full {
		mode = syncer.ModeFull
	}
	sum, err := a.syncer.Sync(cmd.Context(), mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced (%s) to library version %d: %s\n", sum.Mode, sum.LibraryVersion, sum)
	return nil
}
