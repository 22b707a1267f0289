package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the local cache",
	Long: `Reindex recomputes every search document from cached items and notes.
It never contacts the remote library and is always safe to run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.syncer.Reindex(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d items.\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}
