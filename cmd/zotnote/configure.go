package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotnote/internal/config"
	"github.com/pdiddy/zotnote/internal/prompt"
	"github.com/pdiddy/zotnote/internal/syncer"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set up credentials and note preferences interactively",
	Long: `Configure asks for the Zotero API key, library ID and note settings and
saves them to the config file in use, or to ~/.config/zotnote/zotnote.yaml
when there is none yet. The file is readable by you only. When credentials
are set, the local index is then built with a first sync.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		updated := cfg
		if err := prompt.Configure(cmd.Context(), &updated, os.Stdin, os.Stderr); err != nil {
			return err
		}
		if err := config.Validate(updated); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Write(path, updated); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Saved %s\n", path)

		cfg = updated
		if config.RequireRemote(cfg) != nil {
			fmt.Fprintln(out, "No credentials yet; skipping the initial sync.")
			return nil
		}
		fmt.Fprintln(out, "Initializing local index...")
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()
		sum, err := a.syncer.Sync(cmd.Context(), syncer.ModeIncremental)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Synchronized: %s\n", sum)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
}
