// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the zotnote CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotnote/internal/apperr"
	"github.com/pdiddy/zotnote/internal/config"
	"github.com/pdiddy/zotnote/internal/logging"
	"github.com/pdiddy/zotnote/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg and cfgFile are filled in before any command runs.
	cfg     types.Config
	cfgFile string
	logger  = slog.Default()
	logFile io.Closer
)

// rootCmd is the base command for the zotnote CLI.
var rootCmd = &cobra.Command{
	Use:   "zotnote",
	Short: "Search a Zotero library offline and edit its notes in your editor",
	Long: `zotnote keeps a local copy of a Zotero library, answers full-text queries
against it, and lets you add or edit item notes in a markup dialect of your
choice (markdown by default) with your own text editor.

Items are named by their eight-character key or by a search query. When a
query matches several items you are asked to pick one.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./zotnote.yaml or ~/.config/zotnote/zotnote.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("config")
	loaded, used, err := config.Load(config.Options{File: file})
	if err != nil {
		return err
	}
	if err := config.Validate(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg, cfgFile = loaded, used

	verbose, _ := cmd.Flags().GetBool("verbose")
	l, closer, err := logging.New(cfg.Log, os.Stderr, verbose)
	if err != nil {
		return err
	}
	logger, logFile = l, closer
	slog.SetDefault(logger)
	if cfgFile != "" {
		logger.Debug("using config file", slog.String("path", cfgFile))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zotnote:", apperr.Message(err))
		logger.Debug("command failed", slog.String("error", err.Error()))
		os.Exit(apperr.ExitCode(err))
	}
}
