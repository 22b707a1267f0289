package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/zotnote/internal/csl"
	"github.com/pdiddy/zotnote/internal/prompt"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the cached library",
	Long: `Query searches titles, creators, abstracts, citation keys, dates and note
text. Terms are combined with AND; OR, NOT (or a leading -), parentheses,
"quoted phrases" and trailing * prefix matches are supported. Operators
must be written in upper case.

Results are ranked by how often the terms occur, best first.`,
	Example: `  zotnote query deep learn*
  zotnote query 'sutton OR bishop' -n 5
  zotnote query 'learning -deep' --json
  zotnote query bengio --csl > refs.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntP("limit", "n", 0, "maximum number of results (0 for all)")
	queryCmd.Flags().Bool("json", false, "output results as JSON")
	queryCmd.Flags().Bool("yaml", false, "output results as YAML")
	queryCmd.Flags().Bool("csl", false, "output results as a CSL-YAML bibliography for pandoc")
	queryCmd.MarkFlagsMutuallyExclusive("json", "yaml", "csl")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.autoSync(ctx); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	keys, err := a.index.Query(ctx, strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	items, err := a.store.ItemsByKey(ctx, keys)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(items)
	}
	if asCSL, _ := cmd.Flags().GetBool("csl"); asCSL {
		return csl.Write(out, items)
	}
	for _, it := range items {
		fmt.Fprintln(out, prompt.ItemLine(it))
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No matches.")
	}
	return nil
}
