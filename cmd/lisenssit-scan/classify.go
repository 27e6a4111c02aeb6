package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qwc/lisenssit/internal/licenses"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <license-file>",
	Short: "Print the SPDX identifier of a single license file",
	Long: `Classify extracts the text of a license file (plain text, Markdown,
HTML or PDF) and matches it against the known SPDX license templates.
Prints UNKNOWN when no template matches.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := licenses.ExtractText(args[0])
		if err != nil {
			return fmt.Errorf("reading license file: %w", err)
		}

		id, ok := licenses.MatchSPDX(text)
		if !ok {
			id = licenses.Unknown
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
