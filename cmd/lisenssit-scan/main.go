// lisenssit-scan classifies dependency licenses from the command line,
// without a running server. It operates on the same scan bundles the server
// ingests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "lisenssit-scan",
	Short:         "Classify dependency licenses from scan bundles",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(scanCmd, classifyCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
