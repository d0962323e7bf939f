// Package cli implements Loka's command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loka",
	Short: "Loka — a local-first LLM gateway",
	Long: `Loka routes chat completions across a local model, a specialist
delegation tier, and paid cloud providers based on query complexity,
privacy content, and remaining budget — behind a single OpenAI-compatible
API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
