package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sol-relay",
	Short: "A CLI for relaying Solana transactions through a fee relayer",
	Long: `sol-relay is a command-line tool for interacting with a Solana fee relayer:
a service that fronts network fees so users can transact without holding SOL,
paying fees back in any SPL token instead.

Examples:
  sol-relay fees 1000000 SOL to USDC
  sol-relay context
  sol-relay relay <base64-transaction> --fee-mint <mint>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
