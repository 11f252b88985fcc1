package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sol-relay/config"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Refresh and display the relay context",
	Long: `Fetch the relay context for the configured wallet: rent minimums, the
current fee per signature, the relay fee payer, the relay account state and
the free-tier usage counters.

Examples:
  sol-relay context
  sol-relay context --json`,
	Args: cobra.NoArgs,
	Run:  runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	env, err := buildStack(cfg, "", false, verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching relay context..."
		s.Start()
	}

	updateErr := env.contextManager.Update(ctx)
	if !jsonOutput {
		s.Stop()
	}
	if updateErr != nil {
		printError(updateErr)
		os.Exit(1)
	}

	relayContext, ok := env.contextManager.CurrentContext()
	if !ok {
		printError(fmt.Errorf("relay context unavailable"))
		os.Exit(1)
	}

	relayBalance, relayCreated := relayContext.RelayAccountStatus.Balance()

	if jsonOutput {
		output := map[string]interface{}{
			"owner":                          env.account.PublicKey().String(),
			"fee_payer":                      relayContext.FeePayerAddress.String(),
			"lamports_per_signature":         relayContext.LamportsPerSignature,
			"minimum_token_account_balance":  relayContext.MinimumTokenAccountBalance,
			"minimum_relay_account_balance":  relayContext.MinimumRelayAccountBalance,
			"relay_account_created":          relayCreated,
			"relay_account_balance":          relayBalance,
			"free_transactions_used":         relayContext.UsageStatus.CurrentUsage,
			"free_transactions_max":          relayContext.UsageStatus.MaxUsage,
			"free_fee_amount_used":           relayContext.UsageStatus.AmountUsed,
			"free_fee_amount_max":            relayContext.UsageStatus.MaxAmount,
			"reached_limit_link_creation":    relayContext.UsageStatus.ReachedLimitLinkCreation,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	bold.Println("Relay context")
	fmt.Printf("  Owner:                  %s\n", env.account.PublicKey())
	fmt.Printf("  Fee payer:              %s\n", relayContext.FeePayerAddress)
	fmt.Printf("  Lamports per signature: %d\n", relayContext.LamportsPerSignature)
	fmt.Printf("  Token account rent:     %d lamports\n", relayContext.MinimumTokenAccountBalance)
	fmt.Printf("  Relay account rent:     %d lamports\n", relayContext.MinimumRelayAccountBalance)
	if relayCreated {
		green.Printf("  Relay account:          created, balance %d lamports\n", relayBalance)
	} else {
		yellow.Println("  Relay account:          not yet created")
	}
	fmt.Printf("  Free transactions:      %d of %d used\n",
		relayContext.UsageStatus.CurrentUsage, relayContext.UsageStatus.MaxUsage)
	fmt.Printf("  Free fee amount:        %d of %d lamports used\n",
		relayContext.UsageStatus.AmountUsed, relayContext.UsageStatus.MaxAmount)
	fmt.Println()
}
