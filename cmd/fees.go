package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"sol-relay/config"
	"sol-relay/pkg/relay"
)

var (
	feesDestination string
	feesPayingMint  string
	feesPoolsFile   string
)

var feesCmd = &cobra.Command{
	Use:   "fees <amount> <source-token> to <dest-token>",
	Short: "Quote the network fee for a relayed swap",
	Long: `Quote the network fee the relay will charge for swapping between two tokens.

The quote covers transaction signatures plus the rent for any token account
that the swap would have to create. Tokens may be given as a known symbol
(SOL, USDC, USDT) or a raw base58 mint.

Examples:
  sol-relay fees 1000000 SOL to USDC
  sol-relay fees 500000 USDC to SOL --destination <token-account>
  sol-relay fees 1000000 SOL to USDC --fee-mint USDC --pools pools.json`,
	Args: cobra.ExactArgs(4),
	Run:  runFees,
}

func init() {
	rootCmd.AddCommand(feesCmd)

	feesCmd.Flags().StringVar(&feesDestination, "destination", "", "Destination token account (optional)")
	feesCmd.Flags().StringVar(&feesPayingMint, "fee-mint", "", "Also quote the fee in this token (requires --pools)")
	feesCmd.Flags().StringVar(&feesPoolsFile, "pools", "", "JSON pool table for fee conversion routes")
}

func runFees(cmd *cobra.Command, args []string) {
	amount, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		printError(fmt.Errorf("invalid amount %q: %w", args[0], err))
		os.Exit(1)
	}
	if args[2] != "to" {
		printError(fmt.Errorf("expected: fees <amount> <source-token> to <dest-token>"))
		os.Exit(1)
	}

	sourceMint, err := parseMint(args[1])
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	destMint, err := parseMint(args[3])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	env, err := buildStack(cfg, feesPoolsFile, false, verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Fetch quote with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching fee quote..."
		s.Start()
	}

	fee, convertErr := quoteFee(ctx, env, sourceMint, destMint)
	if !jsonOutput {
		s.Stop()
	}
	if convertErr != nil {
		printError(convertErr)
		os.Exit(1)
	}

	payingFee, payingErr := maybeConvertFee(ctx, env, fee)

	if jsonOutput {
		output := map[string]interface{}{
			"amount":           amount,
			"source_mint":      sourceMint.String(),
			"destination_mint": destMint.String(),
			"transaction_fee":  fee.Transaction,
			"account_balances": fee.AccountBalances,
			"total_lamports":   fee.Total(),
		}
		if payingErr == nil && feesPayingMint != "" {
			output["fee_mint"] = feesPayingMint
			output["total_in_fee_token"] = payingFee.Total()
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	bold := color.New(color.Bold)
	fmt.Println()
	bold.Printf("Fee quote: %s -> %s\n", args[1], args[3])
	fmt.Printf("  Signatures:       %d lamports\n", fee.Transaction)
	fmt.Printf("  Account rent:     %d lamports\n", fee.AccountBalances)
	fmt.Printf("  Total:            %d lamports\n", fee.Total())
	if feesPayingMint != "" {
		if payingErr != nil {
			printError(fmt.Errorf("converting fee to %s: %w", feesPayingMint, payingErr))
			os.Exit(1)
		}
		fmt.Printf("  Total in %s:    %d\n", feesPayingMint, payingFee.Total())
	}
	fmt.Println()
}

func quoteFee(ctx context.Context, env *stack, sourceMint, destMint solana.PublicKey) (relay.FeeAmount, error) {
	if err := env.contextManager.Update(ctx); err != nil {
		return relay.FeeAmount{}, err
	}

	var destAddress *solana.PublicKey
	if feesDestination != "" {
		addr, err := solana.PublicKeyFromBase58(feesDestination)
		if err != nil {
			return relay.FeeAmount{}, fmt.Errorf("invalid destination %q: %w", feesDestination, err)
		}
		destAddress = &addr
	}

	return env.swapFeeRelayer.CalculateSwappingNetworkFees(ctx, sourceMint, destMint, destAddress)
}

func maybeConvertFee(ctx context.Context, env *stack, fee relay.FeeAmount) (relay.FeeAmount, error) {
	if feesPayingMint == "" {
		return relay.FeeAmount{}, nil
	}
	payingMint, err := parseMint(feesPayingMint)
	if err != nil {
		return relay.FeeAmount{}, err
	}
	return relay.NewFeeCalculator().CalculateFeeInPayingToken(ctx, env.orcaSwap, fee, payingMint)
}
