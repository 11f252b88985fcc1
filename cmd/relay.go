package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"sol-relay/config"
	"sol-relay/pkg/client"
	"sol-relay/pkg/relay"
)

var (
	relayFeeMint    string
	relayFeeAccount string
	relayPoolsFile  string
	relaySignOnly   bool
)

var relayCmd = &cobra.Command{
	Use:   "relay <base64-transaction>",
	Short: "Relay a prepared transaction through the fee relayer",
	Long: `Submit a prepared, base64-encoded transaction through the fee relayer.
The relay account is topped up first when the expected fee exceeds its
balance, swapping from the --fee-mint token.

The transaction must name the relay fee payer as its first account. Requires
a configured signing key (SOL_RELAY_PRIVATE_KEY).

Examples:
  sol-relay relay <base64-tx> --fee-mint USDC --pools pools.json
  sol-relay relay <base64-tx> --fee-mint SOL
  sol-relay relay <base64-tx> --fee-mint USDC --sign-only`,
	Args: cobra.ExactArgs(1),
	Run:  runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVar(&relayFeeMint, "fee-mint", "SOL", "Token the fee is paid in")
	relayCmd.Flags().StringVar(&relayFeeAccount, "fee-account", "", "Token account holding the fee token (defaults to the associated account)")
	relayCmd.Flags().StringVar(&relayPoolsFile, "pools", "", "JSON pool table for top-up routes")
	relayCmd.Flags().BoolVar(&relaySignOnly, "sign-only", false, "Fetch the fee payer signature without submitting")
}

func runRelay(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	rawTx, err := base64.StdEncoding.DecodeString(args[0])
	if err != nil {
		printError(fmt.Errorf("invalid base64 transaction: %w", err))
		os.Exit(1)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(rawTx))
	if err != nil {
		printError(fmt.Errorf("decoding transaction: %w", err))
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	env, err := buildStack(cfg, relayPoolsFile, true, verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	feeMint, err := parseMint(relayFeeMint)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	feeToken, err := resolveFeeToken(env, feeMint)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Relaying transaction..."
		s.Start()
	}

	signatures, relayErr := relayDecodedTransaction(ctx, env, tx, feeToken)
	if !jsonOutput {
		s.Stop()
	}
	if relayErr != nil {
		printError(relayErr)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"signatures": signatures,
			"fee_mint":   feeMint.String(),
			"sign_only":  relaySignOnly,
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	green := color.New(color.FgGreen)
	fmt.Println()
	if relaySignOnly {
		green.Println("Transaction signed by the fee payer")
	} else {
		green.Println("Transaction relayed")
	}
	for _, sig := range signatures {
		fmt.Printf("  %s\n", sig)
	}
	fmt.Println()
}

func relayDecodedTransaction(ctx context.Context, env *stack, tx *solana.Transaction, feeToken *relay.TokenAccount) ([]string, error) {
	if err := env.contextManager.Update(ctx); err != nil {
		return nil, err
	}
	relayContext, ok := env.contextManager.CurrentContext()
	if !ok {
		return nil, relay.ErrRelayInfoMissing
	}

	prepared := relay.PreparedTransaction{
		Transaction: tx,
		Signers:     []solana.PrivateKey{env.account},
		ExpectedFee: relay.FeeAmount{
			Transaction: uint64(tx.Message.Header.NumRequiredSignatures) * relayContext.LamportsPerSignature,
		},
	}

	configuration := relay.Configuration{
		OperationType: client.OperationTypeOther,
		AutoPayback:   true,
	}

	if relaySignOnly {
		return env.service.TopUpIfNeededAndSignRelayTransactions(ctx, []relay.PreparedTransaction{prepared}, feeToken, configuration)
	}
	return env.service.TopUpIfNeededAndRelayTransactions(ctx, []relay.PreparedTransaction{prepared}, feeToken, configuration)
}

func resolveFeeToken(env *stack, feeMint solana.PublicKey) (*relay.TokenAccount, error) {
	if relayFeeAccount != "" {
		address, err := solana.PublicKeyFromBase58(relayFeeAccount)
		if err != nil {
			return nil, fmt.Errorf("invalid fee account %q: %w", relayFeeAccount, err)
		}
		return &relay.TokenAccount{Address: address, Mint: feeMint}, nil
	}
	address, _, err := solana.FindAssociatedTokenAddress(env.account.PublicKey(), feeMint)
	if err != nil {
		return nil, fmt.Errorf("deriving fee token account: %w", err)
	}
	return &relay.TokenAccount{Address: address, Mint: feeMint}, nil
}
