package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"sol-relay/pkg/orca"
	solanaclient "sol-relay/pkg/solana"
)

// SwapFeeRelayer is the swap-facing facade: it prices relayed swaps and
// prepares the transactions the relay server will submit.
type SwapFeeRelayer interface {
	// CalculateSwappingNetworkFees prices a swap between two mints using
	// the best available route.
	CalculateSwappingNetworkFees(
		ctx context.Context,
		sourceTokenMint solana.PublicKey,
		destinationTokenMint solana.PublicKey,
		destinationAddress *solana.PublicKey,
	) (FeeAmount, error)

	// PrepareSwapTransactions builds the ordered transaction list for a
	// relayed swap along the given route.
	PrepareSwapTransactions(
		ctx context.Context,
		sourceToken TokenAccount,
		destinationTokenMint solana.PublicKey,
		destinationAddress *solana.PublicKey,
		pools orca.PoolsPair,
		inputAmount uint64,
		slippage float64,
	) (SwapTransactionsOutput, error)
}

type swapFeeRelayer struct {
	account        solana.PrivateKey
	contextManager ContextManager
	orcaSwap       orca.Service
	solana         solanaclient.Client
	calculator     SwapFeeCalculator
	builder        SwapTransactionBuilder
}

// NewSwapFeeRelayer wires the default facade.
func NewSwapFeeRelayer(
	account solana.PrivateKey,
	contextManager ContextManager,
	orcaSwap orca.Service,
	solanaClient solanaclient.Client,
	calculator SwapFeeCalculator,
	builder SwapTransactionBuilder,
) SwapFeeRelayer {
	return &swapFeeRelayer{
		account:        account,
		contextManager: contextManager,
		orcaSwap:       orcaSwap,
		solana:         solanaClient,
		calculator:     calculator,
		builder:        builder,
	}
}

func (r *swapFeeRelayer) CalculateSwappingNetworkFees(
	ctx context.Context,
	sourceTokenMint solana.PublicKey,
	destinationTokenMint solana.PublicKey,
	destinationAddress *solana.PublicKey,
) (FeeAmount, error) {
	relayContext, ok := r.contextManager.CurrentContext()
	if !ok {
		return FeeAmount{}, ErrRelayInfoMissing
	}

	pairs, err := r.orcaSwap.GetTradablePoolsPairs(ctx, sourceTokenMint, destinationTokenMint)
	if err != nil {
		return FeeAmount{}, err
	}
	if len(pairs) == 0 {
		return FeeAmount{}, ErrSwapPoolsNotFound
	}

	// The cheapest topology wins: any direct route beats a transitive one.
	swapPoolsCount := len(pairs[0])
	for _, pair := range pairs {
		if len(pair) < swapPoolsCount {
			swapPoolsCount = len(pair)
		}
	}

	return r.calculator.CalculateSwappingNetworkFees(
		ctx,
		relayContext,
		r.account.PublicKey(),
		swapPoolsCount,
		sourceTokenMint,
		destinationTokenMint,
		destinationAddress,
	)
}

func (r *swapFeeRelayer) PrepareSwapTransactions(
	ctx context.Context,
	sourceToken TokenAccount,
	destinationTokenMint solana.PublicKey,
	destinationAddress *solana.PublicKey,
	pools orca.PoolsPair,
	inputAmount uint64,
	slippage float64,
) (SwapTransactionsOutput, error) {
	relayContext, ok := r.contextManager.CurrentContext()
	if !ok {
		return SwapTransactionsOutput{}, ErrRelayInfoMissing
	}

	blockhash, err := r.solana.GetRecentBlockhash(ctx)
	if err != nil {
		return SwapTransactionsOutput{}, err
	}

	return r.builder.BuildSwapTransaction(ctx, relayContext, SwapTransactionParams{
		UserAccount:             r.account,
		Pools:                   pools,
		InputAmount:             inputAmount,
		Slippage:                slippage,
		SourceTokenAccount:      sourceToken,
		DestinationTokenMint:    destinationTokenMint,
		DestinationTokenAddress: destinationAddress,
		Blockhash:               blockhash,
	})
}
