package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// SwapFeeCalculator estimates the network fee the relay server will front
// for a swap, before the transaction is built.
type SwapFeeCalculator interface {
	CalculateSwappingNetworkFees(
		ctx context.Context,
		relayContext RelayContext,
		owner solana.PublicKey,
		swapPoolsCount int,
		sourceTokenMint solana.PublicKey,
		destinationTokenMint solana.PublicKey,
		destinationAddress *solana.PublicKey,
	) (FeeAmount, error)
}

type swapFeeCalculator struct {
	destinationAnalysator DestinationAnalysator
}

// NewSwapFeeCalculator builds the default calculator. Destination existence
// is resolved through the given analysator; an explicit destinationAddress
// does not bypass analysis.
func NewSwapFeeCalculator(destinationAnalysator DestinationAnalysator) SwapFeeCalculator {
	return &swapFeeCalculator{destinationAnalysator: destinationAnalysator}
}

// CalculateSwappingNetworkFees prices a swap route.
//
// Every relayed swap carries the fee payer's and the owner's signatures.
// Moving native SOL on either side needs a temporary wrapped-SOL account
// with its own signature. A transitive route whose wrapped source must also
// create the destination account cannot fit in one transaction and pays a
// second fee-payer/owner signature pair.
func (c *swapFeeCalculator) CalculateSwappingNetworkFees(
	ctx context.Context,
	relayContext RelayContext,
	owner solana.PublicKey,
	swapPoolsCount int,
	sourceTokenMint solana.PublicKey,
	destinationTokenMint solana.PublicKey,
	destinationAddress *solana.PublicKey,
) (FeeAmount, error) {
	analysis, err := c.destinationAnalysator.AnalyseDestination(ctx, owner, destinationTokenMint)
	if err != nil {
		return FeeAmount{}, err
	}
	var fee FeeAmount
	fee.Transaction += relayContext.LamportsPerSignature * 2

	if sourceTokenMint.Equals(solana.WrappedSol) {
		fee.Transaction += relayContext.LamportsPerSignature
	}

	if analysis.IsWSOLAccount() {
		// Unwrapping into native SOL needs the temporary account's own
		// signature but never a rent charge.
		fee.Transaction += relayContext.LamportsPerSignature
	} else if analysis.NeedsCreation() {
		fee.AccountBalances += relayContext.MinimumTokenAccountBalance

		// The split into two transactions only happens when the wrapped
		// source and the destination creation cannot share one transaction.
		if swapPoolsCount == 2 && sourceTokenMint.Equals(solana.WrappedSol) {
			fee.Transaction += relayContext.LamportsPerSignature * 2
		}
	}

	return fee, nil
}
