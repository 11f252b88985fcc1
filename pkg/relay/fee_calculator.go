package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"sol-relay/pkg/orca"
)

// MinimumTopUpAmount is the floor applied to any non-zero top-up so tiny
// residual fees never produce a dust-sized relay swap.
const MinimumTopUpAmount uint64 = 10000

// TopUpSlippage is the slippage tolerance applied when converting a fee into
// the paying token through a swap route.
const TopUpSlippage = 0.01

// FeeCalculator prices relay-account top-ups.
type FeeCalculator interface {
	// CalculateNeededTopUpAmount returns how much the relay account must be
	// funded, in lamports, so it can front expectedFee. Free-tier quota and
	// the relay account's current balance are deducted first.
	CalculateNeededTopUpAmount(
		relayContext RelayContext,
		expectedFee FeeAmount,
		payingTokenMint *solana.PublicKey,
	) FeeAmount

	// CalculateFeeInPayingToken converts a lamport fee into the paying
	// token through the best swap route toward wrapped SOL.
	CalculateFeeInPayingToken(
		ctx context.Context,
		orcaSwap orca.Service,
		feeInSOL FeeAmount,
		payingFeeTokenMint solana.PublicKey,
	) (FeeAmount, error)
}

// DefaultFeeCalculator is the stock top-up pricing policy.
type DefaultFeeCalculator struct{}

// NewFeeCalculator returns the stock policy.
func NewFeeCalculator() *DefaultFeeCalculator {
	return &DefaultFeeCalculator{}
}

func (c *DefaultFeeCalculator) CalculateNeededTopUpAmount(
	relayContext RelayContext,
	expectedFee FeeAmount,
	payingTokenMint *solana.PublicKey,
) FeeAmount {
	amount := c.calculateMinTopUpAmount(relayContext, expectedFee, payingTokenMint)

	if amount.Total() > 0 && amount.Total() < MinimumTopUpAmount {
		amount.Transaction += MinimumTopUpAmount - amount.Total()
	}
	return amount
}

func (c *DefaultFeeCalculator) calculateMinTopUpAmount(
	relayContext RelayContext,
	expectedFee FeeAmount,
	payingTokenMint *solana.PublicKey,
) FeeAmount {
	neededAmount := expectedFee

	// The top-up itself is a two-signature transaction.
	expectedTopUpNetworkFee := 2 * relayContext.LamportsPerSignature
	expectedTransactionNetworkFee := expectedFee.Transaction

	neededTopUpNetworkFee := expectedTopUpNetworkFee
	neededTransactionNetworkFee := expectedTransactionNetworkFee

	if relayContext.UsageStatus.IsFreeTransactionFeeAvailable(expectedTopUpNetworkFee) {
		neededTopUpNetworkFee = 0
	}

	// Check the target transaction against the quota as it will stand after
	// the top-up has consumed one slot.
	usageAfterTopUp := relayContext.UsageStatus
	usageAfterTopUp.CurrentUsage++
	usageAfterTopUp.AmountUsed += expectedTopUpNetworkFee
	if usageAfterTopUp.IsFreeTransactionFeeAvailable(expectedTransactionNetworkFee) {
		neededTransactionNetworkFee = 0
	}

	neededAmount.Transaction = neededTopUpNetworkFee + neededTransactionNetworkFee

	if neededAmount.Total() == 0 {
		return neededAmount
	}

	neededAmountWithoutRelayAccount := neededAmount
	minimumRelayAccountBalance := relayContext.MinimumRelayAccountBalance

	if relayAccountBalance, ok := relayContext.RelayAccountStatus.Balance(); ok {
		if relayAccountBalance < minimumRelayAccountBalance {
			neededAmount.AccountBalances += minimumRelayAccountBalance - relayAccountBalance
		} else {
			// Spendable balance is whatever sits above the rent floor; it
			// pays down the transaction fee first, then account creation.
			relayAccountBalance -= minimumRelayAccountBalance

			if relayAccountBalance >= neededAmount.Transaction {
				relayAccountBalance -= neededAmount.Transaction
				neededAmount.Transaction = 0

				if relayAccountBalance >= neededAmount.AccountBalances {
					neededAmount.AccountBalances = 0
				} else {
					neededAmount.AccountBalances -= relayAccountBalance
				}
			} else {
				neededAmount.Transaction -= relayAccountBalance
			}
		}
	} else {
		neededAmount.AccountBalances += minimumRelayAccountBalance
	}

	// Paying in wrapped SOL compensates the relayer inline, without routing
	// through the relay account at all.
	if neededAmount.Total() > 0 && payingTokenMint != nil && payingTokenMint.Equals(solana.WrappedSol) {
		return neededAmountWithoutRelayAccount
	}

	return neededAmount
}

func (c *DefaultFeeCalculator) CalculateFeeInPayingToken(
	ctx context.Context,
	orcaSwap orca.Service,
	feeInSOL FeeAmount,
	payingFeeTokenMint solana.PublicKey,
) (FeeAmount, error) {
	if payingFeeTokenMint.Equals(solana.WrappedSol) {
		return feeInSOL, nil
	}

	tradablePairs, err := orcaSwap.GetTradablePoolsPairs(ctx, payingFeeTokenMint, solana.WrappedSol)
	if err != nil {
		return FeeAmount{}, err
	}
	topUpPools, err := orcaSwap.FindBestPoolsPairForEstimatedAmount(feeInSOL.Total(), tradablePairs)
	if err != nil || topUpPools == nil {
		return FeeAmount{}, ErrSwapPoolsNotFound
	}

	var fee FeeAmount
	if feeInSOL.Transaction > 0 {
		fee.Transaction, err = topUpPools.InputAmountForEstimatedAmount(feeInSOL.Transaction, payingFeeTokenMint, TopUpSlippage)
		if err != nil {
			return FeeAmount{}, err
		}
	}
	if feeInSOL.AccountBalances > 0 {
		fee.AccountBalances, err = topUpPools.InputAmountForEstimatedAmount(feeInSOL.AccountBalances, payingFeeTokenMint, TopUpSlippage)
		if err != nil {
			return FeeAmount{}, err
		}
	}
	return fee, nil
}
