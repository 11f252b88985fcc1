// Package orca describes the AMM routes consumed by the relay core. Route
// discovery and curve math are owned by the pool-routing service; this
// package only carries the topology and the estimates the fee model needs.
package orca

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Service discovers tradable routes between two mints. Implementations wrap
// the Orca pool registry; the relay core consumes routes read-only.
type Service interface {
	// GetTradablePoolsPairs returns every known route (1 or 2 pools) from
	// fromMint to toMint.
	GetTradablePoolsPairs(ctx context.Context, fromMint, toMint solana.PublicKey) ([]PoolsPair, error)
	// FindBestPoolsPairForInputAmount picks the route yielding the best
	// output for a fixed input.
	FindBestPoolsPairForInputAmount(inputAmount uint64, pairs []PoolsPair) (PoolsPair, error)
	// FindBestPoolsPairForEstimatedAmount picks the route needing the least
	// input to produce the given output.
	FindBestPoolsPairForEstimatedAmount(estimatedAmount uint64, pairs []PoolsPair) (PoolsPair, error)
}

// Pool is a single AMM pool. Balances and fee fractions are snapshots taken
// at route-discovery time.
type Pool struct {
	Account        solana.PublicKey
	Authority      solana.PublicKey
	ProgramID      solana.PublicKey
	PoolTokenMint  solana.PublicKey
	FeeAccount     solana.PublicKey
	TokenAMint     solana.PublicKey
	TokenBMint     solana.PublicKey
	TokenAccountA  solana.PublicKey
	TokenAccountB  solana.PublicKey
	TokenABalance  uint64
	TokenBBalance  uint64
	FeeNumerator   uint64
	FeeDenominator uint64
}

// Mints returns both mints of the pool.
func (p Pool) Mints() [2]solana.PublicKey {
	return [2]solana.PublicKey{p.TokenAMint, p.TokenBMint}
}

// HasMint reports whether the pool trades the given mint on either side.
func (p Pool) HasMint(mint solana.PublicKey) bool {
	return p.TokenAMint.Equals(mint) || p.TokenBMint.Equals(mint)
}

// TokenAccounts orients the pool's holding accounts so that source holds the
// input mint and destination the output mint.
func (p Pool) TokenAccounts(inputMint solana.PublicKey) (source, destination solana.PublicKey, err error) {
	switch {
	case p.TokenAMint.Equals(inputMint):
		return p.TokenAccountA, p.TokenAccountB, nil
	case p.TokenBMint.Equals(inputMint):
		return p.TokenAccountB, p.TokenAccountA, nil
	default:
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("pool %s does not trade mint %s", p.Account, inputMint)
	}
}

// reserves orients the pool so that in/out match the requested input mint
// direction. A pool stores token A on one side and token B on the other; a
// swap may run in either direction.
func (p Pool) reserves(inputMint solana.PublicKey) (in, out uint64, err error) {
	switch {
	case p.TokenAMint.Equals(inputMint):
		return p.TokenABalance, p.TokenBBalance, nil
	case p.TokenBMint.Equals(inputMint):
		return p.TokenBBalance, p.TokenABalance, nil
	default:
		return 0, 0, fmt.Errorf("pool %s does not trade mint %s", p.Account, inputMint)
	}
}

// OutputMint returns the mint on the opposite side of inputMint.
func (p Pool) OutputMint(inputMint solana.PublicKey) (solana.PublicKey, error) {
	switch {
	case p.TokenAMint.Equals(inputMint):
		return p.TokenBMint, nil
	case p.TokenBMint.Equals(inputMint):
		return p.TokenAMint, nil
	default:
		return solana.PublicKey{}, fmt.Errorf("pool %s does not trade mint %s", p.Account, inputMint)
	}
}

// MinimumAmountOut estimates the constant-product output for inputAmount,
// reduced by slippage. Estimate only; the executed amount is decided by the
// pool program.
func (p Pool) MinimumAmountOut(inputAmount uint64, inputMint solana.PublicKey, slippage float64) (uint64, error) {
	reserveIn, reserveOut, err := p.reserves(inputMint)
	if err != nil {
		return 0, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, fmt.Errorf("pool %s has empty reserves", p.Account)
	}

	amountIn := applyFee(inputAmount, p.FeeNumerator, p.FeeDenominator)
	estimated := uint64(float64(reserveOut) * float64(amountIn) / float64(reserveIn+amountIn))
	return uint64(float64(estimated) * (1 - slippage)), nil
}

// InputAmount estimates the input needed so the constant-product output, with
// slippage headroom, reaches minimumReceiveAmount.
func (p Pool) InputAmount(minimumReceiveAmount uint64, inputMint solana.PublicKey, slippage float64) (uint64, error) {
	reserveIn, reserveOut, err := p.reserves(inputMint)
	if err != nil {
		return 0, err
	}
	if reserveIn == 0 || reserveOut <= minimumReceiveAmount {
		return 0, fmt.Errorf("pool %s cannot cover %d", p.Account, minimumReceiveAmount)
	}

	target := uint64(float64(minimumReceiveAmount) / (1 - slippage))
	if reserveOut <= target {
		return 0, fmt.Errorf("pool %s cannot cover %d with slippage", p.Account, minimumReceiveAmount)
	}
	amountIn := uint64(float64(reserveIn) * float64(target) / float64(reserveOut-target))
	return unapplyFee(amountIn, p.FeeNumerator, p.FeeDenominator), nil
}

func applyFee(amount, feeNumerator, feeDenominator uint64) uint64 {
	if feeDenominator == 0 {
		return amount
	}
	return amount - amount*feeNumerator/feeDenominator
}

func unapplyFee(amount, feeNumerator, feeDenominator uint64) uint64 {
	if feeDenominator == 0 || feeNumerator >= feeDenominator {
		return amount
	}
	return amount * feeDenominator / (feeDenominator - feeNumerator)
}

// PoolsPair is an ordered route of one (direct) or two (transitive) pools.
// The fee model supports no route longer than two hops.
type PoolsPair []Pool

// IsValid reports whether the route length is supported.
func (pp PoolsPair) IsValid() bool {
	return len(pp) == 1 || len(pp) == 2
}

// IntermediateMint returns the mint shared by both pools of a transitive
// route. It returns an error for direct routes and for pool pairs that do
// not share exactly one mint.
func (pp PoolsPair) IntermediateMint() (solana.PublicKey, error) {
	if len(pp) != 2 {
		return solana.PublicKey{}, fmt.Errorf("route has %d pools, transit applies to 2", len(pp))
	}

	var shared []solana.PublicKey
	for _, mint := range pp[0].Mints() {
		if pp[1].HasMint(mint) {
			shared = append(shared, mint)
		}
	}
	if len(shared) != 1 {
		return solana.PublicKey{}, fmt.Errorf("pools share %d mints, want exactly 1", len(shared))
	}
	return shared[0], nil
}

// InputAmountForEstimatedAmount walks the route backwards to find the input
// needed to receive minimumAmountOut after the final hop.
func (pp PoolsPair) InputAmountForEstimatedAmount(minimumAmountOut uint64, fromMint solana.PublicKey, slippage float64) (uint64, error) {
	if !pp.IsValid() {
		return 0, fmt.Errorf("route has %d pools, want 1 or 2", len(pp))
	}
	if len(pp) == 1 {
		return pp[0].InputAmount(minimumAmountOut, fromMint, slippage)
	}

	intermediate, err := pp[0].OutputMint(fromMint)
	if err != nil {
		return 0, err
	}
	secondIn, err := pp[1].InputAmount(minimumAmountOut, intermediate, slippage)
	if err != nil {
		return 0, err
	}
	return pp[0].InputAmount(secondIn, fromMint, slippage)
}
