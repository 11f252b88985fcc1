package relay

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSwappingNetworkFees(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	splMint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	newMint := solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")

	analysator := &stubAnalysator{
		results: map[solana.PublicKey]DestinationAnalysatorResult{
			solana.WrappedSol: WSOLAccount(),
			splMint:           SPLAccount(false),
			newMint:           SPLAccount(true),
		},
	}
	calculator := NewSwapFeeCalculator(analysator)
	relayContext := testRelayContext()

	tests := []struct {
		name         string
		source       solana.PublicKey
		destination  solana.PublicKey
		poolsCount   int
		wantFee      uint64
		wantBalances uint64
	}{
		{"SOL to new SPL account, direct", solana.WrappedSol, newMint, 1, 15000, 2039280},
		{"SOL to existing SPL account, direct", solana.WrappedSol, splMint, 1, 15000, 0},
		{"SPL to new SPL account, direct", splMint, newMint, 1, 10000, 2039280},
		{"SPL to existing SPL account, direct", splMint, splMint, 1, 10000, 0},
		{"SPL to SOL, direct", splMint, solana.WrappedSol, 1, 15000, 0},
		{"SOL to new SPL account, transitive", solana.WrappedSol, newMint, 2, 25000, 2039280},
		{"SOL to existing SPL account, transitive", solana.WrappedSol, splMint, 2, 15000, 0},
		{"SPL to new SPL account, transitive", splMint, newMint, 2, 10000, 2039280},
		{"SPL to existing SPL account, transitive", splMint, splMint, 2, 10000, 0},
		{"SPL to SOL, transitive", splMint, solana.WrappedSol, 2, 15000, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fee, err := calculator.CalculateSwappingNetworkFees(
				context.Background(), relayContext, owner, tc.poolsCount, tc.source, tc.destination, nil,
			)
			require.NoError(t, err)
			assert.Equal(t, tc.wantFee, fee.Transaction)
			assert.Equal(t, tc.wantBalances, fee.AccountBalances)
		})
	}
}

func TestCalculateSwappingNetworkFeesIsIdempotent(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	newMint := solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	analysator := &stubAnalysator{
		results: map[solana.PublicKey]DestinationAnalysatorResult{
			newMint: SPLAccount(true),
		},
	}
	calculator := NewSwapFeeCalculator(analysator)
	relayContext := testRelayContext()

	first, err := calculator.CalculateSwappingNetworkFees(
		context.Background(), relayContext, owner, 2, solana.WrappedSol, newMint, nil,
	)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := calculator.CalculateSwappingNetworkFees(
			context.Background(), relayContext, owner, 2, solana.WrappedSol, newMint, nil,
		)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCalculateSwappingNetworkFeesIgnoresProvidedAddress(t *testing.T) {
	// A caller-supplied destination address never bypasses analysis: the
	// mint decides the classification.
	owner := solana.NewWallet().PublicKey()
	newMint := solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	analysator := &stubAnalysator{
		results: map[solana.PublicKey]DestinationAnalysatorResult{
			newMint: SPLAccount(true),
		},
	}
	calculator := NewSwapFeeCalculator(analysator)
	relayContext := testRelayContext()

	provided := solana.NewWallet().PublicKey()
	withAddress, err := calculator.CalculateSwappingNetworkFees(
		context.Background(), relayContext, owner, 1, solana.WrappedSol, newMint, &provided,
	)
	require.NoError(t, err)
	withoutAddress, err := calculator.CalculateSwappingNetworkFees(
		context.Background(), relayContext, owner, 1, solana.WrappedSol, newMint, nil,
	)
	require.NoError(t, err)

	assert.Equal(t, withoutAddress, withAddress)
	assert.Equal(t, uint64(2039280), withAddress.AccountBalances)
}
