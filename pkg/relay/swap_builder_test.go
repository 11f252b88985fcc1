package relay

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay/program"
)

const testBlockhash = "DSfeYUm7WDw1YnKodR361rg8sUzUCGdat9t7sFjDuPWZ"

func swapBuilderFixture(results map[solana.PublicKey]DestinationAnalysatorResult) (SwapTransactionBuilder, solana.PrivateKey) {
	account := solana.NewWallet().PrivateKey
	chain := newMockSolanaClient()
	transitManager := NewTransitTokenAccountManager(account.PublicKey(), program.MainnetBeta, chain)
	builder := NewSwapTransactionBuilder(program.MainnetBeta, transitManager, &stubAnalysator{results: results})
	return builder, account
}

func swapBuilderPool(mintA, mintB solana.PublicKey) orca.Pool {
	return orca.Pool{
		Account:       solana.NewWallet().PublicKey(),
		Authority:     solana.NewWallet().PublicKey(),
		ProgramID:     solana.NewWallet().PublicKey(),
		PoolTokenMint: solana.NewWallet().PublicKey(),
		FeeAccount:    solana.NewWallet().PublicKey(),
		TokenAMint:    mintA,
		TokenBMint:    mintB,
		TokenAccountA: solana.NewWallet().PublicKey(),
		TokenAccountB: solana.NewWallet().PublicKey(),
		TokenABalance: 1_000_000_000,
		TokenBBalance: 1_000_000_000,
	}
}

func TestBuildSwapTransactionValidation(t *testing.T) {
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	builder, account := swapBuilderFixture(nil)
	relayContext := testRelayContext()

	t.Run("empty route is rejected", func(t *testing.T) {
		_, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
			UserAccount: account,
			InputAmount: 1000,
			Blockhash:   testBlockhash,
		})
		assert.ErrorIs(t, err, ErrSwapPoolsNotFound)
	})

	t.Run("zero input is rejected", func(t *testing.T) {
		pool := swapBuilderPool(usdc, solana.WrappedSol)
		_, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
			UserAccount: account,
			Pools:       orca.PoolsPair{pool},
			Blockhash:   testBlockhash,
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("bad blockhash is rejected", func(t *testing.T) {
		pool := swapBuilderPool(usdc, solana.WrappedSol)
		sourceAccount := solana.NewWallet().PublicKey()
		_, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
			UserAccount:          account,
			Pools:                orca.PoolsPair{pool},
			InputAmount:          1_000_000,
			SourceTokenAccount:   TokenAccount{Address: sourceAccount, Mint: usdc},
			DestinationTokenMint: solana.WrappedSol,
			Blockhash:            "nope",
		})
		assert.ErrorIs(t, err, ErrMissingBlockhash)
	})
}

func TestBuildSwapTransactionSPLToSOL(t *testing.T) {
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	builder, account := swapBuilderFixture(nil)
	relayContext := testRelayContext()

	pool := swapBuilderPool(usdc, solana.WrappedSol)
	sourceAccount := solana.NewWallet().PublicKey()

	output, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
		UserAccount:          account,
		Pools:                orca.PoolsPair{pool},
		InputAmount:          1_000_000,
		Slippage:             0.01,
		SourceTokenAccount:   TokenAccount{Address: sourceAccount, Mint: usdc},
		DestinationTokenMint: solana.WrappedSol,
		Blockhash:            testBlockhash,
	})
	require.NoError(t, err)
	require.Len(t, output.Transactions, 1)
	assert.Equal(t, uint64(0), output.AdditionalPaybackFee)

	prepared := output.Transactions[0]

	// Temporary wrapped-SOL destination: create, init, swap, close.
	message := prepared.Transaction.Message
	require.Len(t, message.Instructions, 4)
	assert.Equal(t, relayContext.FeePayerAddress, message.AccountKeys[0])

	// The temporary account signs alongside the owner; the fee payer's
	// signature is still counted in the expected fee.
	require.Len(t, prepared.Signers, 2)
	assert.Equal(t, uint64(3*5000), prepared.ExpectedFee.Transaction)
	assert.Equal(t, relayContext.MinimumTokenAccountBalance, prepared.ExpectedFee.AccountBalances)
}

func TestBuildSwapTransactionSOLToNewSPL(t *testing.T) {
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	builder, account := swapBuilderFixture(map[solana.PublicKey]DestinationAnalysatorResult{
		usdc: SPLAccount(true),
	})
	relayContext := testRelayContext()

	pool := swapBuilderPool(solana.WrappedSol, usdc)
	wsolSource, _, err := solana.FindAssociatedTokenAddress(account.PublicKey(), solana.WrappedSol)
	require.NoError(t, err)

	output, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
		UserAccount:          account,
		Pools:                orca.PoolsPair{pool},
		InputAmount:          1_000_000,
		Slippage:             0.01,
		SourceTokenAccount:   TokenAccount{Address: wsolSource, Mint: solana.WrappedSol},
		DestinationTokenMint: usdc,
		Blockhash:            testBlockhash,
	})
	require.NoError(t, err)

	// Wrapping the source claims a temporary account, so the destination
	// creation moves into its own transaction ahead of the swap.
	require.Len(t, output.Transactions, 2)

	additional := output.Transactions[0]
	require.Len(t, additional.Transaction.Message.Instructions, 1)
	assert.Equal(t, uint64(2*5000), additional.ExpectedFee.Transaction)
	assert.Equal(t, relayContext.MinimumTokenAccountBalance, additional.ExpectedFee.AccountBalances)

	swap := output.Transactions[1]
	// Transfer in, create, init, swap, close.
	require.Len(t, swap.Transaction.Message.Instructions, 5)
	require.Len(t, swap.Signers, 2)
	assert.Equal(t, uint64(3*5000), swap.ExpectedFee.Transaction)
	assert.Equal(t, uint64(0), swap.ExpectedFee.AccountBalances)

	// The rent parked in the temporary wrapped-SOL account is owed back to
	// the relayer on top of the network fee.
	assert.Equal(t, relayContext.MinimumTokenAccountBalance, output.AdditionalPaybackFee)
}

func TestBuildSwapTransactionSPLToExistingSPL(t *testing.T) {
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	usdt := solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	builder, account := swapBuilderFixture(map[solana.PublicKey]DestinationAnalysatorResult{
		usdt: SPLAccount(false),
	})
	relayContext := testRelayContext()

	pool := swapBuilderPool(usdc, usdt)
	sourceAccount := solana.NewWallet().PublicKey()
	destination := solana.NewWallet().PublicKey()

	output, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
		UserAccount:             account,
		Pools:                   orca.PoolsPair{pool},
		InputAmount:             1_000_000,
		Slippage:                0.01,
		SourceTokenAccount:      TokenAccount{Address: sourceAccount, Mint: usdc},
		DestinationTokenMint:    usdt,
		DestinationTokenAddress: &destination,
		Blockhash:               testBlockhash,
	})
	require.NoError(t, err)
	require.Len(t, output.Transactions, 1)

	prepared := output.Transactions[0]
	// A single swap instruction: nothing to create, nothing to close.
	require.Len(t, prepared.Transaction.Message.Instructions, 1)
	require.Len(t, prepared.Signers, 1)
	assert.Equal(t, uint64(2*5000), prepared.ExpectedFee.Transaction)
	assert.True(t, prepared.ExpectedFee.AccountBalances == 0)

	// The provided destination is used as is.
	destinationIndex := prepared.Transaction.Message.Instructions[0].Accounts[6]
	assert.Equal(t, destination, prepared.Transaction.Message.AccountKeys[destinationIndex])
}

func TestBuildSwapTransactionTransitive(t *testing.T) {
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	usdt := solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	builder, account := swapBuilderFixture(nil)
	relayContext := testRelayContext()

	route := orca.PoolsPair{
		swapBuilderPool(usdc, usdt),
		swapBuilderPool(usdt, solana.WrappedSol),
	}
	sourceAccount := solana.NewWallet().PublicKey()

	output, err := builder.BuildSwapTransaction(context.Background(), relayContext, SwapTransactionParams{
		UserAccount:          account,
		Pools:                route,
		InputAmount:          1_000_000,
		Slippage:             0.01,
		SourceTokenAccount:   TokenAccount{Address: sourceAccount, Mint: usdc},
		DestinationTokenMint: solana.WrappedSol,
		Blockhash:            testBlockhash,
	})
	require.NoError(t, err)
	require.Len(t, output.Transactions, 1)

	prepared := output.Transactions[0]
	// Destination create, init, create-transit, transitive swap, close.
	require.Len(t, prepared.Transaction.Message.Instructions, 5)

	// The transit account address appears in the transitive swap call.
	transitAddress, err := program.TransitTokenAccountAddress(account.PublicKey(), usdt, program.MainnetBeta)
	require.NoError(t, err)
	assert.Contains(t, prepared.Transaction.Message.AccountKeys, transitAddress)
}
