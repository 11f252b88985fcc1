package relay

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay/program"
	solanaclient "sol-relay/pkg/solana"
)

type topUpBuilderFixture struct {
	account solana.PrivateKey
	chain   *mockSolanaClient
	builder TopUpTransactionBuilder
}

func newTopUpBuilderFixture() *topUpBuilderFixture {
	account := solana.NewWallet().PrivateKey
	chain := newMockSolanaClient()
	manager := NewTransitTokenAccountManager(account.PublicKey(), program.MainnetBeta, chain)
	return &topUpBuilderFixture{
		account: account,
		chain:   chain,
		builder: NewTopUpTransactionBuilder(account, program.MainnetBeta, manager),
	}
}

func (f *topUpBuilderFixture) sourceToken(t *testing.T, mint solana.PublicKey) TokenAccount {
	t.Helper()
	address, _, err := solana.FindAssociatedTokenAddress(f.account.PublicKey(), mint)
	require.NoError(t, err)
	return TokenAccount{Address: address, Mint: mint}
}

// topUpTestPool builds a deep-reserve pool trading a into b with no pool fee.
func topUpTestPool(a, b solana.PublicKey) orca.Pool {
	return orca.Pool{
		Account:       solana.NewWallet().PublicKey(),
		Authority:     solana.NewWallet().PublicKey(),
		ProgramID:     solana.NewWallet().PublicKey(),
		PoolTokenMint: solana.NewWallet().PublicKey(),
		FeeAccount:    solana.NewWallet().PublicKey(),
		TokenAMint:    a,
		TokenBMint:    b,
		TokenAccountA: solana.NewWallet().PublicKey(),
		TokenAccountB: solana.NewWallet().PublicKey(),
		TokenABalance: 1_000_000_000,
		TokenBBalance: 1_000_000_000,
	}
}

func instructionPrograms(t *testing.T, tx *solana.Transaction) []solana.PublicKey {
	t.Helper()
	programs := make([]solana.PublicKey, len(tx.Message.Instructions))
	for i, instruction := range tx.Message.Instructions {
		require.Less(t, int(instruction.ProgramIDIndex), len(tx.Message.AccountKeys))
		programs[i] = tx.Message.AccountKeys[instruction.ProgramIDIndex]
	}
	return programs
}

func TestBuildTopUpTransaction(t *testing.T) {
	usdc := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	usdt := solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")

	t.Run("topping up from the fee payer's own token account is rejected", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()

		feePayerAssociated, _, err := solana.FindAssociatedTokenAddress(relayContext.FeePayerAddress, usdc)
		require.NoError(t, err)

		_, err = f.builder.BuildTopUpTransaction(
			context.Background(),
			relayContext,
			TokenAccount{Address: feePayerAssociated, Mint: usdc},
			orca.PoolsPair{topUpTestPool(usdc, solana.WrappedSol)},
			10000,
			f.chain.blockhash,
		)
		assert.ErrorIs(t, err, ErrUnknown)
	})

	t.Run("direct route under free quota", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()
		pool := topUpTestPool(usdc, solana.WrappedSol)

		output, err := f.builder.BuildTopUpTransaction(
			context.Background(),
			relayContext,
			f.sourceToken(t, usdc),
			orca.PoolsPair{pool},
			10000,
			f.chain.blockhash,
		)
		require.NoError(t, err)

		require.NotNil(t, output.SwapData.Spl)
		assert.Nil(t, output.SwapData.SplTransitive)
		assert.Equal(t, uint64(10000), output.SwapData.Spl.MinimumAmountOut)

		wantAmountIn, err := pool.InputAmount(10000, usdc, TopUpSlippage)
		require.NoError(t, err)
		assert.Equal(t, wantAmountIn, output.SwapData.Spl.AmountIn)

		prepared := output.PreparedTransaction
		assert.Equal(t, FeeAmount{AccountBalances: relayContext.MinimumTokenAccountBalance}, prepared.ExpectedFee)
		require.Len(t, prepared.Signers, 1)
		assert.Equal(t, f.account.PublicKey(), prepared.Signers[0].PublicKey())

		tx := prepared.Transaction
		require.NotNil(t, tx)
		assert.Equal(t, relayContext.FeePayerAddress, tx.Message.AccountKeys[0])

		// approve, top-up swap, relay payback
		programs := instructionPrograms(t, tx)
		require.Len(t, programs, 3)
		assert.Equal(t, solana.TokenProgramID, programs[0])
		assert.Equal(t, program.ID(program.MainnetBeta), programs[1])
		assert.Equal(t, program.ID(program.MainnetBeta), programs[2])
	})

	t.Run("uncreated relay account is funded first", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()
		relayContext.RelayAccountStatus = RelayAccountNotYetCreated()

		output, err := f.builder.BuildTopUpTransaction(
			context.Background(),
			relayContext,
			f.sourceToken(t, usdc),
			orca.PoolsPair{topUpTestPool(usdc, solana.WrappedSol)},
			10000,
			f.chain.blockhash,
		)
		require.NoError(t, err)

		wantBalances := relayContext.MinimumRelayAccountBalance + relayContext.MinimumTokenAccountBalance
		assert.Equal(t, FeeAmount{AccountBalances: wantBalances}, output.PreparedTransaction.ExpectedFee)

		programs := instructionPrograms(t, output.PreparedTransaction.Transaction)
		require.Len(t, programs, 4)
		assert.Equal(t, system.ProgramID, programs[0])
	})

	t.Run("exhausted quota adds the network fee to the payback", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()
		relayContext.UsageStatus.CurrentUsage = relayContext.UsageStatus.MaxUsage

		output, err := f.builder.BuildTopUpTransaction(
			context.Background(),
			relayContext,
			f.sourceToken(t, usdc),
			orca.PoolsPair{topUpTestPool(usdc, solana.WrappedSol)},
			10000,
			f.chain.blockhash,
		)
		require.NoError(t, err)

		want := FeeAmount{
			Transaction:     2 * relayContext.LamportsPerSignature,
			AccountBalances: relayContext.MinimumTokenAccountBalance,
		}
		assert.Equal(t, want, output.PreparedTransaction.ExpectedFee)
	})

	t.Run("transitive route creates the transit account and encodes both hops", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()
		first := topUpTestPool(usdc, usdt)
		second := topUpTestPool(usdt, solana.WrappedSol)

		output, err := f.builder.BuildTopUpTransaction(
			context.Background(),
			relayContext,
			f.sourceToken(t, usdc),
			orca.PoolsPair{first, second},
			10000,
			f.chain.blockhash,
		)
		require.NoError(t, err)

		require.NotNil(t, output.SwapData.SplTransitive)
		assert.Nil(t, output.SwapData.Spl)

		transitive := output.SwapData.SplTransitive
		assert.Equal(t, usdt.String(), transitive.TransitTokenMintPubkey)
		assert.True(t, transitive.NeedsCreateTransitTokenAccount)
		assert.Equal(t, uint64(10000), transitive.To.MinimumAmountOut)
		assert.Equal(t, transitive.From.MinimumAmountOut, transitive.To.AmountIn)

		wantSecondIn, err := second.InputAmount(10000, usdt, TopUpSlippage)
		require.NoError(t, err)
		wantFirstIn, err := first.InputAmount(wantSecondIn, usdc, TopUpSlippage)
		require.NoError(t, err)
		assert.Equal(t, wantSecondIn, transitive.To.AmountIn)
		assert.Equal(t, wantFirstIn, transitive.From.AmountIn)

		// approve, create transit, top-up swap, relay payback
		programs := instructionPrograms(t, output.PreparedTransaction.Transaction)
		require.Len(t, programs, 4)
		assert.Equal(t, solana.TokenProgramID, programs[0])
		assert.Equal(t, program.ID(program.MainnetBeta), programs[1])
		assert.Equal(t, program.ID(program.MainnetBeta), programs[2])
		assert.Equal(t, program.ID(program.MainnetBeta), programs[3])
	})

	t.Run("existing transit account is reused", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()
		first := topUpTestPool(usdc, usdt)
		second := topUpTestPool(usdt, solana.WrappedSol)

		transitAddress, err := program.TransitTokenAccountAddress(f.account.PublicKey(), usdt, program.MainnetBeta)
		require.NoError(t, err)
		data := make([]byte, 165)
		copy(data[:32], usdt.Bytes())
		f.chain.accounts[transitAddress] = &solanaclient.AccountInfo{Lamports: 2039280, Data: data}

		output, err := f.builder.BuildTopUpTransaction(
			context.Background(),
			relayContext,
			f.sourceToken(t, usdc),
			orca.PoolsPair{first, second},
			10000,
			f.chain.blockhash,
		)
		require.NoError(t, err)

		require.NotNil(t, output.SwapData.SplTransitive)
		assert.False(t, output.SwapData.SplTransitive.NeedsCreateTransitTokenAccount)

		// no transit creation instruction this time
		programs := instructionPrograms(t, output.PreparedTransaction.Transaction)
		require.Len(t, programs, 3)
	})

	t.Run("invalid inputs are rejected", func(t *testing.T) {
		f := newTopUpBuilderFixture()
		relayContext := testRelayContext()
		route := orca.PoolsPair{topUpTestPool(usdc, solana.WrappedSol)}

		_, err := f.builder.BuildTopUpTransaction(
			context.Background(), relayContext, f.sourceToken(t, usdc), orca.PoolsPair{}, 10000, f.chain.blockhash,
		)
		assert.ErrorIs(t, err, ErrSwapPoolsNotFound)

		_, err = f.builder.BuildTopUpTransaction(
			context.Background(), relayContext, f.sourceToken(t, usdc), route, 0, f.chain.blockhash,
		)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = f.builder.BuildTopUpTransaction(
			context.Background(), relayContext, f.sourceToken(t, usdc), route, 10000, "not-a-blockhash",
		)
		assert.ErrorIs(t, err, ErrMissingBlockhash)
	})
}
