package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-relay/pkg/client"
	"sol-relay/pkg/relay/program"
	solanaclient "sol-relay/pkg/solana"
)

func TestContextManagerUpdate(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	feePayer := solana.NewWallet().PublicKey()

	t.Run("no context before the first update", func(t *testing.T) {
		manager := NewContextManager(owner, program.MainnetBeta, newMockSolanaClient(), newMockRelayAPI(feePayer.String()), nil)
		_, ok := manager.CurrentContext()
		assert.False(t, ok)
	})

	t.Run("update assembles a full snapshot", func(t *testing.T) {
		chain := newMockSolanaClient()
		relayAPI := newMockRelayAPI(feePayer.String())
		relayAPI.limits.ProcessedFee = client.ProcessedFee{FeeCount: 3, TotalFeeAmount: 45000}

		relayAddress, err := program.UserRelayAddress(owner, program.MainnetBeta)
		require.NoError(t, err)
		chain.accounts[relayAddress] = &solanaclient.AccountInfo{Lamports: 1000000}

		manager := NewContextManager(owner, program.MainnetBeta, chain, relayAPI, nil)
		require.NoError(t, manager.Update(context.Background()))

		snapshot, ok := manager.CurrentContext()
		require.True(t, ok)
		assert.Equal(t, feePayer, snapshot.FeePayerAddress)
		assert.Equal(t, uint64(5000), snapshot.LamportsPerSignature)
		assert.Equal(t, uint64(2039280), snapshot.MinimumTokenAccountBalance)
		assert.Equal(t, uint64(890880), snapshot.MinimumRelayAccountBalance)
		assert.Equal(t, int32(3), snapshot.UsageStatus.CurrentUsage)
		assert.Equal(t, uint64(45000), snapshot.UsageStatus.AmountUsed)
		assert.Equal(t, int32(100), snapshot.UsageStatus.MaxUsage)
		assert.False(t, snapshot.UsageStatus.ReachedLimitLinkCreation)

		balance, created := snapshot.RelayAccountStatus.Balance()
		assert.True(t, created)
		assert.Equal(t, uint64(1000000), balance)
	})

	t.Run("spent account creation quota flags link creation", func(t *testing.T) {
		relayAPI := newMockRelayAPI(feePayer.String())
		relayAPI.limits.ProcessedFee.RentCount = relayAPI.limits.Limits.MaxTokenAccountCreationCount

		manager := NewContextManager(owner, program.MainnetBeta, newMockSolanaClient(), relayAPI, nil)
		require.NoError(t, manager.Update(context.Background()))

		snapshot, ok := manager.CurrentContext()
		require.True(t, ok)
		assert.True(t, snapshot.UsageStatus.ReachedLimitLinkCreation)
	})

	t.Run("missing relay account reads as not yet created", func(t *testing.T) {
		manager := NewContextManager(owner, program.MainnetBeta, newMockSolanaClient(), newMockRelayAPI(feePayer.String()), nil)
		require.NoError(t, manager.Update(context.Background()))

		snapshot, ok := manager.CurrentContext()
		require.True(t, ok)
		assert.False(t, snapshot.RelayAccountStatus.Created())
	})

	t.Run("a failed update keeps the previous snapshot", func(t *testing.T) {
		chain := newMockSolanaClient()
		relayAPI := newMockRelayAPI(feePayer.String())
		manager := NewContextManager(owner, program.MainnetBeta, chain, relayAPI, nil)
		require.NoError(t, manager.Update(context.Background()))

		before, ok := manager.CurrentContext()
		require.True(t, ok)

		relayAPI.err = errors.New("relay server unreachable")
		err := manager.Update(context.Background())
		require.Error(t, err)

		after, ok := manager.CurrentContext()
		require.True(t, ok)
		assert.Equal(t, before, after)
	})

	t.Run("malformed fee payer key maps to a wrong address error", func(t *testing.T) {
		manager := NewContextManager(owner, program.MainnetBeta, newMockSolanaClient(), newMockRelayAPI("not-a-pubkey"), nil)
		err := manager.Update(context.Background())
		assert.ErrorIs(t, err, ErrWrongAddress)
	})

	t.Run("replace context is visible to readers", func(t *testing.T) {
		manager := NewContextManager(owner, program.MainnetBeta, newMockSolanaClient(), newMockRelayAPI(feePayer.String()), nil)
		require.NoError(t, manager.Update(context.Background()))

		snapshot, ok := manager.CurrentContext()
		require.True(t, ok)
		snapshot.UsageStatus.CurrentUsage++
		snapshot.UsageStatus.AmountUsed += 10000
		manager.ReplaceContext(snapshot)

		replaced, ok := manager.CurrentContext()
		require.True(t, ok)
		assert.Equal(t, snapshot, replaced)
	})
}
