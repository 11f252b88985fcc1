package relay

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeAmount(t *testing.T) {
	fee := FeeAmount{Transaction: 10000, AccountBalances: 2039280}
	assert.Equal(t, uint64(2049280), fee.Total())
	assert.False(t, fee.IsZero())
	assert.True(t, FeeAmount{}.IsZero())

	sum := fee.Add(FeeAmount{Transaction: 5000, AccountBalances: 890880})
	assert.Equal(t, uint64(15000), sum.Transaction)
	assert.Equal(t, uint64(2930160), sum.AccountBalances)
}

func TestUsageStatusFreeFeeAvailability(t *testing.T) {
	tests := []struct {
		name   string
		status UsageStatus
		fee    uint64
		want   bool
	}{
		{"fresh quota", UsageStatus{MaxUsage: 100, MaxAmount: 10_000_000}, 5000, true},
		{"count exhausted", UsageStatus{MaxUsage: 100, CurrentUsage: 100, MaxAmount: 10_000_000}, 5000, false},
		{"amount would overflow", UsageStatus{MaxUsage: 100, MaxAmount: 10_000, AmountUsed: 6000}, 5000, false},
		{"amount exactly at the cap", UsageStatus{MaxUsage: 100, MaxAmount: 10_000, AmountUsed: 5000}, 5000, true},
		{"one use left", UsageStatus{MaxUsage: 100, CurrentUsage: 99, MaxAmount: 10_000_000}, 5000, true},
		{"zero quota", UsageStatus{}, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.status.IsFreeTransactionFeeAvailable(tc.fee))
		})
	}
}

func TestRelayAccountStatus(t *testing.T) {
	t.Run("not yet created", func(t *testing.T) {
		status := RelayAccountNotYetCreated()
		assert.False(t, status.Created())
		_, ok := status.Balance()
		assert.False(t, ok)
	})

	t.Run("created with balance", func(t *testing.T) {
		status := RelayAccountCreated(890880)
		assert.True(t, status.Created())
		balance, ok := status.Balance()
		assert.True(t, ok)
		assert.Equal(t, uint64(890880), balance)
	})
}

func TestPreparedTransactionFindSignature(t *testing.T) {
	signer := solana.NewWallet().PrivateKey
	hash, err := solana.HashFromBase58("DSfeYUm7WDw1YnKodR361rg8sUzUCGdat9t7sFjDuPWZ")
	require.NoError(t, err)

	tx, err := solana.NewTransaction(nil, hash, solana.TransactionPayer(signer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	require.NoError(t, err)

	prepared := PreparedTransaction{Transaction: tx, Signers: []solana.PrivateKey{signer}}

	signature, err := prepared.FindSignature(signer.PublicKey())
	require.NoError(t, err)
	assert.NotEmpty(t, signature)

	_, err = prepared.FindSignature(solana.NewWallet().PublicKey())
	assert.Error(t, err)
}
