package relay

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// FeeAmount is a fee breakdown in lamports: the network fee charged per
// signature and the rent-exempt minimums for accounts that must be created.
type FeeAmount struct {
	Transaction     uint64
	AccountBalances uint64
}

// Total returns the combined fee.
func (f FeeAmount) Total() uint64 {
	return f.Transaction + f.AccountBalances
}

// Add returns a new FeeAmount with both components summed.
func (f FeeAmount) Add(other FeeAmount) FeeAmount {
	return FeeAmount{
		Transaction:     f.Transaction + other.Transaction,
		AccountBalances: f.AccountBalances + other.AccountBalances,
	}
}

// IsZero reports whether no fee is due.
func (f FeeAmount) IsZero() bool {
	return f.Transaction == 0 && f.AccountBalances == 0
}

// TokenAccount pairs an SPL token account address with its mint. It is used
// to describe source, destination, fee-paying and transit accounts uniformly.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
}

// RelayAccountStatus describes whether the user's relay account exists
// on-chain and, if so, its balance.
type RelayAccountStatus struct {
	created bool
	balance uint64
}

// RelayAccountNotYetCreated marks the relay account as absent on-chain.
func RelayAccountNotYetCreated() RelayAccountStatus {
	return RelayAccountStatus{}
}

// RelayAccountCreated marks the relay account as existing with the given balance.
func RelayAccountCreated(balance uint64) RelayAccountStatus {
	return RelayAccountStatus{created: true, balance: balance}
}

// Created reports whether the relay account exists on-chain.
func (s RelayAccountStatus) Created() bool { return s.created }

// Balance returns the relay account balance and whether the account exists.
func (s RelayAccountStatus) Balance() (uint64, bool) {
	if !s.created {
		return 0, false
	}
	return s.balance, true
}

func (s RelayAccountStatus) String() string {
	if !s.created {
		return "relay account is not yet created"
	}
	return fmt.Sprintf("relay account is created, balance: %d", s.balance)
}

// UsageStatus tracks the user's free-transaction quota as reported by the
// relay server.
type UsageStatus struct {
	MaxUsage                 int32
	CurrentUsage             int32
	MaxAmount                uint64
	AmountUsed               uint64
	ReachedLimitLinkCreation bool
}

// IsFreeTransactionFeeAvailable reports whether the given transaction fee is
// still covered by the free-tier quota.
func (u UsageStatus) IsFreeTransactionFeeAvailable(transactionFee uint64) bool {
	return u.CurrentUsage < u.MaxUsage && u.AmountUsed+transactionFee <= u.MaxAmount
}

// RelayContext is an immutable snapshot of the on-chain state needed for
// every fee computation. It is produced wholesale by ContextManager.Update
// and never mutated by consumers.
type RelayContext struct {
	MinimumTokenAccountBalance uint64
	MinimumRelayAccountBalance uint64
	FeePayerAddress            solana.PublicKey
	LamportsPerSignature       uint64
	RelayAccountStatus         RelayAccountStatus
	UsageStatus                UsageStatus
}

// PreparedTransaction is a fully-built transaction together with the signers
// used to produce it and the fee the relay server is expected to front.
type PreparedTransaction struct {
	Transaction *solana.Transaction
	Signers     []solana.PrivateKey
	ExpectedFee FeeAmount
}

// FindSignature returns the base58 signature belonging to the given signer
// public key, or an error if the key did not sign the transaction.
func (p PreparedTransaction) FindSignature(publicKey solana.PublicKey) (string, error) {
	if p.Transaction == nil {
		return "", ErrInvalidSignature
	}
	for i, key := range p.Transaction.Message.AccountKeys {
		if key.Equals(publicKey) {
			if i >= len(p.Transaction.Signatures) {
				return "", ErrInvalidSignature
			}
			return base58.Encode(p.Transaction.Signatures[i][:]), nil
		}
	}
	return "", ErrInvalidSignature
}
