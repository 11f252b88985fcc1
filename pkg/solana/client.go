// Package solanaclient narrows the Solana RPC surface the relay core needs.
package solanaclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// AccountInfo is the subset of on-chain account state the relay core reads.
type AccountInfo struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

// Client is the RPC contract consumed by the relay core. "Account not found"
// is a normal nil result, not an error.
type Client interface {
	GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLength uint64) (uint64, error)
	GetRecentBlockhash(ctx context.Context) (string, error)
	GetLamportsPerSignature(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	WaitForConfirmation(ctx context.Context, signature string) error
}

// RPCClient adapts the solana-go JSON-RPC client to the Client contract.
type RPCClient struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClient connects to the given RPC endpoint.
func NewRPCClient(rpcURL string, commitment string) *RPCClient {
	return &RPCClient{
		client:     rpc.New(rpcURL),
		commitment: parseCommitment(commitment),
	}
}

func parseCommitment(commitment string) rpc.CommitmentType {
	switch strings.ToLower(commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}

// GetAccountInfo returns nil when the account does not exist on-chain.
func (c *RPCClient) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	res, err := c.client.GetAccountInfo(ctx, address)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account info: %w", err)
	}
	if res.Value == nil {
		return nil, nil
	}
	return &AccountInfo{
		Lamports: res.Value.Lamports,
		Owner:    res.Value.Owner,
		Data:     res.Value.Data.GetBinary(),
	}, nil
}

// GetBalance returns the lamport balance of an account, 0 if absent.
func (c *RPCClient) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	balance, err := c.client.GetBalance(ctx, address, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Value, nil
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for an
// account of the given data length.
func (c *RPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataLength uint64) (uint64, error) {
	minimum, err := c.client.GetMinimumBalanceForRentExemption(ctx, dataLength, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent-exempt minimum: %w", err)
	}
	return minimum, nil
}

// GetRecentBlockhash returns the latest blockhash as base58.
func (c *RPCClient) GetRecentBlockhash(ctx context.Context) (string, error) {
	recent, err := c.client.GetRecentBlockhash(ctx, c.commitment)
	if err != nil {
		return "", fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return recent.Value.Blockhash.String(), nil
}

// GetLamportsPerSignature returns the current per-signature network fee.
func (c *RPCClient) GetLamportsPerSignature(ctx context.Context) (uint64, error) {
	fees, err := c.client.GetFees(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("failed to get fee schedule: %w", err)
	}
	return fees.Value.FeeCalculator.LamportsPerSignature, nil
}

// SendTransaction submits a signed transaction.
func (c *RPCClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// WaitForConfirmation polls signature status until the transaction reaches
// the client's commitment level or ctx is done.
func (c *RPCClient) WaitForConfirmation(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid transaction signature: %w", err)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := c.client.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(res.Value) == 0 || res.Value[0] == nil {
				continue
			}
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", signature, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
	}
}
