package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay/program"
	solanaclient "sol-relay/pkg/solana"
)

// TransitTokenAccountManager handles the intermediary token account used by
// two-hop swaps through the relay program.
type TransitTokenAccountManager interface {
	// GetTransitToken returns the transit token account for a pools pair, or
	// nil when the route has no intermediary hop.
	GetTransitToken(pools orca.PoolsPair) (*TokenAccount, error)

	// CheckIfNeedsCreateTransitTokenAccount reports whether the transit
	// account must be created on-chain. Returns nil for a nil transit token.
	CheckIfNeedsCreateTransitTokenAccount(ctx context.Context, transitToken *TokenAccount) (*bool, error)
}

type transitTokenAccountManager struct {
	owner   solana.PublicKey
	network program.Network
	solana  solanaclient.Client
}

// NewTransitTokenAccountManager builds the default manager for the given
// wallet owner.
func NewTransitTokenAccountManager(
	owner solana.PublicKey,
	network program.Network,
	solanaClient solanaclient.Client,
) TransitTokenAccountManager {
	return &transitTokenAccountManager{
		owner:   owner,
		network: network,
		solana:  solanaClient,
	}
}

func (m *transitTokenAccountManager) GetTransitToken(pools orca.PoolsPair) (*TokenAccount, error) {
	mint, err := m.transitTokenMint(pools)
	if err != nil {
		return nil, err
	}
	if mint == nil {
		return nil, nil
	}

	address, err := program.TransitTokenAccountAddress(m.owner, *mint, m.network)
	if err != nil {
		return nil, err
	}
	return &TokenAccount{Address: address, Mint: *mint}, nil
}

// transitTokenMint returns the intermediary mint of a two-hop route, or nil
// for a direct route.
func (m *transitTokenAccountManager) transitTokenMint(pools orca.PoolsPair) (*solana.PublicKey, error) {
	switch len(pools) {
	case 1:
		return nil, nil
	case 2:
		mint, err := pools.IntermediateMint()
		if err != nil {
			return nil, ErrTransitTokenMintNotFound
		}
		return &mint, nil
	default:
		return nil, ErrTransitTokenMintNotFound
	}
}

func (m *transitTokenAccountManager) CheckIfNeedsCreateTransitTokenAccount(
	ctx context.Context,
	transitToken *TokenAccount,
) (*bool, error) {
	if transitToken == nil {
		return nil, nil
	}

	info, err := m.solana.GetAccountInfo(ctx, transitToken.Address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		needsCreate := true
		return &needsCreate, nil
	}

	// An account at the derived address with a different mint cannot serve
	// as transit, so it must be (re)created.
	mint, ok := tokenAccountMint(info.Data)
	needsCreate := !ok || !mint.Equals(transitToken.Mint)
	return &needsCreate, nil
}

// tokenAccountMint reads the mint from raw SPL token account data.
func tokenAccountMint(data []byte) (solana.PublicKey, bool) {
	if len(data) < 32 {
		return solana.PublicKey{}, false
	}
	return solana.PublicKeyFromBytes(data[:32]), true
}
