package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"

	solanaclient "sol-relay/pkg/solana"
)

// DestinationAnalysatorResult classifies a swap's output account: either an
// ordinary SPL account that may need creating, or the wrapped-SOL account
// which always gets a fresh temporary account per transaction.
type DestinationAnalysatorResult struct {
	wsol          bool
	needsCreation bool
}

// WSOLAccount marks the destination as wrapped native SOL.
func WSOLAccount() DestinationAnalysatorResult {
	return DestinationAnalysatorResult{wsol: true}
}

// SPLAccount marks the destination as an ordinary SPL token account.
func SPLAccount(needsCreation bool) DestinationAnalysatorResult {
	return DestinationAnalysatorResult{needsCreation: needsCreation}
}

// IsWSOLAccount reports whether the destination is wrapped native SOL.
func (r DestinationAnalysatorResult) IsWSOLAccount() bool { return r.wsol }

// NeedsCreation reports whether an SPL destination account must be created.
// It is false for wrapped SOL; that case is handled through a temporary
// account instead.
func (r DestinationAnalysatorResult) NeedsCreation() bool { return !r.wsol && r.needsCreation }

// DestinationAnalysator classifies where a swap should deliver its output.
type DestinationAnalysator interface {
	AnalyseDestination(ctx context.Context, owner, mint solana.PublicKey) (DestinationAnalysatorResult, error)
}

type destinationAnalysator struct {
	solana solanaclient.Client
}

// NewDestinationAnalysator builds the default analysator backed by RPC
// account lookups.
func NewDestinationAnalysator(solanaClient solanaclient.Client) DestinationAnalysator {
	return &destinationAnalysator{solana: solanaClient}
}

// AnalyseDestination classifies the output account for a swap into mint.
// Wrapped SOL is special-cased regardless of on-chain state; for any other
// mint the owner's associated token account is derived and probed on-chain.
func (a *destinationAnalysator) AnalyseDestination(
	ctx context.Context,
	owner, mint solana.PublicKey,
) (DestinationAnalysatorResult, error) {
	if mint.Equals(solana.WrappedSol) {
		return WSOLAccount(), nil
	}

	associated, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return DestinationAnalysatorResult{}, ErrWrongAddress
	}

	info, err := a.solana.GetAccountInfo(ctx, associated)
	if err != nil {
		return DestinationAnalysatorResult{}, err
	}
	return SPLAccount(info == nil || len(info.Data) == 0), nil
}
