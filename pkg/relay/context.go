package relay

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sol-relay/pkg/client"
	"sol-relay/pkg/relay/program"
	solanaclient "sol-relay/pkg/solana"
)

// Token account data length on chain; rent exemption for this size is the
// cost of creating an SPL token account.
const tokenAccountDataLength = 165

// ContextManager maintains the RelayContext snapshot. Updates are all-or-
// nothing: a failed refresh never leaves a partially-written context behind.
type ContextManager interface {
	// CurrentContext returns the last successfully built snapshot.
	CurrentContext() (RelayContext, bool)

	// Update rebuilds the snapshot from chain and relay-server state.
	Update(ctx context.Context) error

	// ReplaceContext swaps in a locally adjusted snapshot, e.g. after the
	// caller consumed free-tier quota and wants subsequent reads to see it.
	ReplaceContext(newContext RelayContext)
}

type contextManager struct {
	owner    solana.PublicKey
	network  program.Network
	solana   solanaclient.Client
	relayAPI client.FeeRelayer
	log      *zap.Logger

	mu      sync.RWMutex
	current *RelayContext
}

// NewContextManager builds a manager for the given wallet owner. The logger
// may be nil.
func NewContextManager(
	owner solana.PublicKey,
	network program.Network,
	solanaClient solanaclient.Client,
	relayAPI client.FeeRelayer,
	log *zap.Logger,
) ContextManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &contextManager{
		owner:    owner,
		network:  network,
		solana:   solanaClient,
		relayAPI: relayAPI,
		log:      log,
	}
}

func (m *contextManager) CurrentContext() (RelayContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return RelayContext{}, false
	}
	return *m.current, true
}

func (m *contextManager) ReplaceContext(newContext RelayContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &newContext
}

func (m *contextManager) Update(ctx context.Context) error {
	snapshot, err := m.buildContext(ctx)
	if err != nil {
		m.log.Warn("relay context update failed", zap.Error(err))
		return err
	}

	m.mu.Lock()
	m.current = snapshot
	m.mu.Unlock()

	m.log.Debug("relay context updated",
		zap.String("feePayer", snapshot.FeePayerAddress.String()),
		zap.Uint64("lamportsPerSignature", snapshot.LamportsPerSignature),
		zap.String("relayAccount", snapshot.RelayAccountStatus.String()),
	)
	return nil
}

// buildContext assembles a fresh snapshot. All fetches run concurrently and
// any failure aborts the whole build.
func (m *contextManager) buildContext(ctx context.Context) (*RelayContext, error) {
	var snapshot RelayContext

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		minimum, err := m.solana.GetMinimumBalanceForRentExemption(ctx, tokenAccountDataLength)
		if err != nil {
			return err
		}
		snapshot.MinimumTokenAccountBalance = minimum
		return nil
	})

	g.Go(func() error {
		minimum, err := m.solana.GetMinimumBalanceForRentExemption(ctx, 0)
		if err != nil {
			return err
		}
		snapshot.MinimumRelayAccountBalance = minimum
		return nil
	})

	g.Go(func() error {
		lamports, err := m.solana.GetLamportsPerSignature(ctx)
		if err != nil {
			return err
		}
		snapshot.LamportsPerSignature = lamports
		return nil
	})

	g.Go(func() error {
		pubkey, err := m.relayAPI.GetFeePayerPubkey(ctx)
		if err != nil {
			return err
		}
		feePayer, err := solana.PublicKeyFromBase58(pubkey)
		if err != nil {
			return ErrWrongAddress
		}
		snapshot.FeePayerAddress = feePayer
		return nil
	})

	g.Go(func() error {
		limits, err := m.relayAPI.GetFreeFeeLimits(ctx, m.owner.String())
		if err != nil {
			return err
		}
		snapshot.UsageStatus = UsageStatus{
			MaxUsage:                 int32(limits.Limits.MaxFeeCount),
			CurrentUsage:             int32(limits.ProcessedFee.FeeCount),
			MaxAmount:                limits.Limits.MaxFeeAmount,
			AmountUsed:               limits.ProcessedFee.TotalFeeAmount,
			ReachedLimitLinkCreation: limits.ProcessedFee.RentCount >= limits.Limits.MaxTokenAccountCreationCount,
		}
		return nil
	})

	g.Go(func() error {
		status, err := m.fetchRelayAccountStatus(ctx)
		if err != nil {
			return err
		}
		snapshot.RelayAccountStatus = status
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (m *contextManager) fetchRelayAccountStatus(ctx context.Context) (RelayAccountStatus, error) {
	relayAddress, err := program.UserRelayAddress(m.owner, m.network)
	if err != nil {
		return RelayAccountStatus{}, err
	}
	info, err := m.solana.GetAccountInfo(ctx, relayAddress)
	if err != nil {
		return RelayAccountStatus{}, err
	}
	if info == nil {
		return RelayAccountNotYetCreated(), nil
	}
	return RelayAccountCreated(info.Lamports), nil
}
