package cmd

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"sol-relay/config"
	"sol-relay/pkg/client"
	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay"
	"sol-relay/pkg/relay/program"
	solanaclient "sol-relay/pkg/solana"
)

// stack bundles every collaborator a command may need, wired from the
// loaded configuration.
type stack struct {
	cfg      *config.Config
	account  solana.PrivateKey
	network  program.Network
	solana   solanaclient.Client
	relayAPI client.FeeRelayer
	orcaSwap orca.Service

	contextManager relay.ContextManager
	swapFeeRelayer relay.SwapFeeRelayer
	service        relay.Service
}

// buildStack wires the relay stack for the configured wallet. Commands that
// only read (fees, context) pass requireKey=false and get an ephemeral
// wallet; commands that sign must set requireKey.
func buildStack(cfg *config.Config, poolsFile string, requireKey, verbose bool) (*stack, error) {
	var account solana.PrivateKey
	if requireKey {
		if err := cfg.RequireKey(); err != nil {
			return nil, err
		}
		key, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		account = key
	} else if cfg.PrivateKey != "" {
		key, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		account = key
	} else {
		account = solana.NewWallet().PrivateKey
	}

	network := program.Network(cfg.Network)
	switch network {
	case program.MainnetBeta, program.Devnet, program.Testnet:
	default:
		return nil, fmt.Errorf("unknown network %q", cfg.Network)
	}

	log := zap.NewNop()
	if verbose {
		devLog, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = devLog
	}

	solanaClient := solanaclient.NewRPCClient(cfg.RPCURL, cfg.Commitment)
	relayAPI := client.NewAPIClient(cfg.RelayBaseURL, cfg.RelayVersion)

	var pools []orca.Pool
	if poolsFile != "" {
		loaded, err := orca.LoadPools(poolsFile)
		if err != nil {
			return nil, err
		}
		pools = loaded
	}
	orcaSwap := orca.NewStaticService(pools)

	owner := account.PublicKey()
	contextManager := relay.NewContextManager(owner, network, solanaClient, relayAPI, log)
	destinationAnalysator := relay.NewDestinationAnalysator(solanaClient)
	transitTokenManager := relay.NewTransitTokenAccountManager(owner, network, solanaClient)
	swapFeeCalculator := relay.NewSwapFeeCalculator(destinationAnalysator)
	swapBuilder := relay.NewSwapTransactionBuilder(network, transitTokenManager, destinationAnalysator)
	topUpBuilder := relay.NewTopUpTransactionBuilder(account, network, transitTokenManager)

	service := relay.NewService(
		account,
		network,
		contextManager,
		solanaClient,
		orcaSwap,
		relayAPI,
		relay.NewFeeCalculator(),
		topUpBuilder,
		relay.StatsConfig{
			DeviceType:  cfg.DeviceType,
			BuildNumber: rootCmd.Version,
			Environment: cfg.Environment,
		},
		log,
	)

	swapFeeRelayer := relay.NewSwapFeeRelayer(
		account,
		contextManager,
		orcaSwap,
		solanaClient,
		swapFeeCalculator,
		swapBuilder,
	)

	return &stack{
		cfg:            cfg,
		account:        account,
		network:        network,
		solana:         solanaClient,
		relayAPI:       relayAPI,
		orcaSwap:       orcaSwap,
		contextManager: contextManager,
		swapFeeRelayer: swapFeeRelayer,
		service:        service,
	}, nil
}

// wellKnownMints maps common token symbols to mainnet mints so commands can
// accept either a symbol or a raw base58 mint.
var wellKnownMints = map[string]solana.PublicKey{
	"SOL":  solana.WrappedSol,
	"WSOL": solana.WrappedSol,
	"USDC": solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
	"USDT": solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"),
}

func parseMint(arg string) (solana.PublicKey, error) {
	if mint, ok := wellKnownMints[strings.ToUpper(arg)]; ok {
		return mint, nil
	}
	mint, err := solana.PublicKeyFromBase58(arg)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unknown token %q: %w", arg, err)
	}
	return mint, nil
}
