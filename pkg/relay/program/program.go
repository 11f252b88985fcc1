// Package program builds instructions for the on-chain fee relay program and
// derives its program-owned account addresses.
package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Network selects which deployment of the relay program to target.
type Network string

const (
	MainnetBeta Network = "mainnet-beta"
	Devnet      Network = "devnet"
	Testnet     Network = "testnet"
)

// Instruction indices understood by the relay program.
const (
	indexTopUpWithDirectSwap     uint8 = 0
	indexTopUpWithTransitiveSwap uint8 = 1
	indexTransferSOL             uint8 = 2
	indexCreateTransitToken      uint8 = 3
	indexTransitiveSwap          uint8 = 4
)

var (
	mainnetProgramID = solana.MustPublicKeyFromBase58("12YKFL4mnZz6CBEGePrf293mEzueQM3h8VLPUJsKpGs9")
	devnetProgramID  = solana.MustPublicKeyFromBase58("6xKJFyuM6UHCT8F5SBxnjGt6ZrZYjsVfnAnAeHPU775k")
)

// ID returns the relay program id for the given network.
func ID(network Network) solana.PublicKey {
	if network == MainnetBeta {
		return mainnetProgramID
	}
	return devnetProgramID
}

// UserRelayAddress derives the user's relay account, the program-owned
// account the relay server refunds itself from.
func UserRelayAddress(user solana.PublicKey, network Network) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{user.Bytes(), []byte("relay")},
		ID(network),
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive user relay address: %w", err)
	}
	return addr, nil
}

// UserTemporaryWSOLAddress derives the per-user scratch wrapped-SOL account
// used while topping up.
func UserTemporaryWSOLAddress(user solana.PublicKey, network Network) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{user.Bytes(), []byte("temporary_wsol")},
		ID(network),
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive temporary wsol address: %w", err)
	}
	return addr, nil
}

// TransitTokenAccountAddress derives the transit account that holds the
// intermediate token during a transitive swap.
func TransitTokenAccountAddress(user, transitTokenMint solana.PublicKey, network Network) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{user.Bytes(), transitTokenMint.Bytes(), []byte("transit")},
		ID(network),
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive transit token address: %w", err)
	}
	return addr, nil
}

// DirectSwapAccounts carries the pool accounts for a single-pool swap leg.
type DirectSwapAccounts struct {
	ProgramID         solana.PublicKey
	Account           solana.PublicKey
	Authority         solana.PublicKey
	TransferAuthority solana.PublicKey
	Source            solana.PublicKey
	Destination       solana.PublicKey
	PoolTokenMint     solana.PublicKey
	PoolFeeAccount    solana.PublicKey
	AmountIn          uint64
	MinimumAmountOut  uint64
}

// TransitiveSwapAccounts carries the pool accounts for a two-pool swap.
type TransitiveSwapAccounts struct {
	From             DirectSwapAccounts
	To               DirectSwapAccounts
	TransitTokenMint solana.PublicKey
}

func encodeData(index uint8, args ...uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint8(index)
	for _, arg := range args {
		_ = enc.WriteUint64(arg, bin.LE)
	}
	return buf.Bytes()
}

// TopUpWithDirectSwapInstruction swaps the paying token into the user's relay
// account through a single pool, fee payer fronting the network fee.
func TopUpWithDirectSwapInstruction(
	network Network,
	swap DirectSwapAccounts,
	userAuthority solana.PublicKey,
	userSourceTokenAccount solana.PublicKey,
	feePayer solana.PublicKey,
) (solana.Instruction, error) {
	userRelayAddress, err := UserRelayAddress(userAuthority, network)
	if err != nil {
		return nil, err
	}
	userTemporaryWSOLAddress, err := UserTemporaryWSOLAddress(userAuthority, network)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		ID(network),
		solana.AccountMetaSlice{
			solana.Meta(solana.WrappedSol),
			solana.Meta(feePayer).WRITE().SIGNER(),
			solana.Meta(userAuthority).SIGNER(),
			solana.Meta(userRelayAddress).WRITE(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(swap.ProgramID),
			solana.Meta(swap.Account),
			solana.Meta(swap.Authority),
			solana.Meta(swap.TransferAuthority).SIGNER(),
			solana.Meta(userSourceTokenAccount).WRITE(),
			solana.Meta(userTemporaryWSOLAddress).WRITE(),
			solana.Meta(swap.Source).WRITE(),
			solana.Meta(swap.Destination).WRITE(),
			solana.Meta(swap.PoolTokenMint).WRITE(),
			solana.Meta(swap.PoolFeeAccount).WRITE(),
			solana.Meta(solana.SysVarRentPubkey),
			solana.Meta(solana.SystemProgramID),
		},
		encodeData(indexTopUpWithDirectSwap, swap.AmountIn, swap.MinimumAmountOut),
	), nil
}

// TopUpWithTransitiveSwapInstruction swaps the paying token into the user's
// relay account through two pools via the transit account.
func TopUpWithTransitiveSwapInstruction(
	network Network,
	swap TransitiveSwapAccounts,
	userAuthority solana.PublicKey,
	userSourceTokenAccount solana.PublicKey,
	feePayer solana.PublicKey,
) (solana.Instruction, error) {
	userRelayAddress, err := UserRelayAddress(userAuthority, network)
	if err != nil {
		return nil, err
	}
	userTemporaryWSOLAddress, err := UserTemporaryWSOLAddress(userAuthority, network)
	if err != nil {
		return nil, err
	}
	transitTokenAccount, err := TransitTokenAccountAddress(userAuthority, swap.TransitTokenMint, network)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		ID(network),
		solana.AccountMetaSlice{
			solana.Meta(solana.WrappedSol),
			solana.Meta(feePayer).WRITE().SIGNER(),
			solana.Meta(userAuthority).SIGNER(),
			solana.Meta(userRelayAddress).WRITE(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(swap.From.TransferAuthority).SIGNER(),
			solana.Meta(userSourceTokenAccount).WRITE(),
			solana.Meta(transitTokenAccount).WRITE(),
			solana.Meta(userTemporaryWSOLAddress).WRITE(),
			solana.Meta(swap.From.ProgramID),
			solana.Meta(swap.From.Account),
			solana.Meta(swap.From.Authority),
			solana.Meta(swap.From.Source).WRITE(),
			solana.Meta(swap.From.Destination).WRITE(),
			solana.Meta(swap.From.PoolTokenMint).WRITE(),
			solana.Meta(swap.From.PoolFeeAccount).WRITE(),
			solana.Meta(swap.To.ProgramID),
			solana.Meta(swap.To.Account),
			solana.Meta(swap.To.Authority),
			solana.Meta(swap.To.Source).WRITE(),
			solana.Meta(swap.To.Destination).WRITE(),
			solana.Meta(swap.To.PoolTokenMint).WRITE(),
			solana.Meta(swap.To.PoolFeeAccount).WRITE(),
			solana.Meta(solana.SysVarRentPubkey),
			solana.Meta(solana.SystemProgramID),
		},
		encodeData(
			indexTopUpWithTransitiveSwap,
			swap.From.AmountIn,
			swap.From.MinimumAmountOut,
			swap.To.MinimumAmountOut,
		),
	), nil
}

// TransferSOLInstruction moves lamports out of the user's relay account to
// the recipient, typically paying the fee payer back.
func TransferSOLInstruction(
	userAuthority solana.PublicKey,
	recipient solana.PublicKey,
	lamports uint64,
	network Network,
) (solana.Instruction, error) {
	userRelayAddress, err := UserRelayAddress(userAuthority, network)
	if err != nil {
		return nil, err
	}

	return solana.NewInstruction(
		ID(network),
		solana.AccountMetaSlice{
			solana.Meta(userAuthority).SIGNER(),
			solana.Meta(userRelayAddress).WRITE(),
			solana.Meta(recipient).WRITE(),
			solana.Meta(solana.SystemProgramID),
		},
		encodeData(indexTransferSOL, lamports),
	), nil
}

// CreateTransitTokenAccountInstruction creates the transit account needed by
// a transitive swap.
func CreateTransitTokenAccountInstruction(
	feePayer solana.PublicKey,
	userAuthority solana.PublicKey,
	transitTokenAccount solana.PublicKey,
	transitTokenMint solana.PublicKey,
	network Network,
) (solana.Instruction, error) {
	return solana.NewInstruction(
		ID(network),
		solana.AccountMetaSlice{
			solana.Meta(transitTokenAccount).WRITE(),
			solana.Meta(transitTokenMint),
			solana.Meta(userAuthority).WRITE().SIGNER(),
			solana.Meta(feePayer).SIGNER(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(solana.SysVarRentPubkey),
			solana.Meta(solana.SystemProgramID),
		},
		encodeData(indexCreateTransitToken),
	), nil
}

// TransitiveSwapInstruction executes the two-hop swap itself, from the user's
// source account through the transit account into the destination.
func TransitiveSwapInstruction(
	network Network,
	swap TransitiveSwapAccounts,
	userAuthority solana.PublicKey,
	userSourceTokenAccount solana.PublicKey,
	userTransitTokenAccount solana.PublicKey,
	userDestinationTokenAccount solana.PublicKey,
	feePayer solana.PublicKey,
) (solana.Instruction, error) {
	return solana.NewInstruction(
		ID(network),
		solana.AccountMetaSlice{
			solana.Meta(feePayer).WRITE().SIGNER(),
			solana.Meta(solana.TokenProgramID),
			solana.Meta(swap.From.TransferAuthority).SIGNER(),
			solana.Meta(userSourceTokenAccount).WRITE(),
			solana.Meta(userTransitTokenAccount).WRITE(),
			solana.Meta(userDestinationTokenAccount).WRITE(),
			solana.Meta(swap.From.ProgramID),
			solana.Meta(swap.From.Account),
			solana.Meta(swap.From.Authority),
			solana.Meta(swap.From.Source).WRITE(),
			solana.Meta(swap.From.Destination).WRITE(),
			solana.Meta(swap.From.PoolTokenMint).WRITE(),
			solana.Meta(swap.From.PoolFeeAccount).WRITE(),
			solana.Meta(swap.To.ProgramID),
			solana.Meta(swap.To.Account),
			solana.Meta(swap.To.Authority),
			solana.Meta(swap.To.Source).WRITE(),
			solana.Meta(swap.To.Destination).WRITE(),
			solana.Meta(swap.To.PoolTokenMint).WRITE(),
			solana.Meta(swap.To.PoolFeeAccount).WRITE(),
		},
		encodeData(
			indexTransitiveSwap,
			swap.From.AmountIn,
			swap.From.MinimumAmountOut,
			swap.To.MinimumAmountOut,
		),
	), nil
}
