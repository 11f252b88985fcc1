package relay

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"sol-relay/pkg/client"
	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay/program"
)

// TopUpTransactionOutput pairs the wire-format swap description the relay
// server needs with the prepared top-up transaction itself.
type TopUpTransactionOutput struct {
	SwapData            client.SwapData
	PreparedTransaction PreparedTransaction
}

// TopUpTransactionBuilder assembles the transaction that swaps a paying
// token into the user's relay account so it can front upcoming fees.
type TopUpTransactionBuilder interface {
	BuildTopUpTransaction(
		ctx context.Context,
		relayContext RelayContext,
		sourceToken TokenAccount,
		topUpPools orca.PoolsPair,
		targetAmount uint64,
		blockhash string,
	) (TopUpTransactionOutput, error)
}

type topUpTransactionBuilder struct {
	account             solana.PrivateKey
	network             program.Network
	transitTokenManager TransitTokenAccountManager
}

// NewTopUpTransactionBuilder builds the default builder for the given user
// account.
func NewTopUpTransactionBuilder(
	account solana.PrivateKey,
	network program.Network,
	transitTokenManager TransitTokenAccountManager,
) TopUpTransactionBuilder {
	return &topUpTransactionBuilder{
		account:             account,
		network:             network,
		transitTokenManager: transitTokenManager,
	}
}

func (b *topUpTransactionBuilder) BuildTopUpTransaction(
	ctx context.Context,
	relayContext RelayContext,
	sourceToken TokenAccount,
	topUpPools orca.PoolsPair,
	targetAmount uint64,
	blockhash string,
) (TopUpTransactionOutput, error) {
	owner := b.account.PublicKey()
	feePayer := relayContext.FeePayerAddress

	// Topping up from the fee payer's own associated account would be
	// circular.
	feePayerAssociated, _, err := solana.FindAssociatedTokenAddress(feePayer, sourceToken.Mint)
	if err != nil {
		return TopUpTransactionOutput{}, ErrWrongAddress
	}
	if sourceToken.Address.Equals(feePayerAssociated) {
		return TopUpTransactionOutput{}, ErrUnknown
	}

	var expectedFee FeeAmount
	expectedTransactionNetworkFee := 2 * relayContext.LamportsPerSignature
	if !relayContext.UsageStatus.IsFreeTransactionFeeAvailable(expectedTransactionNetworkFee) {
		expectedFee.Transaction += expectedTransactionNetworkFee
	}

	var instructions []solana.Instruction

	if !relayContext.RelayAccountStatus.Created() {
		relayAddress, err := program.UserRelayAddress(owner, b.network)
		if err != nil {
			return TopUpTransactionOutput{}, err
		}
		instructions = append(instructions,
			system.NewTransferInstruction(
				relayContext.MinimumRelayAccountBalance,
				feePayer,
				relayAddress,
			).Build(),
		)
		expectedFee.AccountBalances += relayContext.MinimumRelayAccountBalance
	}

	transitToken, err := b.transitTokenManager.GetTransitToken(topUpPools)
	if err != nil {
		return TopUpTransactionOutput{}, err
	}
	needsCreateTransitTokenAccount, err := b.transitTokenManager.CheckIfNeedsCreateTransitTokenAccount(ctx, transitToken)
	if err != nil {
		return TopUpTransactionOutput{}, err
	}

	swapData, amountIn, err := b.prepareSwapData(topUpPools, targetAmount, transitToken, needsCreateTransitTokenAccount != nil && *needsCreateTransitTokenAccount)
	if err != nil {
		return TopUpTransactionOutput{}, err
	}

	// The user pre-approves exactly the swap input; the relay program spends
	// through this delegation.
	instructions = append(instructions,
		token.NewApproveInstruction(
			amountIn,
			sourceToken.Address,
			owner,
			owner,
			nil,
		).Build(),
	)

	switch {
	case swapData.Spl != nil:
		// The temporary wrapped-SOL account receiving the swap output needs
		// rent the relay account pays back.
		expectedFee.AccountBalances += relayContext.MinimumTokenAccountBalance

		topUp, err := topUpDirectSwapInstruction(b.network, *swapData.Spl, owner, sourceToken.Address, feePayer)
		if err != nil {
			return TopUpTransactionOutput{}, err
		}
		instructions = append(instructions, topUp)

	case swapData.SplTransitive != nil:
		if needsCreateTransitTokenAccount != nil && *needsCreateTransitTokenAccount && transitToken != nil {
			createTransit, err := program.CreateTransitTokenAccountInstruction(
				feePayer,
				owner,
				transitToken.Address,
				transitToken.Mint,
				b.network,
			)
			if err != nil {
				return TopUpTransactionOutput{}, err
			}
			instructions = append(instructions, createTransit)
		}
		expectedFee.AccountBalances += relayContext.MinimumTokenAccountBalance

		topUp, err := topUpTransitiveSwapInstruction(b.network, *swapData.SplTransitive, owner, sourceToken.Address, feePayer)
		if err != nil {
			return TopUpTransactionOutput{}, err
		}
		instructions = append(instructions, topUp)
	}

	// Pay the relayer back out of the freshly funded relay account.
	payback, err := program.TransferSOLInstruction(owner, feePayer, expectedFee.Total(), b.network)
	if err != nil {
		return TopUpTransactionOutput{}, err
	}
	instructions = append(instructions, payback)

	recentBlockhash, err := solana.HashFromBase58(blockhash)
	if err != nil {
		return TopUpTransactionOutput{}, ErrMissingBlockhash
	}
	tx, err := solana.NewTransaction(instructions, recentBlockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return TopUpTransactionOutput{}, err
	}

	return TopUpTransactionOutput{
		SwapData: swapData,
		PreparedTransaction: PreparedTransaction{
			Transaction: tx,
			Signers:     []solana.PrivateKey{b.account},
			ExpectedFee: expectedFee,
		},
	}, nil
}

// prepareSwapData describes the top-up swap in the server's wire format and
// returns the input amount the user must delegate.
func (b *topUpTransactionBuilder) prepareSwapData(
	pools orca.PoolsPair,
	minAmountOut uint64,
	transitToken *TokenAccount,
	needsCreateTransitTokenAccount bool,
) (client.SwapData, uint64, error) {
	if !pools.IsValid() {
		return client.SwapData{}, 0, ErrSwapPoolsNotFound
	}
	if minAmountOut == 0 {
		return client.SwapData{}, 0, ErrInvalidAmount
	}

	owner := b.account.PublicKey()

	if len(pools) == 1 {
		pool := pools[0]
		inputMint, err := topUpInputMint(pool)
		if err != nil {
			return client.SwapData{}, 0, err
		}
		amountIn, err := pool.InputAmount(minAmountOut, inputMint, TopUpSlippage)
		if err != nil {
			return client.SwapData{}, 0, ErrInvalidAmount
		}
		data, err := directSwapData(pool, inputMint, owner, amountIn, minAmountOut)
		if err != nil {
			return client.SwapData{}, 0, err
		}
		return client.SwapData{Spl: &data}, amountIn, nil
	}

	if transitToken == nil {
		return client.SwapData{}, 0, ErrTransitTokenMintNotFound
	}

	firstPool, secondPool := pools[0], pools[1]

	secondPoolAmountIn, err := secondPool.InputAmount(minAmountOut, transitToken.Mint, TopUpSlippage)
	if err != nil {
		return client.SwapData{}, 0, ErrInvalidAmount
	}
	firstInputMint, err := topUpInputMint(firstPool)
	if err != nil {
		return client.SwapData{}, 0, err
	}
	firstPoolAmountIn, err := firstPool.InputAmount(secondPoolAmountIn, firstInputMint, TopUpSlippage)
	if err != nil {
		return client.SwapData{}, 0, ErrInvalidAmount
	}

	from, err := directSwapData(firstPool, firstInputMint, owner, firstPoolAmountIn, secondPoolAmountIn)
	if err != nil {
		return client.SwapData{}, 0, err
	}
	to, err := directSwapData(secondPool, transitToken.Mint, owner, secondPoolAmountIn, minAmountOut)
	if err != nil {
		return client.SwapData{}, 0, err
	}

	return client.SwapData{
		SplTransitive: &client.TransitiveSwapData{
			From:                           from,
			To:                             to,
			TransitTokenMintPubkey:         transitToken.Mint.String(),
			NeedsCreateTransitTokenAccount: needsCreateTransitTokenAccount,
		},
	}, firstPoolAmountIn, nil
}

// topUpInputMint picks the pool side the user pays from: a top-up route
// always ends in wrapped SOL, so the input is the other mint of the first
// pool, or whichever side is not wrapped SOL for a direct route.
func topUpInputMint(pool orca.Pool) (solana.PublicKey, error) {
	if pool.TokenAMint.Equals(solana.WrappedSol) {
		return pool.TokenBMint, nil
	}
	return pool.TokenAMint, nil
}

func directSwapData(
	pool orca.Pool,
	inputMint solana.PublicKey,
	transferAuthority solana.PublicKey,
	amountIn uint64,
	minimumAmountOut uint64,
) (client.DirectSwapData, error) {
	source, destination, err := pool.TokenAccounts(inputMint)
	if err != nil {
		return client.DirectSwapData{}, err
	}
	return client.DirectSwapData{
		ProgramID:         pool.ProgramID.String(),
		AccountPubkey:     pool.Account.String(),
		AuthorityPubkey:   pool.Authority.String(),
		TransferAuthority: transferAuthority.String(),
		SourcePubkey:      source.String(),
		DestinationPubkey: destination.String(),
		PoolTokenMint:     pool.PoolTokenMint.String(),
		PoolFeeAccount:    pool.FeeAccount.String(),
		AmountIn:          amountIn,
		MinimumAmountOut:  minimumAmountOut,
	}, nil
}

// topUpDirectSwapInstruction rebuilds the on-chain top-up instruction from
// the wire-format swap description so the client's local transaction matches
// what the server will submit.
func topUpDirectSwapInstruction(
	network program.Network,
	data client.DirectSwapData,
	userAuthority solana.PublicKey,
	userSourceTokenAccount solana.PublicKey,
	feePayer solana.PublicKey,
) (solana.Instruction, error) {
	accounts, err := swapAccountsFromWire(data)
	if err != nil {
		return nil, err
	}
	return program.TopUpWithDirectSwapInstruction(network, accounts, userAuthority, userSourceTokenAccount, feePayer)
}

func topUpTransitiveSwapInstruction(
	network program.Network,
	data client.TransitiveSwapData,
	userAuthority solana.PublicKey,
	userSourceTokenAccount solana.PublicKey,
	feePayer solana.PublicKey,
) (solana.Instruction, error) {
	from, err := swapAccountsFromWire(data.From)
	if err != nil {
		return nil, err
	}
	to, err := swapAccountsFromWire(data.To)
	if err != nil {
		return nil, err
	}
	transitTokenMint, err := solana.PublicKeyFromBase58(data.TransitTokenMintPubkey)
	if err != nil {
		return nil, ErrWrongAddress
	}
	return program.TopUpWithTransitiveSwapInstruction(
		network,
		program.TransitiveSwapAccounts{
			From:             from,
			To:               to,
			TransitTokenMint: transitTokenMint,
		},
		userAuthority,
		userSourceTokenAccount,
		feePayer,
	)
}

func swapAccountsFromWire(data client.DirectSwapData) (program.DirectSwapAccounts, error) {
	keys := []string{
		data.ProgramID,
		data.AccountPubkey,
		data.AuthorityPubkey,
		data.TransferAuthority,
		data.SourcePubkey,
		data.DestinationPubkey,
		data.PoolTokenMint,
		data.PoolFeeAccount,
	}
	decoded := make([]solana.PublicKey, len(keys))
	for i, key := range keys {
		pk, err := solana.PublicKeyFromBase58(key)
		if err != nil {
			return program.DirectSwapAccounts{}, ErrWrongAddress
		}
		decoded[i] = pk
	}
	return program.DirectSwapAccounts{
		ProgramID:         decoded[0],
		Account:           decoded[1],
		Authority:         decoded[2],
		TransferAuthority: decoded[3],
		Source:            decoded[4],
		Destination:       decoded[5],
		PoolTokenMint:     decoded[6],
		PoolFeeAccount:    decoded[7],
		AmountIn:          data.AmountIn,
		MinimumAmountOut:  data.MinimumAmountOut,
	}, nil
}
