package relay

import (
	"bytes"
	"context"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay/program"
)

// SwapTransactionParams describes the swap the user wants relayed.
type SwapTransactionParams struct {
	UserAccount             solana.PrivateKey
	Pools                   orca.PoolsPair
	InputAmount             uint64
	Slippage                float64
	SourceTokenAccount      TokenAccount
	DestinationTokenMint    solana.PublicKey
	DestinationTokenAddress *solana.PublicKey
	Blockhash               string
}

// SwapTransactionsOutput is the ordered transaction list produced by the
// builder plus any extra lamports the user owes the relayer on top of the
// network fee, e.g. the rent parked in a temporary wrapped-SOL account.
type SwapTransactionsOutput struct {
	Transactions         []PreparedTransaction
	AdditionalPaybackFee uint64
}

// SwapTransactionBuilder assembles relayed swap transactions with the relay
// server's fee payer substituted for the user's own key.
type SwapTransactionBuilder interface {
	BuildSwapTransaction(
		ctx context.Context,
		relayContext RelayContext,
		params SwapTransactionParams,
	) (SwapTransactionsOutput, error)
}

type swapTransactionBuilder struct {
	network               program.Network
	transitTokenManager   TransitTokenAccountManager
	destinationAnalysator DestinationAnalysator
}

// NewSwapTransactionBuilder builds the default builder for the given network.
func NewSwapTransactionBuilder(
	network program.Network,
	transitTokenManager TransitTokenAccountManager,
	destinationAnalysator DestinationAnalysator,
) SwapTransactionBuilder {
	return &swapTransactionBuilder{
		network:               network,
		transitTokenManager:   transitTokenManager,
		destinationAnalysator: destinationAnalysator,
	}
}

// swapEnv accumulates the mutable build state while the checks run in order:
// source, destination, transit, swap data, cleanup.
type swapEnv struct {
	userSource            solana.PublicKey
	sourceWSOLNewAccount  *solana.Wallet
	destinationNewAccount *solana.Wallet
	userDestination       solana.PublicKey
	instructions          []solana.Instruction
	additionalTransaction *PreparedTransaction
	accountCreationFee    uint64
	additionalPaybackFee  uint64
}

func (b *swapTransactionBuilder) BuildSwapTransaction(
	ctx context.Context,
	relayContext RelayContext,
	params SwapTransactionParams,
) (SwapTransactionsOutput, error) {
	if !params.Pools.IsValid() {
		return SwapTransactionsOutput{}, ErrSwapPoolsNotFound
	}
	if params.InputAmount == 0 {
		return SwapTransactionsOutput{}, ErrInvalidAmount
	}

	owner := params.UserAccount.PublicKey()
	env := &swapEnv{userSource: params.SourceTokenAccount.Address}

	if err := b.checkSource(relayContext, params, owner, env); err != nil {
		return SwapTransactionsOutput{}, err
	}
	if err := b.checkDestination(ctx, relayContext, params, owner, env); err != nil {
		return SwapTransactionsOutput{}, err
	}
	if err := b.checkTransit(ctx, relayContext, params, owner, env); err != nil {
		return SwapTransactionsOutput{}, err
	}
	if err := b.buildSwapData(relayContext, params, owner, env); err != nil {
		return SwapTransactionsOutput{}, err
	}
	b.closeTemporaryAccounts(params, owner, env)

	swapTransaction, err := b.makeTransaction(relayContext, params, env)
	if err != nil {
		return SwapTransactionsOutput{}, err
	}

	var transactions []PreparedTransaction
	if env.additionalTransaction != nil {
		transactions = append(transactions, *env.additionalTransaction)
	}
	transactions = append(transactions, swapTransaction)

	return SwapTransactionsOutput{
		Transactions:         transactions,
		AdditionalPaybackFee: env.additionalPaybackFee,
	}, nil
}

// checkSource wraps a native-SOL source into a fresh temporary wrapped-SOL
// account. The input lamports travel through the fee payer so the temporary
// account is funded in the same transaction it is created in.
func (b *swapTransactionBuilder) checkSource(
	relayContext RelayContext,
	params SwapTransactionParams,
	owner solana.PublicKey,
	env *swapEnv,
) error {
	if !params.SourceTokenAccount.Mint.Equals(solana.WrappedSol) {
		return nil
	}

	wsolAccount := solana.NewWallet()

	env.instructions = append(env.instructions,
		system.NewTransferInstruction(
			params.InputAmount,
			owner,
			relayContext.FeePayerAddress,
		).Build(),
		system.NewCreateAccountInstruction(
			params.InputAmount+relayContext.MinimumTokenAccountBalance,
			tokenAccountDataLength,
			solana.TokenProgramID,
			relayContext.FeePayerAddress,
			wsolAccount.PublicKey(),
		).Build(),
		token.NewInitializeAccountInstruction(
			wsolAccount.PublicKey(),
			solana.WrappedSol,
			owner,
			solana.SysVarRentPubkey,
		).Build(),
	)

	env.sourceWSOLNewAccount = wsolAccount
	env.userSource = wsolAccount.PublicKey()
	env.additionalPaybackFee += relayContext.MinimumTokenAccountBalance
	return nil
}

// checkDestination resolves the account the swap output lands in, creating
// it when needed. When the source already claimed a temporary wrapped-SOL
// account, the associated-account creation moves into its own transaction to
// stay under the signature limit.
func (b *swapTransactionBuilder) checkDestination(
	ctx context.Context,
	relayContext RelayContext,
	params SwapTransactionParams,
	owner solana.PublicKey,
	env *swapEnv,
) error {
	analysis, err := b.destinationAnalysator.AnalyseDestination(ctx, owner, params.DestinationTokenMint)
	if err != nil {
		return err
	}

	if analysis.IsWSOLAccount() {
		destination := solana.NewWallet()
		env.instructions = append(env.instructions,
			system.NewCreateAccountInstruction(
				relayContext.MinimumTokenAccountBalance,
				tokenAccountDataLength,
				solana.TokenProgramID,
				relayContext.FeePayerAddress,
				destination.PublicKey(),
			).Build(),
			token.NewInitializeAccountInstruction(
				destination.PublicKey(),
				solana.WrappedSol,
				owner,
				solana.SysVarRentPubkey,
			).Build(),
		)
		env.destinationNewAccount = destination
		env.userDestination = destination.PublicKey()
		env.accountCreationFee += relayContext.MinimumTokenAccountBalance
		return nil
	}

	if !analysis.NeedsCreation() && params.DestinationTokenAddress != nil {
		env.userDestination = *params.DestinationTokenAddress
		return nil
	}

	associated, _, err := solana.FindAssociatedTokenAddress(owner, params.DestinationTokenMint)
	if err != nil {
		return ErrWrongAddress
	}
	env.userDestination = associated

	if !analysis.NeedsCreation() {
		return nil
	}

	createInstruction := associatedtokenaccount.NewCreateInstruction(
		relayContext.FeePayerAddress,
		owner,
		params.DestinationTokenMint,
	).Build()

	if env.sourceWSOLNewAccount != nil {
		additional, err := b.prepare(
			relayContext,
			[]solana.Instruction{createInstruction},
			params.Blockhash,
			[]solana.PrivateKey{params.UserAccount},
			relayContext.MinimumTokenAccountBalance,
		)
		if err != nil {
			return err
		}
		env.additionalTransaction = &additional
		return nil
	}

	env.instructions = append(env.instructions, createInstruction)
	env.accountCreationFee += relayContext.MinimumTokenAccountBalance
	return nil
}

func (b *swapTransactionBuilder) checkTransit(
	ctx context.Context,
	relayContext RelayContext,
	params SwapTransactionParams,
	owner solana.PublicKey,
	env *swapEnv,
) error {
	transitToken, err := b.transitTokenManager.GetTransitToken(params.Pools)
	if err != nil {
		return err
	}
	if transitToken == nil {
		return nil
	}

	needsCreate, err := b.transitTokenManager.CheckIfNeedsCreateTransitTokenAccount(ctx, transitToken)
	if err != nil {
		return err
	}
	if needsCreate == nil || !*needsCreate {
		return nil
	}

	instruction, err := program.CreateTransitTokenAccountInstruction(
		relayContext.FeePayerAddress,
		owner,
		transitToken.Address,
		transitToken.Mint,
		b.network,
	)
	if err != nil {
		return err
	}
	env.instructions = append(env.instructions, instruction)
	return nil
}

func (b *swapTransactionBuilder) buildSwapData(
	relayContext RelayContext,
	params SwapTransactionParams,
	owner solana.PublicKey,
	env *swapEnv,
) error {
	sourceMint := params.SourceTokenAccount.Mint

	if len(params.Pools) == 1 {
		pool := params.Pools[0]
		minAmountOut, err := pool.MinimumAmountOut(params.InputAmount, sourceMint, params.Slippage)
		if err != nil {
			return err
		}
		instruction, err := directSwapInstruction(pool, sourceMint, owner, env.userSource, env.userDestination, params.InputAmount, minAmountOut)
		if err != nil {
			return err
		}
		env.instructions = append(env.instructions, instruction)
		return nil
	}

	transitToken, err := b.transitTokenManager.GetTransitToken(params.Pools)
	if err != nil {
		return err
	}
	if transitToken == nil {
		return ErrTransitTokenMintNotFound
	}

	transitMinAmountOut, err := params.Pools[0].MinimumAmountOut(params.InputAmount, sourceMint, params.Slippage)
	if err != nil {
		return err
	}
	minAmountOut, err := params.Pools[1].MinimumAmountOut(transitMinAmountOut, transitToken.Mint, params.Slippage)
	if err != nil {
		return err
	}

	fromAccounts, err := directSwapAccounts(params.Pools[0], sourceMint, owner, params.InputAmount, transitMinAmountOut)
	if err != nil {
		return err
	}
	toAccounts, err := directSwapAccounts(params.Pools[1], transitToken.Mint, owner, 0, minAmountOut)
	if err != nil {
		return err
	}

	instruction, err := program.TransitiveSwapInstruction(
		b.network,
		program.TransitiveSwapAccounts{
			From:             fromAccounts,
			To:               toAccounts,
			TransitTokenMint: transitToken.Mint,
		},
		owner,
		env.userSource,
		transitToken.Address,
		env.userDestination,
		relayContext.FeePayerAddress,
	)
	if err != nil {
		return err
	}
	env.instructions = append(env.instructions, instruction)
	return nil
}

// closeTemporaryAccounts returns any temporary wrapped-SOL lamports to the
// owner once the swap has run.
func (b *swapTransactionBuilder) closeTemporaryAccounts(
	params SwapTransactionParams,
	owner solana.PublicKey,
	env *swapEnv,
) {
	if env.sourceWSOLNewAccount != nil {
		env.instructions = append(env.instructions,
			token.NewCloseAccountInstruction(
				env.sourceWSOLNewAccount.PublicKey(),
				owner,
				owner,
				nil,
			).Build(),
		)
	}
	if env.destinationNewAccount != nil && params.DestinationTokenMint.Equals(solana.WrappedSol) {
		env.instructions = append(env.instructions,
			token.NewCloseAccountInstruction(
				env.destinationNewAccount.PublicKey(),
				owner,
				owner,
				nil,
			).Build(),
		)
	}
}

func (b *swapTransactionBuilder) makeTransaction(
	relayContext RelayContext,
	params SwapTransactionParams,
	env *swapEnv,
) (PreparedTransaction, error) {
	signers := []solana.PrivateKey{params.UserAccount}
	if env.sourceWSOLNewAccount != nil {
		signers = append(signers, env.sourceWSOLNewAccount.PrivateKey)
	}
	if env.destinationNewAccount != nil {
		signers = append(signers, env.destinationNewAccount.PrivateKey)
	}
	return b.prepare(relayContext, env.instructions, params.Blockhash, signers, env.accountCreationFee)
}

func (b *swapTransactionBuilder) prepare(
	relayContext RelayContext,
	instructions []solana.Instruction,
	blockhash string,
	signers []solana.PrivateKey,
	accountCreationFee uint64,
) (PreparedTransaction, error) {
	recentBlockhash, err := solana.HashFromBase58(blockhash)
	if err != nil {
		return PreparedTransaction{}, ErrMissingBlockhash
	}

	tx, err := solana.NewTransaction(
		instructions,
		recentBlockhash,
		solana.TransactionPayer(relayContext.FeePayerAddress),
	)
	if err != nil {
		return PreparedTransaction{}, err
	}

	// Fee payer signs server-side; it still counts toward the network fee.
	expectedFee := FeeAmount{
		Transaction:     uint64(len(signers)+1) * relayContext.LamportsPerSignature,
		AccountBalances: accountCreationFee,
	}
	return PreparedTransaction{
		Transaction: tx,
		Signers:     signers,
		ExpectedFee: expectedFee,
	}, nil
}

// directSwapInstruction builds a plain token-swap program call against one
// pool, routed directly from the user's source to their destination.
func directSwapInstruction(
	pool orca.Pool,
	inputMint solana.PublicKey,
	userTransferAuthority solana.PublicKey,
	userSource solana.PublicKey,
	userDestination solana.PublicKey,
	amountIn uint64,
	minimumAmountOut uint64,
) (solana.Instruction, error) {
	poolSource, poolDestination, err := pool.TokenAccounts(inputMint)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		pool.ProgramID,
		solana.AccountMetaSlice{
			solana.Meta(pool.Account),
			solana.Meta(pool.Authority),
			solana.Meta(userTransferAuthority).SIGNER(),
			solana.Meta(userSource).WRITE(),
			solana.Meta(poolSource).WRITE(),
			solana.Meta(poolDestination).WRITE(),
			solana.Meta(userDestination).WRITE(),
			solana.Meta(pool.PoolTokenMint).WRITE(),
			solana.Meta(pool.FeeAccount).WRITE(),
			solana.Meta(solana.TokenProgramID),
		},
		tokenSwapData(amountIn, minimumAmountOut),
	), nil
}

// tokenSwapData encodes the token-swap program's Swap instruction.
func tokenSwapData(amountIn, minimumAmountOut uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint8(1)
	_ = enc.WriteUint64(amountIn, bin.LE)
	_ = enc.WriteUint64(minimumAmountOut, bin.LE)
	return buf.Bytes()
}

// directSwapAccounts maps one pool into the account set a relay-program swap
// leg expects.
func directSwapAccounts(
	pool orca.Pool,
	inputMint solana.PublicKey,
	userTransferAuthority solana.PublicKey,
	amountIn uint64,
	minimumAmountOut uint64,
) (program.DirectSwapAccounts, error) {
	poolSource, poolDestination, err := pool.TokenAccounts(inputMint)
	if err != nil {
		return program.DirectSwapAccounts{}, err
	}
	return program.DirectSwapAccounts{
		ProgramID:         pool.ProgramID,
		Account:           pool.Account,
		Authority:         pool.Authority,
		TransferAuthority: userTransferAuthority,
		Source:            poolSource,
		Destination:       poolDestination,
		PoolTokenMint:     pool.PoolTokenMint,
		PoolFeeAccount:    pool.FeeAccount,
		AmountIn:          amountIn,
		MinimumAmountOut:  minimumAmountOut,
	}, nil
}
