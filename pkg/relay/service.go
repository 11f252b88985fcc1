package relay

import (
	"context"
	"errors"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"go.uber.org/zap"

	"sol-relay/pkg/client"
	"sol-relay/pkg/orca"
	"sol-relay/pkg/relay/program"
	solanaclient "sol-relay/pkg/solana"
)

// Configuration tunes a single relay call.
type Configuration struct {
	OperationType        string
	Currency             string
	AutoPayback          bool
	AdditionalPaybackFee uint64
}

// Service tops up the user's relay account when needed and hands
// transactions to the relay server with its fee payer substituted in.
type Service interface {
	// RelayTransaction submits one prepared transaction without topping up.
	RelayTransaction(ctx context.Context, transaction PreparedTransaction, config Configuration) (string, error)

	// SignRelayTransaction fetches the fee payer's signature without
	// submitting.
	SignRelayTransaction(ctx context.Context, transaction PreparedTransaction, config Configuration) (string, error)

	// TopUpIfNeededAndRelayTransactions funds the relay account if the
	// summed expected fees require it, then relays each transaction in
	// order.
	TopUpIfNeededAndRelayTransactions(ctx context.Context, transactions []PreparedTransaction, fee *TokenAccount, config Configuration) ([]string, error)

	// TopUpIfNeededAndSignRelayTransactions is the signature-only variant.
	TopUpIfNeededAndSignRelayTransactions(ctx context.Context, transactions []PreparedTransaction, fee *TokenAccount, config Configuration) ([]string, error)

	// TopUp funds the relay account for an externally computed fee. It
	// returns nil signatures when no top-up was needed.
	TopUp(ctx context.Context, amount FeeAmount, payingFeeToken *TokenAccount, relayContext RelayContext) ([]string, error)
}

// StatsConfig describes the client build reported to the relay server with
// every request.
type StatsConfig struct {
	DeviceType  string
	BuildNumber string
	Environment string
}

type service struct {
	account        solana.PrivateKey
	network        program.Network
	contextManager ContextManager
	solana         solanaclient.Client
	orcaSwap       orca.Service
	relayAPI       client.FeeRelayer
	feeCalculator  FeeCalculator
	topUpBuilder   TopUpTransactionBuilder
	stats          StatsConfig
	log            *zap.Logger
}

// NewService wires the default relay service. The logger may be nil.
func NewService(
	account solana.PrivateKey,
	network program.Network,
	contextManager ContextManager,
	solanaClient solanaclient.Client,
	orcaSwap orca.Service,
	relayAPI client.FeeRelayer,
	feeCalculator FeeCalculator,
	topUpBuilder TopUpTransactionBuilder,
	stats StatsConfig,
	log *zap.Logger,
) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		account:        account,
		network:        network,
		contextManager: contextManager,
		solana:         solanaClient,
		orcaSwap:       orcaSwap,
		relayAPI:       relayAPI,
		feeCalculator:  feeCalculator,
		topUpBuilder:   topUpBuilder,
		stats:          stats,
		log:            log,
	}
}

func (s *service) statsInfo(config Configuration) client.StatsInfo {
	return client.StatsInfo{
		OperationType: config.OperationType,
		DeviceType:    s.stats.DeviceType,
		Currency:      config.Currency,
		Build:         s.stats.BuildNumber,
		Environment:   s.stats.Environment,
	}
}

func (s *service) RelayTransaction(ctx context.Context, transaction PreparedTransaction, config Configuration) (string, error) {
	params, err := relayTransactionParams(transaction, s.statsInfo(config))
	if err != nil {
		return "", err
	}
	return s.relayAPI.SendTransaction(ctx, client.RelayTransaction(params))
}

func (s *service) SignRelayTransaction(ctx context.Context, transaction PreparedTransaction, config Configuration) (string, error) {
	params, err := relayTransactionParams(transaction, s.statsInfo(config))
	if err != nil {
		return "", err
	}
	return s.relayAPI.SendTransaction(ctx, client.SignRelayTransaction(params))
}

func (s *service) TopUpIfNeededAndRelayTransactions(ctx context.Context, transactions []PreparedTransaction, fee *TokenAccount, config Configuration) ([]string, error) {
	return s.topUpIfNeededAndRelayTransactions(ctx, transactions, false, fee, config)
}

func (s *service) TopUpIfNeededAndSignRelayTransactions(ctx context.Context, transactions []PreparedTransaction, fee *TokenAccount, config Configuration) ([]string, error) {
	return s.topUpIfNeededAndRelayTransactions(ctx, transactions, true, fee, config)
}

func (s *service) topUpIfNeededAndRelayTransactions(
	ctx context.Context,
	transactions []PreparedTransaction,
	getSignatureOnly bool,
	fee *TokenAccount,
	config Configuration,
) ([]string, error) {
	if err := s.contextManager.Update(ctx); err != nil {
		return nil, err
	}
	relayContext, ok := s.contextManager.CurrentContext()
	if !ok {
		return nil, ErrRelayInfoMissing
	}

	var expectedFee FeeAmount
	for _, tx := range transactions {
		expectedFee = expectedFee.Add(tx.ExpectedFee)
	}

	topUpSignatures, err := s.topUpIfNeeded(ctx, expectedFee, fee)
	if err != nil {
		return nil, err
	}
	toppedUp := topUpSignatures != nil

	// The top-up consumed one free-tier slot; make later fee checks in this
	// batch see it without waiting for the server to report usage.
	if toppedUp {
		relayContext.UsageStatus.CurrentUsage++
		relayContext.UsageStatus.AmountUsed += relayContext.LamportsPerSignature * 2
		s.contextManager.ReplaceContext(relayContext)
	}

	signatures, err := s.relayAll(ctx, transactions, getSignatureOnly, fee, config, relayContext)
	if err != nil {
		if toppedUp {
			return nil, NewTopUpSuccessButTransactionThrows(relayErrorLogs(err))
		}
		return nil, err
	}
	return signatures, nil
}

func (s *service) relayAll(
	ctx context.Context,
	transactions []PreparedTransaction,
	getSignatureOnly bool,
	fee *TokenAccount,
	config Configuration,
	relayContext RelayContext,
) ([]string, error) {
	signatures := make([]string, 0, len(transactions))

	for index, transaction := range transactions {
		additionalPaybackFee := uint64(0)
		if index == len(transactions)-1 {
			additionalPaybackFee = config.AdditionalPaybackFee
		}

		prepared, err := s.prepareRelayTransaction(relayContext, transaction, fee, additionalPaybackFee, config.AutoPayback)
		if err != nil {
			return nil, err
		}

		params, err := relayTransactionParams(prepared, s.statsInfo(config))
		if err != nil {
			return nil, err
		}

		request := client.RelayTransaction(params)
		if getSignatureOnly {
			request = client.SignRelayTransaction(params)
		}
		signature, err := s.relayAPI.SendTransaction(ctx, request)
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, signature)

		relayContext.UsageStatus.CurrentUsage++
		relayContext.UsageStatus.AmountUsed += transaction.ExpectedFee.Transaction
		s.contextManager.ReplaceContext(relayContext)

		if !getSignatureOnly && index < len(transactions)-1 {
			if err := s.solana.WaitForConfirmation(ctx, signature); err != nil {
				return nil, err
			}
		}
	}
	return signatures, nil
}

func (s *service) TopUp(ctx context.Context, amount FeeAmount, payingFeeToken *TokenAccount, relayContext RelayContext) ([]string, error) {
	current, ok := s.contextManager.CurrentContext()
	if !ok || current != relayContext {
		return nil, ErrInconsistentRelayContext
	}

	signatures, err := s.topUpIfNeeded(ctx, amount, payingFeeToken)
	if err != nil {
		return nil, err
	}
	if signatures == nil {
		return nil, nil
	}

	relayContext.UsageStatus.CurrentUsage++
	relayContext.UsageStatus.AmountUsed += relayContext.LamportsPerSignature * 2
	s.contextManager.ReplaceContext(relayContext)

	return signatures, nil
}

// topUpIfNeeded returns nil when no top-up was required.
func (s *service) topUpIfNeeded(ctx context.Context, expectedFee FeeAmount, payingFeeToken *TokenAccount) ([]string, error) {
	relayContext, ok := s.contextManager.CurrentContext()
	if !ok {
		return nil, ErrRelayInfoMissing
	}

	// Paying in wrapped SOL compensates the relayer inline; the relay
	// account stays out of the picture.
	if payingFeeToken != nil && payingFeeToken.Mint.Equals(solana.WrappedSol) {
		return nil, nil
	}

	var payingMint *solana.PublicKey
	if payingFeeToken != nil {
		payingMint = &payingFeeToken.Mint
	}
	topUpAmount := s.feeCalculator.CalculateNeededTopUpAmount(relayContext, expectedFee, payingMint)
	if topUpAmount.Total() == 0 {
		return nil, nil
	}

	if payingFeeToken == nil {
		return nil, ErrFeePayingTokenMissing
	}

	poolsPair, err := s.getPoolsPairForTopUp(ctx, topUpAmount.Total(), *payingFeeToken)
	if err != nil {
		return nil, err
	}

	return s.topUp(ctx, relayContext, *payingFeeToken, topUpAmount.Total(), poolsPair)
}

// getPoolsPairForTopUp prefers a direct route into wrapped SOL; only when
// none exists does it fall back to the best transitive route.
func (s *service) getPoolsPairForTopUp(ctx context.Context, topUpAmount uint64, payingFeeToken TokenAccount) (orca.PoolsPair, error) {
	tradablePairs, err := s.orcaSwap.GetTradablePoolsPairs(ctx, payingFeeToken.Mint, solana.WrappedSol)
	if err != nil {
		return nil, err
	}

	for _, pair := range tradablePairs {
		if len(pair) == 1 {
			return pair, nil
		}
	}

	best, err := s.orcaSwap.FindBestPoolsPairForEstimatedAmount(topUpAmount, tradablePairs)
	if err != nil || best == nil {
		return nil, ErrSwapPoolsNotFound
	}
	return best, nil
}

func (s *service) topUp(
	ctx context.Context,
	relayContext RelayContext,
	sourceToken TokenAccount,
	targetAmount uint64,
	topUpPools orca.PoolsPair,
) ([]string, error) {
	blockhash, err := s.solana.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	output, err := s.topUpBuilder.BuildTopUpTransaction(ctx, relayContext, sourceToken, topUpPools, targetAmount, blockhash)
	if err != nil {
		return nil, err
	}

	prepared := output.PreparedTransaction
	if err := signPrepared(&prepared); err != nil {
		return nil, err
	}

	ownerSignature, err := prepared.FindSignature(s.account.PublicKey())
	if err != nil {
		return nil, ErrInvalidSignature
	}

	s.log.Debug("topping up relay account",
		zap.Uint64("targetAmount", targetAmount),
		zap.String("sourceMint", sourceToken.Mint.String()),
		zap.Int("hops", len(topUpPools)),
	)

	signature, err := s.relayAPI.SendTransaction(ctx, client.RelayTopUpWithSwap(client.TopUpWithSwapParams{
		UserSourceTokenAccount: sourceToken.Address.String(),
		SourceTokenMint:        sourceToken.Mint.String(),
		UserAuthority:          s.account.PublicKey().String(),
		TopUpSwap:              output.SwapData,
		FeeAmount:              prepared.ExpectedFee.Total(),
		Signatures: client.SwapTransactionSignatures{
			UserAuthoritySignature: ownerSignature,
		},
		Blockhash: blockhash,
		Info: client.StatsInfo{
			OperationType: client.OperationTypeTopUp,
			DeviceType:    s.stats.DeviceType,
			Currency:      sourceToken.Mint.String(),
			Build:         s.stats.BuildNumber,
			Environment:   s.stats.Environment,
		},
	}))
	if err != nil {
		return nil, err
	}
	return []string{signature}, nil
}

// prepareRelayTransaction verifies the fee payer, appends the payback
// instruction covering rent plus any non-free transaction fee, and signs.
func (s *service) prepareRelayTransaction(
	relayContext RelayContext,
	transaction PreparedTransaction,
	payingFeeToken *TokenAccount,
	additionalPaybackFee uint64,
	autoPayback bool,
) (PreparedTransaction, error) {
	feePayer := relayContext.FeePayerAddress

	if transaction.Transaction == nil || len(transaction.Transaction.Message.AccountKeys) == 0 ||
		!transaction.Transaction.Message.AccountKeys[0].Equals(feePayer) {
		return PreparedTransaction{}, ErrInvalidFeePayer
	}

	paybackFee := transaction.ExpectedFee.AccountBalances + additionalPaybackFee
	if !relayContext.UsageStatus.IsFreeTransactionFeeAvailable(transaction.ExpectedFee.Transaction) {
		paybackFee += transaction.ExpectedFee.Transaction
	}

	if autoPayback && paybackFee > 0 {
		var payback solana.Instruction
		relayBalance, _ := relayContext.RelayAccountStatus.Balance()
		if payingFeeToken != nil && payingFeeToken.Mint.Equals(solana.WrappedSol) && relayBalance < paybackFee {
			payback = system.NewTransferInstruction(paybackFee, s.account.PublicKey(), feePayer).Build()
		} else {
			instruction, err := program.TransferSOLInstruction(s.account.PublicKey(), feePayer, paybackFee, s.network)
			if err != nil {
				return PreparedTransaction{}, err
			}
			payback = instruction
		}

		rebuilt, err := appendInstructions(transaction.Transaction, payback)
		if err != nil {
			return PreparedTransaction{}, err
		}
		transaction.Transaction = rebuilt
	}

	if err := signPrepared(&transaction); err != nil {
		return PreparedTransaction{}, err
	}
	return transaction, nil
}

func signPrepared(transaction *PreparedTransaction) error {
	keys := make(map[solana.PublicKey]*solana.PrivateKey, len(transaction.Signers))
	for i := range transaction.Signers {
		signer := transaction.Signers[i]
		keys[signer.PublicKey()] = &signer
	}
	_, err := transaction.Transaction.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		return keys[key]
	})
	if err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// appendInstructions decompiles a transaction's message, appends the given
// instructions and rebuilds it with the same blockhash and fee payer.
func appendInstructions(tx *solana.Transaction, extra ...solana.Instruction) (*solana.Transaction, error) {
	message := tx.Message

	instructions := make([]solana.Instruction, 0, len(message.Instructions)+len(extra))
	for _, compiled := range message.Instructions {
		programID, err := message.Program(compiled.ProgramIDIndex)
		if err != nil {
			return nil, err
		}
		metas := make(solana.AccountMetaSlice, len(compiled.Accounts))
		for i, accountIndex := range compiled.Accounts {
			key := message.AccountKeys[accountIndex]
			metas[i] = &solana.AccountMeta{
				PublicKey:  key,
				IsSigner:   messageIsSigner(message, int(accountIndex)),
				IsWritable: messageIsWritable(message, int(accountIndex)),
			}
		}
		instructions = append(instructions, solana.NewInstruction(programID, metas, compiled.Data))
	}
	instructions = append(instructions, extra...)

	return solana.NewTransaction(
		instructions,
		message.RecentBlockhash,
		solana.TransactionPayer(message.AccountKeys[0]),
	)
}

func messageIsSigner(message solana.Message, index int) bool {
	return index < int(message.Header.NumRequiredSignatures)
}

func messageIsWritable(message solana.Message, index int) bool {
	header := message.Header
	if index < int(header.NumRequiredSignatures) {
		return index < int(header.NumRequiredSignatures)-int(header.NumReadonlySignedAccounts)
	}
	return index < len(message.AccountKeys)-int(header.NumReadonlyUnsignedAccounts)
}

// relayTransactionParams compiles a signed transaction into the wire shape
// the relay endpoints expect: indexed instructions, pubkey table and the
// user-side signatures keyed by account index.
func relayTransactionParams(transaction PreparedTransaction, statsInfo client.StatsInfo) (client.RelayTransactionParams, error) {
	if transaction.Transaction == nil {
		return client.RelayTransactionParams{}, ErrMissingBlockhash
	}
	message := transaction.Transaction.Message

	pubkeys := make([]string, len(message.AccountKeys))
	for i, key := range message.AccountKeys {
		pubkeys[i] = key.String()
	}

	instructions := make([]client.RequestInstruction, len(message.Instructions))
	for i, compiled := range message.Instructions {
		accounts := make([]client.RequestAccountMeta, len(compiled.Accounts))
		for j, accountIndex := range compiled.Accounts {
			accounts[j] = client.RequestAccountMeta{
				PubkeyIndex: uint8(accountIndex),
				IsSigner:    messageIsSigner(message, int(accountIndex)),
				IsWritable:  messageIsWritable(message, int(accountIndex)),
			}
		}
		data := make([]int, len(compiled.Data))
		for j, b := range compiled.Data {
			data[j] = int(b)
		}
		instructions[i] = client.RequestInstruction{
			ProgramIndex: uint8(compiled.ProgramIDIndex),
			Accounts:     accounts,
			Data:         data,
		}
	}

	signatures := make(map[string]string, len(transaction.Signers))
	for _, signer := range transaction.Signers {
		index := -1
		for i, key := range message.AccountKeys {
			if key.Equals(signer.PublicKey()) {
				index = i
				break
			}
		}
		if index < 0 {
			return client.RelayTransactionParams{}, ErrInvalidSignature
		}
		signature, err := transaction.FindSignature(signer.PublicKey())
		if err != nil {
			return client.RelayTransactionParams{}, err
		}
		signatures[strconv.Itoa(index)] = signature
	}

	return client.RelayTransactionParams{
		Instructions: instructions,
		Signatures:   signatures,
		Pubkeys:      pubkeys,
		Blockhash:    message.RecentBlockhash.String(),
		Info:         statsInfo,
	}, nil
}

// relayErrorLogs extracts program logs from a relay server error, if the
// failure carried any.
func relayErrorLogs(err error) []string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Logs()
	}
	return nil
}
