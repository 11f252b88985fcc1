package client

// Wire-format structs posted to the fee relayer server. Field names follow
// the server's snake_case contract exactly.

// StatsInfo is attached to every relay request for server-side analytics.
type StatsInfo struct {
	OperationType string `json:"operation_type"`
	DeviceType    string `json:"device_type"`
	Currency      string `json:"currency"`
	Build         string `json:"build,omitempty"`
	Environment   string `json:"environment"`
}

// Operation types reported in StatsInfo.
const (
	OperationTypeTopUp          = "TopUp"
	OperationTypeTransfer       = "Transfer"
	OperationTypeSwap           = "Swap"
	OperationTypeOther          = "Other"
	OperationTypeSendNFT        = "SendNFT"
	OperationTypeSendSeedPhrase = "SendViaLink"
)

// DirectSwapData describes a single-pool swap leg.
type DirectSwapData struct {
	ProgramID         string `json:"program_id"`
	AccountPubkey     string `json:"account_pubkey"`
	AuthorityPubkey   string `json:"authority_pubkey"`
	TransferAuthority string `json:"transfer_authority_pubkey"`
	SourcePubkey      string `json:"source_pubkey"`
	DestinationPubkey string `json:"destination_pubkey"`
	PoolTokenMint     string `json:"pool_token_mint_pubkey"`
	PoolFeeAccount    string `json:"pool_fee_account_pubkey"`
	AmountIn          uint64 `json:"amount_in"`
	MinimumAmountOut  uint64 `json:"minimum_amount_out"`
}

// TransitiveSwapData describes a two-pool swap through a transit token.
type TransitiveSwapData struct {
	From                           DirectSwapData `json:"from"`
	To                             DirectSwapData `json:"to"`
	TransitTokenMintPubkey         string         `json:"transit_token_mint_pubkey"`
	NeedsCreateTransitTokenAccount bool           `json:"needs_create_transit_token_account"`
}

// SwapData is the tagged union the server expects: exactly one of the two
// fields is set.
type SwapData struct {
	Spl           *DirectSwapData     `json:"Spl,omitempty"`
	SplTransitive *TransitiveSwapData `json:"SplTransitive,omitempty"`
}

// SwapTransactionSignatures carries the user-side signatures of a top-up
// swap; the server adds the fee payer's own.
type SwapTransactionSignatures struct {
	UserAuthoritySignature     string  `json:"user_authority_signature"`
	TransferAuthoritySignature *string `json:"transfer_authority_signature,omitempty"`
}

// TopUpWithSwapParams is the body of /relay_top_up_with_swap.
type TopUpWithSwapParams struct {
	UserSourceTokenAccount string                    `json:"user_source_token_account_pubkey"`
	SourceTokenMint        string                    `json:"source_token_mint_pubkey"`
	UserAuthority          string                    `json:"user_authority_pubkey"`
	TopUpSwap              SwapData                  `json:"top_up_swap"`
	FeeAmount              uint64                    `json:"fee_amount"`
	Signatures             SwapTransactionSignatures `json:"signatures"`
	Blockhash              string                    `json:"blockhash"`
	Info                   StatsInfo                 `json:"info"`
}

// TransferSOLParams is the body of /transfer_sol.
type TransferSOLParams struct {
	Sender    string    `json:"sender_pubkey"`
	Recipient string    `json:"recipient_pubkey"`
	Lamports  uint64    `json:"lamports"`
	Signature string    `json:"signature"`
	Blockhash string    `json:"blockhash"`
	Info      StatsInfo `json:"info"`
}

// TransferSPLTokenParams is the body of /transfer_spl_token.
type TransferSPLTokenParams struct {
	Sender    string    `json:"sender_token_account_pubkey"`
	Recipient string    `json:"recipient_pubkey"`
	Mint      string    `json:"token_mint_pubkey"`
	Authority string    `json:"authority_pubkey"`
	Amount    uint64    `json:"amount"`
	Decimals  uint8     `json:"decimals"`
	Signature string    `json:"signature"`
	Blockhash string    `json:"blockhash"`
	Info      StatsInfo `json:"info"`
}

// RequestInstruction is one compiled instruction of a relayed transaction.
// Data is a plain JSON array of byte values, not base64.
type RequestInstruction struct {
	ProgramIndex uint8                `json:"program_id"`
	Accounts     []RequestAccountMeta `json:"accounts"`
	Data         []int                `json:"data"`
}

// RequestAccountMeta references an account of the compiled message by index.
type RequestAccountMeta struct {
	PubkeyIndex uint8 `json:"pubkey"`
	IsSigner    bool  `json:"is_signer"`
	IsWritable  bool  `json:"is_writable"`
}

// RelayTransactionParams is the body of /relay_transaction and
// /sign_relay_transaction: the compiled message plus user signatures keyed
// by account index.
type RelayTransactionParams struct {
	Instructions []RequestInstruction `json:"instructions"`
	Signatures   map[string]string    `json:"signatures"`
	Pubkeys      []string             `json:"pubkeys"`
	Blockhash    string               `json:"blockhash"`
	Info         StatsInfo            `json:"info"`
}

// FeeTokenData describes a token the relay accepts fees in, with its
// SOL exchange rate.
type FeeTokenData struct {
	Name         string  `json:"name"`
	Code         string  `json:"code"`
	Mint         string  `json:"mint"`
	Account      string  `json:"account"`
	ExchangeRate float64 `json:"exchange_rate"`
}

// FeeLimitForAuthorityResponse reports the free-tier quota for a user.
type FeeLimitForAuthorityResponse struct {
	Authority    []int        `json:"authority"`
	Limits       Limits       `json:"limits"`
	ProcessedFee ProcessedFee `json:"processed_fee"`
}

// Limits is the free-tier policy applied to the authority.
type Limits struct {
	UseFreeFee                     bool   `json:"use_free_fee"`
	MaxFeeAmount                   uint64 `json:"max_fee_amount"`
	MaxFeeCount                    int    `json:"max_fee_count"`
	MaxTokenAccountCreationAmount  uint64 `json:"max_token_account_creation_amount"`
	MaxTokenAccountCreationCount   int    `json:"max_token_account_creation_count"`
	Period                         Period `json:"period"`
}

// Period is a server-side duration.
type Period struct {
	Secs  int `json:"secs"`
	Nanos int `json:"nanos"`
}

// ProcessedFee is what the authority has consumed within the current period.
type ProcessedFee struct {
	TotalFeeAmount uint64 `json:"total_fee_amount"`
	FeeCount       int    `json:"fee_count"`
	RentCount      int    `json:"rent_count"`
}
