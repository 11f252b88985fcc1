package client

import (
	"encoding/json"
	"fmt"
)

// Relay operation paths, relative to the versioned base URL.
const (
	PathTransferSOL          = "/transfer_sol"
	PathTransferSPLToken     = "/transfer_spl_token"
	PathRelayTopUpWithSwap   = "/relay_top_up_with_swap"
	PathRelayTransaction     = "/relay_transaction"
	PathSignRelayTransaction = "/sign_relay_transaction"
)

// RequestType pairs a relay operation's fixed path with its JSON body.
type RequestType struct {
	path   string
	params interface{}
}

// Path returns the operation path relative to the versioned base URL.
func (r RequestType) Path() string { return r.path }

// Body marshals the operation parameters.
func (r RequestType) Body() ([]byte, error) {
	body, err := json.Marshal(r.params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay request body: %w", err)
	}
	return body, nil
}

// TransferSOL posts to /transfer_sol.
func TransferSOL(params TransferSOLParams) RequestType {
	return RequestType{path: PathTransferSOL, params: params}
}

// TransferSPLToken posts to /transfer_spl_token.
func TransferSPLToken(params TransferSPLTokenParams) RequestType {
	return RequestType{path: PathTransferSPLToken, params: params}
}

// RelayTopUpWithSwap posts to /relay_top_up_with_swap.
func RelayTopUpWithSwap(params TopUpWithSwapParams) RequestType {
	return RequestType{path: PathRelayTopUpWithSwap, params: params}
}

// RelayTransaction posts to /relay_transaction.
func RelayTransaction(params RelayTransactionParams) RequestType {
	return RequestType{path: PathRelayTransaction, params: params}
}

// SignRelayTransaction posts to /sign_relay_transaction. The server signs as
// fee payer without submitting.
func SignRelayTransaction(params RelayTransactionParams) RequestType {
	return RequestType{path: PathSignRelayTransaction, params: params}
}
