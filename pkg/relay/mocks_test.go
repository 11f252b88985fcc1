package relay

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"

	"sol-relay/pkg/client"
	solanaclient "sol-relay/pkg/solana"
)

// mockSolanaClient serves canned chain state. Accounts missing from the map
// read as "not found".
type mockSolanaClient struct {
	accounts     map[solana.PublicKey]*solanaclient.AccountInfo
	rentExempt   map[uint64]uint64
	lamportsPS   uint64
	blockhash    string
	err          error
	sentTxs      []*solana.Transaction
	confirmed    []string
	sendErr      error
	sendSig      solana.Signature
	confirmError error
}

func newMockSolanaClient() *mockSolanaClient {
	return &mockSolanaClient{
		accounts: map[solana.PublicKey]*solanaclient.AccountInfo{},
		rentExempt: map[uint64]uint64{
			0:   890880,
			165: 2039280,
		},
		lamportsPS: 5000,
		blockhash:  "DSfeYUm7WDw1YnKodR361rg8sUzUCGdat9t7sFjDuPWZ",
	}
}

func (m *mockSolanaClient) GetAccountInfo(_ context.Context, address solana.PublicKey) (*solanaclient.AccountInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.accounts[address], nil
}

func (m *mockSolanaClient) GetBalance(_ context.Context, address solana.PublicKey) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	if info := m.accounts[address]; info != nil {
		return info.Lamports, nil
	}
	return 0, nil
}

func (m *mockSolanaClient) GetMinimumBalanceForRentExemption(_ context.Context, dataLength uint64) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	minimum, ok := m.rentExempt[dataLength]
	if !ok {
		return 0, errors.New("no fixture for data length")
	}
	return minimum, nil
}

func (m *mockSolanaClient) GetRecentBlockhash(_ context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.blockhash, nil
}

func (m *mockSolanaClient) GetLamportsPerSignature(_ context.Context) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.lamportsPS, nil
}

func (m *mockSolanaClient) SendTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if m.sendErr != nil {
		return solana.Signature{}, m.sendErr
	}
	m.sentTxs = append(m.sentTxs, tx)
	return m.sendSig, nil
}

func (m *mockSolanaClient) WaitForConfirmation(_ context.Context, signature string) error {
	if m.confirmError != nil {
		return m.confirmError
	}
	m.confirmed = append(m.confirmed, signature)
	return nil
}

// mockRelayAPI serves canned relay-server responses and records every relay
// request it receives.
type mockRelayAPI struct {
	feePayer    string
	limits      *client.FeeLimitForAuthorityResponse
	feeToken    *client.FeeTokenData
	err         error
	sendErr     error
	sendFunc    func(client.RequestType) (string, error)
	requests    []client.RequestType
	signatures  []string
	sendCounter int
}

func newMockRelayAPI(feePayer string) *mockRelayAPI {
	return &mockRelayAPI{
		feePayer: feePayer,
		limits: &client.FeeLimitForAuthorityResponse{
			Limits: client.Limits{
				UseFreeFee:                    true,
				MaxFeeAmount:                  10_000_000,
				MaxFeeCount:                   100,
				MaxTokenAccountCreationAmount: 10_000_000,
				MaxTokenAccountCreationCount:  30,
			},
		},
	}
}

func (m *mockRelayAPI) GetFeePayerPubkey(context.Context) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.feePayer, nil
}

func (m *mockRelayAPI) GetFreeFeeLimits(context.Context, string) (*client.FeeLimitForAuthorityResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.limits, nil
}

func (m *mockRelayAPI) GetFeeTokenData(context.Context, string) (*client.FeeTokenData, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.feeToken, nil
}

func (m *mockRelayAPI) SendTransaction(_ context.Context, request client.RequestType) (string, error) {
	if m.sendFunc != nil {
		signature, err := m.sendFunc(request)
		if err != nil {
			return "", err
		}
		m.requests = append(m.requests, request)
		return signature, nil
	}
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.requests = append(m.requests, request)
	if m.sendCounter < len(m.signatures) {
		signature := m.signatures[m.sendCounter]
		m.sendCounter++
		return signature, nil
	}
	m.sendCounter++
	return "mock-signature", nil
}

// stubAnalysator classifies destinations from a fixed mint table.
type stubAnalysator struct {
	results map[solana.PublicKey]DestinationAnalysatorResult
}

func (s *stubAnalysator) AnalyseDestination(_ context.Context, _, mint solana.PublicKey) (DestinationAnalysatorResult, error) {
	if result, ok := s.results[mint]; ok {
		return result, nil
	}
	if mint.Equals(solana.WrappedSol) {
		return WSOLAccount(), nil
	}
	return SPLAccount(false), nil
}

func testRelayContext() RelayContext {
	return RelayContext{
		MinimumTokenAccountBalance: 2039280,
		MinimumRelayAccountBalance: 890880,
		FeePayerAddress:            solana.MustPublicKeyFromBase58("FG4Y3yX4AAchp1HvNZ7LfzFTewF2f6nDoMDCohTFrdpT"),
		LamportsPerSignature:       5000,
		RelayAccountStatus:         RelayAccountCreated(890880),
		UsageStatus: UsageStatus{
			MaxUsage:  100,
			MaxAmount: 10_000_000,
		},
	}
}
