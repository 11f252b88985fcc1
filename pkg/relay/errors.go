package relay

import (
	"errors"
	"fmt"
)

// Error is a relay error with a stable numeric code and message, matching the
// identities the fee relayer ecosystem uses so the presentation layer can map
// them without inspecting cause strings.
type Error struct {
	Code    int
	Message string
	Logs    []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("fee relayer error %d: %s", e.Code, e.Message)
}

// Is matches by code so wrapped errors compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

var (
	ErrUnknown                  = &Error{Code: -1, Message: "Unknown error"}
	ErrWrongAddress             = &Error{Code: -2, Message: "Wrong address"}
	ErrSwapPoolsNotFound        = &Error{Code: -3, Message: "Swap pools not found"}
	ErrTransitTokenMintNotFound = &Error{Code: -4, Message: "Transit token mint not found"}
	ErrInvalidAmount            = &Error{Code: -5, Message: "Invalid amount"}
	ErrInvalidSignature         = &Error{Code: -6, Message: "Invalid signature"}
	ErrUnsupportedSwap          = &Error{Code: -7, Message: "Unsupported swap"}
	ErrRelayInfoMissing         = &Error{Code: -8, Message: "Relay info missing"}
	ErrInvalidFeePayer          = &Error{Code: -9, Message: "Invalid fee payer"}
	ErrFeePayingTokenMissing    = &Error{Code: -10, Message: "No token for paying fee is provided"}
	ErrUnauthorized             = &Error{Code: -11, Message: "Unauthorized"}
	ErrInconsistentRelayContext = &Error{Code: -14, Message: "Inconsistent relay context"}
	ErrMissingBlockhash         = &Error{Code: -15, Message: "Missing recent blockhash"}
	ErrMissingRelayFeePayer     = &Error{Code: -16, Message: "Missing relay fee payer"}
)

// errTopUpSucceeded is the comparison target for ErrTopUpSuccessButTransactionThrows.
var errTopUpSucceeded = &Error{Code: -12, Message: "Topping up is successful, but the transaction failed"}

// NewTopUpSuccessButTransactionThrows reports that the top-up (fee
// reservation) landed on-chain but the relayed transaction did not. Callers
// must detect this kind and skip the top-up step on retry, otherwise the user
// is charged twice.
func NewTopUpSuccessButTransactionThrows(logs []string) *Error {
	return &Error{Code: -12, Message: errTopUpSucceeded.Message, Logs: logs}
}

// IsTopUpSuccessButTransactionThrows reports whether err is the
// reservation-consistency failure.
func IsTopUpSuccessButTransactionThrows(err error) bool {
	return errors.Is(err, errTopUpSucceeded)
}
