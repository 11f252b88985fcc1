package client

import (
	"encoding/json"
	"fmt"
)

// ErrorType is the server-side classification of a failed relay request.
// The raw values are the literal wire constants; NotEnoughBalance really does
// carry a trailing space on the wire.
type ErrorType string

const (
	ErrorTypeParseHashError              ErrorType = "ParseHashError"
	ErrorTypeParsePubkeyError            ErrorType = "ParsePubkeyError"
	ErrorTypeParseKeypairError           ErrorType = "ParseKeypairError"
	ErrorTypeParseSignatureError         ErrorType = "ParseSignatureError"
	ErrorTypeWrongSignature              ErrorType = "WrongSignature"
	ErrorTypeSignerError                 ErrorType = "SignerError"
	ErrorTypeClientError                 ErrorType = "ClientError"
	ErrorTypeProgramError                ErrorType = "ProgramError"
	ErrorTypeTooSmallAmount              ErrorType = "TooSmallAmount"
	ErrorTypeNotEnoughBalance            ErrorType = "NotEnoughBalance "
	ErrorTypeNotEnoughTokenBalance       ErrorType = "NotEnoughTokenBalance"
	ErrorTypeDecimalsMismatch            ErrorType = "DecimalsMismatch"
	ErrorTypeTokenAccountNotFound        ErrorType = "TokenAccountNotFound"
	ErrorTypeIncorrectAccountOwner       ErrorType = "IncorrectAccountOwner"
	ErrorTypeTokenMintMismatch           ErrorType = "TokenMintMismatch"
	ErrorTypeUnsupportedRecipientAddress ErrorType = "UnsupportedRecipientAddress"
	ErrorTypeFeeCalculatorNotFound       ErrorType = "FeeCalculatorNotFound"
	ErrorTypeNotEnoughOutAmount          ErrorType = "NotEnoughOutAmount"
	ErrorTypeUnknownSwapProgramID        ErrorType = "UnknownSwapProgramId"
	ErrorTypeUnknown                     ErrorType = "UnknownError"
)

var knownErrorTypes = map[string]ErrorType{
	string(ErrorTypeParseHashError):              ErrorTypeParseHashError,
	string(ErrorTypeParsePubkeyError):            ErrorTypeParsePubkeyError,
	string(ErrorTypeParseKeypairError):           ErrorTypeParseKeypairError,
	string(ErrorTypeParseSignatureError):         ErrorTypeParseSignatureError,
	string(ErrorTypeWrongSignature):              ErrorTypeWrongSignature,
	string(ErrorTypeSignerError):                 ErrorTypeSignerError,
	string(ErrorTypeClientError):                 ErrorTypeClientError,
	string(ErrorTypeProgramError):                ErrorTypeProgramError,
	string(ErrorTypeTooSmallAmount):              ErrorTypeTooSmallAmount,
	string(ErrorTypeNotEnoughBalance):            ErrorTypeNotEnoughBalance,
	string(ErrorTypeNotEnoughTokenBalance):       ErrorTypeNotEnoughTokenBalance,
	string(ErrorTypeDecimalsMismatch):            ErrorTypeDecimalsMismatch,
	string(ErrorTypeTokenAccountNotFound):        ErrorTypeTokenAccountNotFound,
	string(ErrorTypeIncorrectAccountOwner):       ErrorTypeIncorrectAccountOwner,
	string(ErrorTypeTokenMintMismatch):           ErrorTypeTokenMintMismatch,
	string(ErrorTypeUnsupportedRecipientAddress): ErrorTypeUnsupportedRecipientAddress,
	string(ErrorTypeFeeCalculatorNotFound):       ErrorTypeFeeCalculatorNotFound,
	string(ErrorTypeNotEnoughOutAmount):          ErrorTypeNotEnoughOutAmount,
	string(ErrorTypeUnknownSwapProgramID):        ErrorTypeUnknownSwapProgramID,
}

// APIError is the `{code, message, data}` envelope the relay server returns
// on failure.
type APIError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    *ErrorDetail `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fee relayer API error %d: %s", e.Code, e.Message)
}

// ErrorDetail decodes the server's `{ErrorType: payload}` single-entry map.
type ErrorDetail struct {
	Type ErrorType
	Data *ErrorData
}

// UnmarshalJSON treats unknown ErrorType keys as ErrorTypeUnknown so new
// server-side kinds degrade gracefully.
func (d *ErrorDetail) UnmarshalJSON(data []byte) error {
	var dict map[string]ErrorData
	if err := json.Unmarshal(data, &dict); err != nil {
		return err
	}
	d.Type = ErrorTypeUnknown
	for key, value := range dict {
		if known, ok := knownErrorTypes[key]; ok {
			d.Type = known
		}
		value := value
		d.Data = &value
		break
	}
	return nil
}

// ErrorData is either an array of program-log strings or a map of named
// amounts, depending on the error kind.
type ErrorData struct {
	Array []string
	Dict  map[string]uint64
}

func (d *ErrorData) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &d.Array); err == nil {
		return nil
	}
	d.Array = nil
	if err := json.Unmarshal(data, &d.Dict); err == nil {
		return nil
	}
	d.Dict = nil
	return nil
}

// Logs returns the program logs attached to the error, if any.
func (e *APIError) Logs() []string {
	if e.Data == nil || e.Data.Data == nil {
		return nil
	}
	return e.Data.Data.Array
}
