package relay

import (
	"regexp"
	"strings"
)

// ClientErrorKind classifies an on-chain failure parsed from program logs.
type ClientErrorKind string

const (
	ClientErrorInsufficientFunds       ClientErrorKind = "Insufficient funds"
	ClientErrorMaxInstructionsExceeded ClientErrorKind = "Exceeded maximum number of instructions allowed"
	ClientErrorConnectionClosed        ClientErrorKind = "Connection closed before message completed"
	ClientErrorZeroTradingTokens       ClientErrorKind = "Given pool token amount results in zero trading tokens"
	ClientErrorSlippageExceeded        ClientErrorKind = "Swap instruction exceeds desired slippage limit"
	ClientErrorUnclassified            ClientErrorKind = ""
)

// ClientError carries the parsed program logs from a failed relay request.
// Unclassified errors keep the raw logs for diagnostics.
type ClientError struct {
	ProgramLogs []string
	Kind        ClientErrorKind
	ErrorLog    string
}

// Log-text matching is best effort: upstream log wording can change, so
// everything string-based lives in this file only.
var programLogPattern = regexp.MustCompile(`"(?:Program|Transfer:) [^"]+"`)

var errorLogPrefixes = []string{
	"Program failed to complete: ",
	"Program log: Error: ",
	"Transfer: insufficient lamports ",
}

// ClassifyProgramLogs extracts quoted program-log lines from a raw relay
// error payload and maps known failure texts onto a ClientErrorKind.
func ClassifyProgramLogs(raw string) ClientError {
	if strings.Contains(raw, "connection closed before message completed") {
		return ClientError{
			Kind:     ClientErrorConnectionClosed,
			ErrorLog: "connection closed before message completed",
		}
	}

	matches := programLogPattern.FindAllString(raw, -1)
	logs := make([]string, 0, len(matches))
	for _, m := range matches {
		logs = append(logs, strings.ReplaceAll(m, `"`, ""))
	}

	var errorLog string
	for _, log := range logs {
		for _, prefix := range errorLogPrefixes {
			if strings.HasPrefix(log, prefix) {
				errorLog = log
				break
			}
		}
		if errorLog != "" {
			break
		}
	}

	kind := ClientErrorUnclassified
	switch {
	case strings.Contains(errorLog, "exceeded maximum number of instructions allowed"):
		kind = ClientErrorMaxInstructionsExceeded
	case strings.Contains(errorLog, "insufficient funds"),
		strings.Contains(errorLog, "insufficient lamports"):
		kind = ClientErrorInsufficientFunds
	case strings.Contains(errorLog, "Given pool token amount results in zero trading tokens"):
		kind = ClientErrorZeroTradingTokens
	case strings.Contains(errorLog, "Swap instruction exceeds desired slippage limit"):
		kind = ClientErrorSlippageExceeded
	}

	for _, prefix := range []string{"Program failed to complete: ", "Program log: Error: ", "Transfer: "} {
		errorLog = strings.ReplaceAll(errorLog, prefix, "")
	}

	return ClientError{ProgramLogs: logs, Kind: kind, ErrorLog: errorLog}
}
