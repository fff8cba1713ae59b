package rpc

import (
	"errors"
	"net/http"

	"lockdrop/core"
	"lockdrop/observability"
	"lockdrop/native/bank"
	"lockdrop/native/lockdrop"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Lockdrop error codes.
const (
	codePhaseViolation        = -32101
	codeInvalidDuration       = -32102
	codeInsufficientPrincipal = -32103
	codeAlreadyWithdrawn      = -32104
	codeNotOwner              = -32105
	codeDownstreamFailed      = -32106
	codeNotYetUnlocked        = -32107
	codeArithmeticOverflow    = -32108
	codeInvalidAmount         = -32109
	codeInvalidConfig         = -32110
	codeEntryNotFound         = -32111
	codeAlreadySet            = -32112
	codeNotInitialized        = -32113
	codeInsufficientFunds     = -32114
	codeTokenNotRegistered    = -32115
	codeEventLogDisabled      = -32116
)

var codeNames = map[int]string{
	codeParseError:            "parse_error",
	codeInvalidRequest:        "invalid_request",
	codeMethodNotFound:        "method_not_found",
	codeInvalidParams:         "invalid_params",
	codeServerError:           "server_error",
	codeUnauthorized:          "unauthorized",
	codeRateLimited:           "rate_limited",
	codePhaseViolation:        "phase_violation",
	codeInvalidDuration:       "invalid_duration",
	codeInsufficientPrincipal: "insufficient_principal",
	codeAlreadyWithdrawn:      "already_withdrawn",
	codeNotOwner:              "not_owner",
	codeDownstreamFailed:      "downstream_failed",
	codeNotYetUnlocked:        "not_yet_unlocked",
	codeArithmeticOverflow:    "arithmetic_overflow",
	codeInvalidAmount:         "invalid_amount",
	codeInvalidConfig:         "invalid_config",
	codeEntryNotFound:         "entry_not_found",
	codeAlreadySet:            "already_set",
	codeNotInitialized:        "not_initialized",
	codeInsufficientFunds:     "insufficient_funds",
	codeTokenNotRegistered:    "token_not_registered",
	codeEventLogDisabled:      "event_log_disabled",
}

// codeName returns the metrics label for a JSON-RPC result code. Zero is a
// successful call.
func codeName(code int) string {
	if code == 0 {
		return observability.CodeOK
	}
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "other"
}

type errorMapping struct {
	target error
	status int
	code   int
}

// Ordered: a downstream failure wraps the collaborator's own error and must
// win over it.
var errorMappings = []errorMapping{
	{lockdrop.ErrDownstreamTransferFailed, http.StatusBadGateway, codeDownstreamFailed},
	{lockdrop.ErrPhaseViolation, http.StatusConflict, codePhaseViolation},
	{lockdrop.ErrInvalidDuration, http.StatusBadRequest, codeInvalidDuration},
	{lockdrop.ErrInsufficientPrincipal, http.StatusBadRequest, codeInsufficientPrincipal},
	{lockdrop.ErrAlreadyWithdrawn, http.StatusConflict, codeAlreadyWithdrawn},
	{lockdrop.ErrUnauthorized, http.StatusForbidden, codeNotOwner},
	{lockdrop.ErrNotYetUnlocked, http.StatusConflict, codeNotYetUnlocked},
	{lockdrop.ErrArithmeticOverflow, http.StatusBadRequest, codeArithmeticOverflow},
	{lockdrop.ErrInvalidAmount, http.StatusBadRequest, codeInvalidAmount},
	{lockdrop.ErrInvalidConfig, http.StatusBadRequest, codeInvalidConfig},
	{lockdrop.ErrEntryNotFound, http.StatusNotFound, codeEntryNotFound},
	{lockdrop.ErrAlreadySet, http.StatusConflict, codeAlreadySet},
	{lockdrop.ErrNotInitialized, http.StatusServiceUnavailable, codeNotInitialized},
	{bank.ErrInsufficientFunds, http.StatusBadRequest, codeInsufficientFunds},
	{bank.ErrTokenNotRegistered, http.StatusBadRequest, codeTokenNotRegistered},
	{core.ErrEventLogDisabled, http.StatusNotImplemented, codeEventLogDisabled},
}

// translateError maps an engine error onto an HTTP status and JSON-RPC error.
func translateError(err error) (int, *RPCError) {
	if err == nil {
		return http.StatusOK, nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return http.StatusBadRequest, rpcErr
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, &RPCError{Code: m.code, Message: err.Error()}
		}
	}
	return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: err.Error()}
}

func invalidParams(msg string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: msg, Data: data}
}

func unauthorized(msg string) *RPCError {
	return &RPCError{Code: codeUnauthorized, Message: msg}
}
