package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"lockdrop/crypto"
	"lockdrop/observability"
	"lockdrop/rpc/middleware"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20
)

// rpcRecorder remembers the JSON-RPC error code written for metrics.
type rpcRecorder struct {
	http.ResponseWriter
	code int
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	rec := &rpcRecorder{ResponseWriter: w}
	start := time.Now()
	defer func() {
		observability.RPC().ObserveCall(req.Method, codeName(rec.code), time.Since(start))
	}()

	switch req.Method {
	case "lockdrop_config":
		s.handleLockdropConfig(rec, r, req)
	case "lockdrop_state":
		s.handleLockdropState(rec, r, req)
	case "lockdrop_phase":
		s.handleLockdropPhase(rec, r, req)
	case "lockdrop_userInfo":
		s.handleLockdropUserInfo(rec, r, req)
	case "lockdrop_events":
		s.handleLockdropEvents(rec, r, req)
	case "lockdrop_deposit":
		s.handleLockdropDeposit(rec, r, req)
	case "lockdrop_withdraw":
		s.handleLockdropWithdraw(rec, r, req)
	case "lockdrop_claim":
		s.handleLockdropClaim(rec, r, req)
	case "lockdrop_claimAll":
		s.handleLockdropClaimAll(rec, r, req)
	case "lockdrop_delegateToAuction":
		s.handleLockChange(rec, r, req, s.node.DelegateToAuction)
	case "lockdrop_returnFromAuction":
		s.handleLockdropReturnFromAuction(rec, r, req)
	case "lockdrop_migrate":
		s.handleLockdropMigrate(rec, r, req)
	case "lockdrop_updateConfig":
		s.handleLockdropUpdateConfig(rec, r, req)
	case "bank_balance":
		s.handleBankBalance(rec, r, req)
	case "bank_mint":
		s.handleBankMint(rec, r, req)
	default:
		writeError(rec, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %s not found", req.Method), nil)
	}
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if rec, ok := w.(*rpcRecorder); ok {
		rec.code = code
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError translates err and writes it, logging unexpected failures.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, req *RPCRequest, err error) {
	status, rpcErr := translateError(err)
	var direct *RPCError
	if errors.As(err, &direct) && direct.Code == codeUnauthorized {
		status = http.StatusUnauthorized
		observability.RPC().RecordRejection("unauthorized")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("rpc request failed",
			"method", req.Method,
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
	}
	writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

// decodeParams unmarshals the single object parameter into dst. When optional
// is set an absent parameter leaves dst untouched.
func decodeParams(req *RPCRequest, dst interface{}, optional bool) error {
	if len(req.Params) == 0 {
		if optional {
			return nil
		}
		return invalidParams("parameter object required", nil)
	}
	if len(req.Params) != 1 {
		return invalidParams("expected a single parameter object", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return [20]byte{}, invalidParams(field+" required", nil)
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, invalidParams("invalid "+field, err.Error())
	}
	return [20]byte(addr), nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, invalidParams(field+" required", nil)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("invalid "+field, trimmed)
	}
	return value, nil
}

// resolveActor returns the account a mutating request acts for. With auth
// enabled the bearer token subject is authoritative and an explicit address
// must match it; otherwise the explicit address is required.
func (s *Server) resolveActor(r *http.Request, field, raw string) ([20]byte, error) {
	if !s.auth.Enabled() {
		return parseAddress(field, raw)
	}
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return [20]byte{}, unauthorized("bearer token required")
	}
	subject, err := crypto.ParseAddress(principal.Subject)
	if err != nil {
		return [20]byte{}, unauthorized("token subject is not an address")
	}
	if strings.TrimSpace(raw) != "" {
		requested, err := parseAddress(field, raw)
		if err != nil {
			return [20]byte{}, err
		}
		if requested != [20]byte(subject) {
			return [20]byte{}, unauthorized(field + " does not match token subject")
		}
	}
	return [20]byte(subject), nil
}
