package rpc

import (
	"net/http"
	"strings"
)

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params BalanceParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	token := strings.ToUpper(strings.TrimSpace(params.Token))
	if token == "" {
		s.writeEngineError(w, r, req, invalidParams("token required", nil))
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	balance, err := s.node.Balance(r.Context(), token, addr)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{Address: addressString(addr), Token: token, Balance: amountString(balance)})
}

// handleBankMint credits tokens on local networks. The node only lets the
// lockdrop owner mint.
func (s *Server) handleBankMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params MintParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	caller, err := s.resolveActor(r, "caller", params.Caller)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	token := strings.ToUpper(strings.TrimSpace(params.Token))
	if token == "" {
		s.writeEngineError(w, r, req, invalidParams("token required", nil))
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	if amount.Sign() <= 0 {
		s.writeEngineError(w, r, req, invalidParams("amount must be positive", params.Amount))
		return
	}
	if err := s.node.Mint(r.Context(), caller, token, to, amount); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, MintResult{To: addressString(to), Token: token, Amount: amount.String()})
}
