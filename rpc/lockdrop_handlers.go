package rpc

import (
	"context"
	"math/big"
	"net/http"
	"strings"

	"lockdrop/native/lockdrop"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 500
)

func (s *Server) handleLockdropConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	cfg, err := s.node.Config(r.Context())
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatConfig(cfg))
}

func (s *Server) handleLockdropState(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	ctx := r.Context()
	st, err := s.node.State(ctx)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	phase, err := s.node.Phase(ctx)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	rewardDust, shareDust, err := s.node.RoundingDust(ctx)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatState(phase, st, rewardDust, shareDust))
}

func (s *Server) handleLockdropPhase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	phase, err := s.node.Phase(r.Context())
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, PhaseResult{Phase: phase.String(), Code: uint8(phase)})
}

func (s *Server) handleLockdropUserInfo(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params UserParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	info, err := s.node.UserInfo(r.Context(), user)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatUserInfo(info))
}

func (s *Server) handleLockdropEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params EventsParams
	if err := decodeParams(req, &params, true); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	if limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	records, err := s.node.Events(r.Context(), limit, strings.TrimSpace(params.Prefix))
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	out := make([]EventResult, 0, len(records))
	for _, rec := range records {
		evt, err := formatEvent(rec)
		if err != nil {
			s.writeEngineError(w, r, req, err)
			return
		}
		out = append(out, evt)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleLockdropDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleLockChange(w, r, req, s.node.Deposit)
}

func (s *Server) handleLockdropWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleLockChange(w, r, req, s.node.Withdraw)
}

type lockChangeFunc func(ctx context.Context, user [20]byte, duration uint64, amount *big.Int) (*lockdrop.LockEntry, error)

func (s *Server) handleLockChange(w http.ResponseWriter, r *http.Request, req *RPCRequest, apply lockChangeFunc) {
	var params LockParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	user, err := s.resolveActor(r, "user", params.User)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	entry, err := apply(r.Context(), user, params.Duration, amount)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatLockEntry(entry))
}

func (s *Server) handleLockdropClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ClaimParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	user, err := s.resolveActor(r, "user", params.User)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	res, err := s.node.Claim(r.Context(), user, params.Duration)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatClaim(res))
}

func (s *Server) handleLockdropClaimAll(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params UserParams
	if err := decodeParams(req, &params, s.auth.Enabled()); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	user, err := s.resolveActor(r, "user", params.User)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	summary, err := s.node.ClaimAll(r.Context(), user)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatClaimSummary(summary))
}

func (s *Server) handleLockdropReturnFromAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ReturnParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	caller, err := s.resolveActor(r, "caller", params.Caller)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	entry, err := s.node.ReturnFromAuction(r.Context(), caller, user, params.Duration, amount)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatLockEntry(entry))
}

func (s *Server) handleLockdropMigrate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params AdminParams
	if err := decodeParams(req, &params, s.auth.Enabled()); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	caller, err := s.resolveActor(r, "caller", params.Caller)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	st, err := s.node.Migrate(r.Context(), caller)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	rewardDust, shareDust, err := s.node.RoundingDust(r.Context())
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatState(lockdrop.PhaseMigrated, st, rewardDust, shareDust))
}

func (s *Server) handleLockdropUpdateConfig(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params UpdateConfigParams
	if err := decodeParams(req, &params, false); err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	caller, err := s.resolveActor(r, "caller", params.Caller)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	patch, err := buildConfigPatch(params)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	cfg, err := s.node.UpdateConfig(r.Context(), caller, patch)
	if err != nil {
		s.writeEngineError(w, r, req, err)
		return
	}
	writeResult(w, req.ID, formatConfig(cfg))
}

func buildConfigPatch(params UpdateConfigParams) (lockdrop.ConfigPatch, error) {
	var patch lockdrop.ConfigPatch
	patch.RewardToken = params.RewardToken
	addressFields := []struct {
		name string
		raw  *string
		dst  **[20]byte
	}{
		{"auctionContract", params.AuctionContract, &patch.AuctionContract},
		{"generator", params.Generator, &patch.Generator},
		{"pool", params.Pool, &patch.Pool},
	}
	for _, field := range addressFields {
		if field.raw == nil {
			continue
		}
		addr, err := parseAddress(field.name, *field.raw)
		if err != nil {
			return lockdrop.ConfigPatch{}, err
		}
		*field.dst = &addr
	}
	if params.LockdropIncentives != nil {
		amount, err := parseAmount("lockdropIncentives", *params.LockdropIncentives)
		if err != nil {
			return lockdrop.ConfigPatch{}, err
		}
		patch.LockdropIncentives = amount
	}
	return patch, nil
}
