package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Ashenafi-pixel/prize-draw-ledger/lottery"
	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
)

// Amount decodes from a JSON number or a decimal string; 18-decimal base
// units outgrow what JavaScript clients can send as numbers.
type Amount uint64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("amount %s: %w", b, err)
	}
	*a = Amount(v)
	return nil
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type ledgerResponse struct {
	Admin   string `json:"admin"`
	Account string `json:"account"`
	lottery.Summary
}

type prizeResponse struct {
	Index int `json:"index"`
	prize.Record
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledgerResponse{
		Admin:   s.svc.Admin(),
		Account: s.svc.Account(),
		Summary: s.svc.Summary(),
	})
}

func (s *Server) handlePrizes(w http.ResponseWriter, r *http.Request) {
	records := s.svc.Prizes()
	out := make([]prizeResponse, len(records))
	for i, rec := range records {
		out[i] = prizeResponse{Index: i, Record: rec}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prizes": out, "drawScale": prize.DrawScale})
}

func (s *Server) handlePrize(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	rec, err := s.svc.Prize(idx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prizeResponse{Index: idx, Record: rec})
}

type addPrizeRequest struct {
	PayoutAmount Amount `json:"payoutAmount"`
	Weight       uint64 `json:"weight"`
}

func (s *Server) handleAddPrize(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req addPrizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	idx, err := s.svc.AddPrize(r.Context(), caller, uint64(req.PayoutAmount), req.Weight)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"index": idx})
}

type updatePrizeRequest struct {
	PayoutAmount Amount `json:"payoutAmount"`
	Weight       uint64 `json:"weight"`
	Active       *bool  `json:"active"`
}

func (s *Server) handleUpdatePrize(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req updatePrizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active required", "INVALID_BODY")
		return
	}
	if err := s.svc.UpdatePrize(r.Context(), caller, idx, uint64(req.PayoutAmount), req.Weight, *req.Active); err != nil {
		writeErr(w, err)
		return
	}
	rec, _ := s.svc.Prize(idx)
	writeJSON(w, http.StatusOK, prizeResponse{Index: idx, Record: rec})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	account := r.PathValue("account")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"account": account,
		"stats":   s.svc.PlayerStats(account),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer", "INVALID_QUERY")
		return
	}
	limit, err := queryInt(q.Get("limit"), defaultHistoryLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer", "INVALID_QUERY")
		return
	}
	limit = min(limit, maxHistoryLimit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  s.svc.HistoryCount(),
		"offset": offset,
		"items":  s.svc.HistoryPage(offset, limit),
	})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	idx, ok := pathIndex(w, r)
	if !ok {
		return
	}
	rec, err := s.svc.History(idx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSimulate previews the next draw for ?player=, or for the caller.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		id, err := s.auth.Identity(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		player = id
	}
	out := s.svc.Simulate(player)
	res := simulateOutcome{Won: out.Won, PayoutAmount: out.PayoutAmount, Roll: out.Roll}
	if out.Won {
		idx := out.Index
		res.PrizeIndex = &idx
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player":  player,
		"outcome": res,
	})
}

// simulateOutcome reports a loss as a null prizeIndex, as history records do.
type simulateOutcome struct {
	Won          bool   `json:"won"`
	PrizeIndex   *int   `json:"prizeIndex"`
	PayoutAmount uint64 `json:"payoutAmount"`
	Roll         uint64 `json:"roll"`
}

type buyTicketsRequest struct {
	Count      uint64 `json:"count"`
	PaidAmount Amount `json:"paidAmount"`
}

func (s *Server) handleBuyTickets(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req buyTicketsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	receipt, err := s.svc.BuyTickets(r.Context(), caller, req.Count, uint64(req.PaidAmount))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type amountRequest struct {
	Amount Amount `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.DepositTokens(r.Context(), caller, uint64(req.Amount)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"tokenFloat": s.svc.TokenFloat()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	amount, err := s.svc.WithdrawRevenue(r.Context(), caller)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"amount": amount})
}

type priceRequest struct {
	UnitPrice Amount `json:"unitPrice"`
}

func (s *Server) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req priceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.svc.SetUnitPrice(r.Context(), caller, uint64(req.UnitPrice)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"unitPrice": s.svc.UnitPrice()})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if caller != s.svc.Admin() {
		writeError(w, http.StatusForbidden, "caller is not the admin", "UNAUTHORIZED")
		return
	}
	if s.recon == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation disabled", "UNAVAILABLE")
		return
	}
	res, err := s.recon.Check(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), "TOKEN_UNAVAILABLE")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body", "INVALID_BODY")
		return false
	}
	return true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || idx < 0 {
		writeError(w, http.StatusBadRequest, "index must be a non-negative integer", "INVALID_INDEX")
		return 0, false
	}
	return idx, true
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
