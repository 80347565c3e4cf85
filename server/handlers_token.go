package server

import "net/http"

// adminIssuer resolves the caller and checks the routes can run: the caller
// must be the ledger admin and the token must be hosted in process.
func (s *Server) adminIssuer(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, err := s.auth.Identity(r)
	if err != nil {
		writeErr(w, err)
		return "", false
	}
	if caller != s.svc.Admin() {
		writeError(w, http.StatusForbidden, "caller is not the admin", "UNAUTHORIZED")
		return "", false
	}
	if s.issuer == nil {
		writeError(w, http.StatusServiceUnavailable, "token is not hosted by this service", "UNAVAILABLE")
		return "", false
	}
	return caller, true
}

// handleTokenApprove lets the ledger account pull amount from the admin,
// which POST /api/admin/deposit then does.
func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminIssuer(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.issuer.Approve(r.Context(), caller, s.svc.Account(), uint64(req.Amount)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"owner":   caller,
		"spender": s.svc.Account(),
		"amount":  uint64(req.Amount),
	})
}

type mintRequest struct {
	To     string `json:"to"`
	Amount Amount `json:"amount"`
}

// handleTokenMint mints to the admin unless "to" names another account.
func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminIssuer(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}
	to := req.To
	if to == "" {
		to = caller
	}
	if err := s.issuer.Mint(r.Context(), caller, to, uint64(req.Amount)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"to": to, "amount": uint64(req.Amount)})
}

// handleTokenBurn burns from the admin's own balance.
func (s *Server) handleTokenBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminIssuer(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.issuer.Burn(r.Context(), caller, caller, uint64(req.Amount)); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"from": caller, "amount": uint64(req.Amount)})
}
