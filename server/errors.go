package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Ashenafi-pixel/prize-draw-ledger/ledger"
	"github.com/Ashenafi-pixel/prize-draw-ledger/lottery"
	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
	"github.com/Ashenafi-pixel/prize-draw-ledger/token"
)

// APIError is the standard error response of the ledger API.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, code int, errMsg, codeStr string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(APIError{
		Error:   errMsg,
		Code:    codeStr,
		Message: errMsg,
	})
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{errNoIdentity, http.StatusUnauthorized, "IDENTITY_REQUIRED"},
	{errInvalidIdentity, http.StatusUnauthorized, "INVALID_IDENTITY"},
	{lottery.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
	{prize.ErrIndexOutOfRange, http.StatusNotFound, "INDEX_OUT_OF_RANGE"},
	{ledger.ErrInvalidTicketCount, http.StatusBadRequest, "INVALID_TICKET_COUNT"},
	{ledger.ErrPaymentMismatch, http.StatusBadRequest, "PAYMENT_MISMATCH"},
	{ledger.ErrInvalidPrice, http.StatusBadRequest, "INVALID_PRICE"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{ledger.ErrOverflow, http.StatusBadRequest, "OVERFLOW"},
	{lottery.ErrInvalidPlayer, http.StatusBadRequest, "INVALID_PLAYER"},
	{lottery.ErrTooManyTickets, http.StatusBadRequest, "TOO_MANY_TICKETS"},
	{ledger.ErrInsufficientPrizePool, http.StatusConflict, "INSUFFICIENT_PRIZE_POOL"},
	{ledger.ErrInsufficientFloat, http.StatusConflict, "INSUFFICIENT_FLOAT"},
	{lottery.ErrPaymentFailed, http.StatusBadGateway, "PAYMENT_FAILED"},
	{lottery.ErrTransferFailed, http.StatusBadGateway, "TRANSFER_FAILED"},
	{token.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
	{token.ErrInsufficientBalance, http.StatusConflict, "INSUFFICIENT_BALANCE"},
	{token.ErrZeroAccount, http.StatusBadRequest, "INVALID_ACCOUNT"},
	{token.ErrSupplyOverflow, http.StatusBadRequest, "OVERFLOW"},
}

// writeErr maps a domain error to its status and code.
func writeErr(w http.ResponseWriter, err error) {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			writeError(w, c.status, err.Error(), c.code)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL")
}
