package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bitcoinworldapp/bitcoin-world-app/internal/core"
	"github.com/bitcoinworldapp/bitcoin-world-app/internal/market"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps an engine failure onto an HTTP status. Engine error
// codes are part of the wire contract and travel verbatim in the body.
func writeError(w http.ResponseWriter, err error) {
	var me *market.Error
	if errors.As(err, &me) {
		writeJSON(w, statusFor(me), errorBody{Error: errorDetail{
			Code:    fmt.Sprintf("u%d", me.Code),
			Message: me.Message,
		}})
		return
	}
	if errors.Is(err, core.ErrDuplicateRequest) {
		writeJSON(w, http.StatusConflict, errorBody{Error: errorDetail{
			Code:    "duplicate_request",
			Message: "request id already processed",
		}})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "internal",
		Message: "internal error",
	}})
}

func statusFor(me *market.Error) int {
	switch me {
	case market.ErrNotInitialized:
		return http.StatusNotFound
	case market.ErrNotAdmin:
		return http.StatusForbidden
	case market.ErrMarketExists, market.ErrAlreadyResolved, market.ErrFeeConfigLocked:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    "bad_request",
		Message: msg,
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
