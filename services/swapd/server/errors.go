package server

import (
	"encoding/json"
	"net/http"

	"rateswap/services/swapd/runtime"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var statusByCode = map[string]int{
	"unauthorized":             http.StatusForbidden,
	"invalid_rate":             http.StatusBadRequest,
	"invalid_fee":              http.StatusBadRequest,
	"identical_assets":         http.StatusBadRequest,
	"zero_amount":              http.StatusBadRequest,
	"invalid_asset":            http.StatusBadRequest,
	"overflow":                 http.StatusBadRequest,
	"invalid_amount":           http.StatusBadRequest,
	"zero_address":             http.StatusBadRequest,
	"unknown_token":            http.StatusBadRequest,
	"unknown_pair":             http.StatusNotFound,
	"receipt_not_found":        http.StatusNotFound,
	"insufficient_fee_payment": http.StatusPaymentRequired,
	"insufficient_reserve":     http.StatusConflict,
	"insufficient_allowance":   http.StatusConflict,
	"insufficient_balance":     http.StatusConflict,
	"transfer_failed":          http.StatusConflict,
}

// StatusFor maps a runtime error to its HTTP status and stable code.
func StatusFor(err error) (int, string) {
	code := runtime.ErrorCode(err)
	if status, ok := statusByCode[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, "internal"
}

func writeRuntimeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = ""
	}
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
