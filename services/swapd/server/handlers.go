package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"rateswap/native/exchange"
)

const maxBodyBytes = 1 << 16

type rateView struct {
	From     string `json:"from"`
	To       string `json:"to"`
	RateFrom string `json:"rate_from"`
	RateTo   string `json:"rate_to"`
}

func newRateView(entry *exchange.RateEntry) rateView {
	return rateView{
		From:     entry.Pair.From.String(),
		To:       entry.Pair.To.String(),
		RateFrom: entry.RateFrom.Dec(),
		RateTo:   entry.RateTo.Dec(),
	}
}

type quoteView struct {
	From          string `json:"from"`
	To            string `json:"to"`
	AmountIn      string `json:"amount_in"`
	RawOutput     string `json:"raw_output"`
	FeeAmount     string `json:"fee_amount"`
	NetOutput     string `json:"net_output"`
	FeeMille      uint64 `json:"fee_mille"`
	RequiredValue string `json:"required_value"`
}

func newQuoteView(q *exchange.Quote) quoteView {
	return quoteView{
		From:          q.Pair.From.String(),
		To:            q.Pair.To.String(),
		AmountIn:      q.AmountIn.Dec(),
		RawOutput:     q.RawOutput.Dec(),
		FeeAmount:     q.FeeAmount.Dec(),
		NetOutput:     q.NetOutput.Dec(),
		FeeMille:      q.FeeMille,
		RequiredValue: q.RequiredValue.Dec(),
	}
}

type swapView struct {
	quoteView
	ReceiptID  string `json:"receipt_id"`
	Caller     string `json:"caller"`
	ChargePaid string `json:"charge_paid"`
	Refunded   string `json:"refunded"`
}

type chargeView struct {
	Minimum      string `json:"minimum"`
	RefundExcess bool   `json:"refund_excess"`
}

type tokenView struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type setRateRequest struct {
	RateFrom string `json:"rate_from"`
	RateTo   string `json:"rate_to"`
}

type setFeeRequest struct {
	FeeMille *uint64 `json:"fee_mille"`
}

type setChargeRequest struct {
	Minimum      string `json:"minimum"`
	RefundExcess bool   `json:"refund_excess"`
}

type quoteRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type swapRequest struct {
	quoteRequest
	AttachedValue string `json:"attached_value"`
}

type transferRequest struct {
	Asset  string `json:"asset"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type approveRequest struct {
	Asset   string `json:"asset"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens := s.backend.Tokens(r.Context())
	out := make([]tokenView, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, tokenView{Address: token.Address.Hex(), Symbol: token.Symbol, Decimals: token.Decimals})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": out})
}

func (s *Server) handleListRates(w http.ResponseWriter, r *http.Request) {
	entries, err := s.backend.Rates(r.Context())
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	out := make([]rateView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, newRateView(entry))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rates": out})
}

func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	from, to, ok := s.pathPair(w, r)
	if !ok {
		return
	}
	entry, found, err := s.backend.GetRate(r.Context(), from, to)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown_pair", fmt.Sprintf("no rate for %s -> %s", from, to))
		return
	}
	writeJSON(w, http.StatusOK, newRateView(entry))
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	from, to, ok := s.pathPair(w, r)
	if !ok {
		return
	}
	var req setRateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rateFrom, err := parseAmount(req.RateFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "rate_from: "+err.Error())
		return
	}
	rateTo, err := parseAmount(req.RateTo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "rate_to: "+err.Error())
		return
	}
	entry, err := s.backend.SetRate(r.Context(), principal.Address, from, to, rateFrom, rateTo)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRateView(entry))
}

func (s *Server) handleGetFee(w http.ResponseWriter, r *http.Request) {
	fee, err := s.backend.GetFee(r.Context())
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee_mille": fee})
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req setFeeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FeeMille == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "fee_mille required")
		return
	}
	if err := s.backend.SetFee(r.Context(), principal.Address, *req.FeeMille); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee_mille": *req.FeeMille})
}

func (s *Server) handleGetServiceCharge(w http.ResponseWriter, r *http.Request) {
	charge, err := s.backend.GetServiceCharge(r.Context())
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chargeView{Minimum: charge.Minimum.Dec(), RefundExcess: charge.RefundExcess})
}

func (s *Server) handleSetServiceCharge(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req setChargeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	minimum, err := parseAmount(req.Minimum)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "minimum: "+err.Error())
		return
	}
	charge := exchange.ServiceCharge{Minimum: minimum, RefundExcess: req.RefundExcess}
	if err := s.backend.SetServiceCharge(r.Context(), principal.Address, charge); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chargeView{Minimum: minimum.Dec(), RefundExcess: req.RefundExcess})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, to, amount, ok := s.parseTrade(w, req)
	if !ok {
		return
	}
	quote, err := s.backend.Quote(r.Context(), from, to, amount)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteView(quote))
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req swapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	from, to, amount, ok := s.parseTrade(w, req.quoteRequest)
	if !ok {
		return
	}
	value := new(uint256.Int)
	if strings.TrimSpace(req.AttachedValue) != "" {
		parsed, err := parseAmount(req.AttachedValue)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "attached_value: "+err.Error())
			return
		}
		value = parsed
	}
	outcome, err := s.backend.Swap(r.Context(), exchange.SwapRequest{
		Caller:        principal.Address,
		From:          from,
		To:            to,
		Amount:        amount,
		AttachedValue: value,
	})
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, swapView{
		quoteView:  newQuoteView(&outcome.Quote),
		ReceiptID:  outcome.ReceiptID,
		Caller:     outcome.Caller.Hex(),
		ChargePaid: outcome.ChargePaid.Dec(),
		Refunded:   outcome.Refunded.Dec(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	if account != "" && !ethcommon.IsHexAddress(account) {
		writeError(w, http.StatusBadRequest, "invalid_request", "account must be a hex address")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	receipts, err := s.backend.History(r.Context(), account, limit)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"swaps": receipts})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.backend.Receipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	asset, err := s.backend.ResolveAsset(query.Get("asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return
	}
	account, err := parseAddress(query.Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "account: "+err.Error())
		return
	}
	balance, err := s.backend.Balance(r.Context(), asset, account)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	decimals, err := s.backend.Decimals(r.Context(), asset)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":    asset.String(),
		"account":  account.Hex(),
		"balance":   balance.Dec(),
		"formatted": exchange.FromBaseUnits(balance, decimals),
		"decimals":  decimals,
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	asset, err := s.backend.ResolveAsset(query.Get("asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return
	}
	owner, err := parseAddress(query.Get("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "owner: "+err.Error())
		return
	}
	spender, err := parseAddress(query.Get("spender"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "spender: "+err.Error())
		return
	}
	allowance, err := s.backend.Allowance(r.Context(), asset, owner, spender)
	if err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":     asset.String(),
		"owner":     owner.Hex(),
		"spender":   spender.Hex(),
		"allowance": allowance.Dec(),
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	asset, err := s.backend.ResolveAsset(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return
	}
	recipient, err := parseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "to: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount: "+err.Error())
		return
	}
	if err := s.backend.Transfer(r.Context(), principal.Address, asset, recipient, amount); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":  asset.String(),
		"from":   principal.Address.Hex(),
		"to":     recipient.Hex(),
		"amount": amount.Dec(),
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	asset, err := s.backend.ResolveAsset(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return
	}
	spender, err := parseAddress(req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "spender: "+err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount: "+err.Error())
		return
	}
	if err := s.backend.Approve(r.Context(), principal.Address, asset, spender, amount); err != nil {
		writeRuntimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"asset":   asset.String(),
		"owner":   principal.Address.Hex(),
		"spender": spender.Hex(),
		"amount":  amount.Dec(),
	})
}

func (s *Server) pathPair(w http.ResponseWriter, r *http.Request) (exchange.Asset, exchange.Asset, bool) {
	from, err := s.backend.ResolveAsset(chi.URLParam(r, "from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return exchange.Asset{}, exchange.Asset{}, false
	}
	to, err := s.backend.ResolveAsset(chi.URLParam(r, "to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return exchange.Asset{}, exchange.Asset{}, false
	}
	return from, to, true
}

func (s *Server) parseTrade(w http.ResponseWriter, req quoteRequest) (exchange.Asset, exchange.Asset, *uint256.Int, bool) {
	from, err := s.backend.ResolveAsset(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return exchange.Asset{}, exchange.Asset{}, nil, false
	}
	to, err := s.backend.ResolveAsset(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_asset", err.Error())
		return exchange.Asset{}, exchange.Asset{}, nil, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount: "+err.Error())
		return exchange.Asset{}, exchange.Asset{}, nil, false
	}
	return from, to, amount, true
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (*Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing principal")
		return nil, false
	}
	return principal, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid json body"
		if errors.Is(err, io.EOF) {
			msg = "request body required"
		}
		writeError(w, http.StatusBadRequest, "invalid_request", msg)
		return false
	}
	return true
}

func parseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	value, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}

func parseAddress(raw string) (ethcommon.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return ethcommon.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}
