package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finbridge/go-bitfinex-bridge/domain"
)

// GET /?pairName=btc_usd&depth=25
func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	symbol, depth, err := s.validationService.OrderBookParams(query.Get("pairName"), query.Get("depth"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	book, err := s.service.GetOrderBook(symbol, depth)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, book)
}

// POST /order. A body carrying 'limit' selects the budget-bounded
// estimate, otherwise 'amount' selects the quantity-bounded one.
func (s *Server) handleOperationCost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Limit != nil {
		symbol, side, limit, err := s.validationService.LimitOrderRequest(&req)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		result, err := s.service.LimitOperationCost(symbol, side, limit)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	symbol, side, amount, err := s.validationService.MarketOrderRequest(&req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	result, err := s.service.MarketOperationCost(symbol, side, amount)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusFor maps the core's error taxonomy onto HTTP: caller-input errors
// are 400, integrity failures 500, anything from the venue 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, domain.ErrInvalidDepth):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrChecksumMismatch),
		errors.Is(err, domain.ErrLevelNotFound),
		errors.Is(err, domain.ErrCorruptBookData):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("failed to encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
