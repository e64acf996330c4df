package rest

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/finbridge/go-bitfinex-bridge/domain"
)

// ErrBadRequest marks caller-input errors: they map to a 4xx status and
// are never retried or cached.
var ErrBadRequest = errors.New("bad request")

type orderRequest struct {
	PairName string   `json:"pairName"`
	Side     string   `json:"side"`
	Amount   *float64 `json:"amount"`
	Limit    *float64 `json:"limit"`
}

type ValidationService struct{}

func NewValidationService() *ValidationService {
	return &ValidationService{}
}

// OrderBookParams validates the book read query: both parameters are
// required, and depth 1 is rejected up front (broken live subscriptions).
func (s *ValidationService) OrderBookParams(pairName, depthParam string) (*domain.MarketSymbol, int, error) {
	if pairName == "" || depthParam == "" {
		return nil, 0, fmt.Errorf("%w: params 'pairName' and 'depth' are required", ErrBadRequest)
	}

	symbol, err := domain.NewMarketSymbolFromString(pairName)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid pairName %q, expected base_quote", ErrBadRequest, pairName)
	}

	depth, err := strconv.Atoi(depthParam)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: param 'depth' must be an integer", ErrBadRequest)
	}
	if depth <= 1 {
		return nil, 0, fmt.Errorf("%w: %s", ErrBadRequest, domain.ErrInvalidDepth)
	}

	return symbol, depth, nil
}

// MarketOrderRequest validates a quantity-bounded estimate request.
func (s *ValidationService) MarketOrderRequest(req *orderRequest) (*domain.MarketSymbol, domain.OrderSide, float64, error) {
	if req.PairName == "" || req.Side == "" || req.Amount == nil {
		return nil, "", 0, fmt.Errorf("%w: params 'pairName', 'side' and 'amount' are required", ErrBadRequest)
	}

	symbol, side, err := s.symbolAndSide(req.PairName, req.Side)
	if err != nil {
		return nil, "", 0, err
	}

	if err := requirePositive("amount", *req.Amount); err != nil {
		return nil, "", 0, err
	}
	return symbol, side, *req.Amount, nil
}

// LimitOrderRequest validates a budget-bounded estimate request.
func (s *ValidationService) LimitOrderRequest(req *orderRequest) (*domain.MarketSymbol, domain.OrderSide, float64, error) {
	if req.PairName == "" || req.Side == "" || req.Limit == nil {
		return nil, "", 0, fmt.Errorf("%w: params 'limit', 'side' and 'pairName' are required", ErrBadRequest)
	}

	symbol, side, err := s.symbolAndSide(req.PairName, req.Side)
	if err != nil {
		return nil, "", 0, err
	}

	if err := requirePositive("limit", *req.Limit); err != nil {
		return nil, "", 0, err
	}
	return symbol, side, *req.Limit, nil
}

func (s *ValidationService) symbolAndSide(pairName, side string) (*domain.MarketSymbol, domain.OrderSide, error) {
	symbol, err := domain.NewMarketSymbolFromString(pairName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid pairName %q, expected base_quote", ErrBadRequest, pairName)
	}

	if side != string(domain.OrderSide_Buy) && side != string(domain.OrderSide_Sell) {
		return nil, "", fmt.Errorf("%w: param 'side' must be 'buy' or 'sell'", ErrBadRequest)
	}
	return symbol, domain.OrderSide(side), nil
}

func requirePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: param '%s' must be a positive number", ErrBadRequest, name)
	}
	return nil
}
