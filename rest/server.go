package rest

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/finbridge/go-bitfinex-bridge/domain"
	"github.com/finbridge/go-bitfinex-bridge/usecase"
)

var logger = log.New(os.Stdout, "[rest] ", log.LstdFlags)

// marketDataService is what the HTTP boundary needs from the core.
type marketDataService interface {
	GetOrderBook(symbol *domain.MarketSymbol, depth int) (*domain.BookSnapshot, error)
	MarketOperationCost(symbol *domain.MarketSymbol, side domain.OrderSide, amount float64) (*usecase.OperationCostResult, error)
	LimitOperationCost(symbol *domain.MarketSymbol, side domain.OrderSide, limit float64) (*usecase.OperationCostResult, error)
}

type Server struct {
	service           marketDataService
	validationService *ValidationService
	httpServer        *http.Server
}

func NewServer(service marketDataService, port string) *Server {
	s := &Server{
		service:           service,
		validationService: NewValidationService(),
	}

	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleOrderBook)
	mux.HandleFunc("/order", s.handleOperationCost)
	return mux
}

func (s *Server) ListenAndServe() error {
	logger.Printf("http server listening at %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Close() error {
	return s.httpServer.Close()
}
