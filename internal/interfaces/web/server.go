package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"coinfolio/internal/application/port"
	"coinfolio/internal/application/service"
	"coinfolio/internal/domain"
)

// Server exposes the wallet API and the websocket quote stream.
type Server struct {
	addr       string
	wallets    *service.WalletService
	simulation *service.SimulationService
	hub        *Hub
}

func NewServer(addr string, wallets *service.WalletService, simulation *service.SimulationService, hub *Hub) *Server {
	return &Server{addr: addr, wallets: wallets, simulation: simulation, hub: hub}
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /wallets", s.handleCreateWallet)
	mux.HandleFunc("GET /wallets/{id}", s.handleGetWallet)
	mux.HandleFunc("POST /wallets/{id}/assets", s.handleAddAsset)
	mux.HandleFunc("POST /wallets/simulation", s.handleSimulation)
	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.addr).Msg("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type createWalletRequest struct {
	Email string `json:"email"`
}

type addAssetRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

type assetResponse struct {
	Name     string          `json:"name"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	PriceUSD decimal.Decimal `json:"priceUsd"`
}

type walletResponse struct {
	ID     string          `json:"id"`
	Email  string          `json:"email"`
	Assets []assetResponse `json:"assets"`
}

func toWalletResponse(w domain.Wallet) walletResponse {
	assets := make([]assetResponse, 0, len(w.Assets))
	for _, a := range w.Assets {
		assets = append(assets, assetResponse{
			Name:     a.Name,
			Symbol:   a.Symbol,
			Quantity: a.Quantity,
			PriceUSD: a.PriceUSD,
		})
	}
	return walletResponse{ID: strconv.FormatInt(w.ID, 10), Email: w.Email, Assets: assets}
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	wallet, err := s.wallets.CreateWallet(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWalletResponse(wallet))
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet id")
		return
	}

	wallet, err := s.wallets.GetWallet(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid wallet id")
		return
	}

	var req addAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if !req.Quantity.IsPositive() {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	wallet, err := s.wallets.AddAsset(r.Context(), id, req.Symbol, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletResponse(wallet))
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	var req service.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Assets) == 0 {
		writeError(w, http.StatusBadRequest, "assets must not be empty")
		return
	}
	for _, a := range req.Assets {
		if strings.TrimSpace(a.Symbol) == "" || !a.Quantity.IsPositive() || !a.Value.IsPositive() {
			writeError(w, http.StatusBadRequest, "every asset needs a symbol, positive quantity and positive value")
			return
		}
	}

	result, err := s.simulation.Simulate(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, port.ErrWalletNotFound), errors.Is(err, service.ErrUnknownSymbol):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, port.ErrWalletExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPriceUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
