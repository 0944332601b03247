// Package venue exposes the engine's command and read surface over HTTP for
// the presentation layer. Commands are two-phase: a request endpoint
// returns a preview, and confirm/cancel endpoints commit or discard it.
package venue

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ratefi/swap-engine/internal/engine"
	"github.com/ratefi/swap-engine/internal/market"
	"github.com/ratefi/swap-engine/internal/metrics"
	"github.com/ratefi/swap-engine/internal/model"
	"github.com/ratefi/swap-engine/internal/swap"
)

// Service handles the venue's HTTP surface. Pass nil for hub if WebSocket
// broadcasting is not needed.
type Service struct {
	engine *engine.Engine
	wsHub  *WSHub
}

// NewService creates a new venue service over an engine.
func NewService(eng *engine.Engine, hub *WSHub) *Service {
	return &Service{engine: eng, wsHub: hub}
}

// Routes mounts all command and read endpoints on the given router.
func (s *Service) Routes(r chi.Router) {
	r.Route("/commands", func(r chi.Router) {
		r.Post("/open", s.RequestOpen)
		r.Post("/unwind", s.RequestUnwind)
		r.Post("/add-margin", s.RequestAddMargin)
		r.Post("/settlement", s.RequestSettlement)
		r.Post("/day-advance", s.RequestDayAdvance)
	})
	r.Route("/pending", func(r chi.Router) {
		r.Get("/", s.GetPending)
		r.Post("/confirm", s.Confirm)
		r.Post("/cancel", s.Cancel)
	})

	r.Put("/markets/{market}", s.EditMarket)
	r.Put("/markets/{market}/price", s.OverridePrice)
	r.Delete("/settlement", s.ExitSettlement)

	r.Get("/state", s.GetState)
	r.Get("/day", s.GetDay)
	r.Get("/markets", s.GetMarkets)
	r.Get("/positions", s.GetPositions)
	r.Get("/history", s.GetHistory)
	r.Get("/accounting", s.GetAccounting)
	r.Get("/settlement", s.GetSettlement)
}

// --- Request/Response types ---

// OpenRequest is the JSON body for POST /commands/open.
type OpenRequest struct {
	Market       string          `json:"market"`
	Direction    model.Direction `json:"direction"` // "PAY" or "RECEIVE"
	NotionalDV01 decimal.Decimal `json:"notional_dv01"`
	Margin       decimal.Decimal `json:"margin"`
}

// UnwindRequest is the JSON body for POST /commands/unwind.
type UnwindRequest struct {
	PositionID string `json:"position_id"`
}

// AddMarginRequest is the JSON body for POST /commands/add-margin.
type AddMarginRequest struct {
	PositionID string          `json:"position_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// SettlementRequest is the JSON body for POST /commands/settlement.
// Omitted prices freeze the current live quotes.
type SettlementRequest struct {
	Prices map[string]decimal.Decimal `json:"prices,omitempty"`
}

// EditMarketRequest is the JSON body for PUT /markets/{market}.
type EditMarketRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// OverridePriceRequest is the JSON body for PUT /markets/{market}/price.
type OverridePriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// StateResponse is the combined session snapshot for GET /state.
type StateResponse struct {
	Balance    decimal.Decimal               `json:"balance"`
	Day        int                           `json:"day"`
	Markets    map[string]engine.MarketState `json:"markets"`
	Settlement model.SettlementState         `json:"settlement"`
	Accounting model.AccountingSnapshot      `json:"accounting"`
}

// --- Command handlers ---

// RequestOpen handles POST /api/v1/commands/open.
func (s *Service) RequestOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Market == "" {
		writeError(w, "market is required", http.StatusBadRequest)
		return
	}

	pending, err := s.engine.RequestOpen(req.Market, req.Direction, req.NotionalDV01, req.Margin)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// RequestUnwind handles POST /api/v1/commands/unwind.
func (s *Service) RequestUnwind(w http.ResponseWriter, r *http.Request) {
	var req UnwindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pending, err := s.engine.RequestUnwind(req.PositionID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// RequestAddMargin handles POST /api/v1/commands/add-margin.
func (s *Service) RequestAddMargin(w http.ResponseWriter, r *http.Request) {
	var req AddMarginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pending, err := s.engine.RequestAddMargin(req.PositionID, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// RequestSettlement handles POST /api/v1/commands/settlement.
func (s *Service) RequestSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettlementRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	pending, err := s.engine.RequestSettlement(req.Prices)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// RequestDayAdvance handles POST /api/v1/commands/day-advance.
func (s *Service) RequestDayAdvance(w http.ResponseWriter, _ *http.Request) {
	pending, err := s.engine.RequestDayAdvance()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// GetPending handles GET /api/v1/pending.
func (s *Service) GetPending(w http.ResponseWriter, _ *http.Request) {
	pending := s.engine.Pending()
	if pending == nil {
		writeError(w, "no pending action", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// Confirm handles POST /api/v1/pending/confirm: commits the pending action
// and reports the result, including liquidations from the follow-up
// revaluation pass.
func (s *Service) Confirm(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Confirm(r.Context())
	if err != nil {
		// A nil result means the command was rejected; a non-nil result
		// committed and only the history append failed.
		if result == nil {
			writeEngineError(w, err)
			return
		}
		slog.Error("trade history append failed", "err", err)
	}

	s.record(result)
	s.broadcast(result)

	slog.Info("command confirmed",
		"kind", result.Kind,
		"day", result.Day,
		"balance", result.Balance.String(),
		"liquidated", len(result.Liquidated),
	)
	writeJSON(w, http.StatusOK, result)
}

// Cancel handles POST /api/v1/pending/cancel: a pure discard.
func (s *Service) Cancel(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Cancel(); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EditMarket handles PUT /api/v1/markets/{market}.
func (s *Service) EditMarket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "market")

	var req EditMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.engine.EditMarketConfig(r.Context(), name, req.Field, req.Value)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.record(result)
	s.broadcast(result)
	writeJSON(w, http.StatusOK, result)
}

// OverridePrice handles PUT /api/v1/markets/{market}/price.
func (s *Service) OverridePrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "market")

	var req OverridePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.engine.OverrideLivePrice(r.Context(), name, req.Price)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.record(result)
	s.broadcast(result)
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "price_override", Market: name, Price: req.Price.String()})
	}
	writeJSON(w, http.StatusOK, result)
}

// ExitSettlement handles DELETE /api/v1/settlement.
func (s *Service) ExitSettlement(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ExitSettlement(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	s.record(result)
	s.broadcast(result)
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{Type: "settlement", Active: false})
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Read handlers ---

// GetState handles GET /api/v1/state.
func (s *Service) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Balance:    s.engine.Balance(),
		Day:        s.engine.Day(),
		Markets:    s.engine.Markets(),
		Settlement: s.engine.Settlement(),
		Accounting: s.engine.Accounting(),
	})
}

// GetDay handles GET /api/v1/day.
func (s *Service) GetDay(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"day": s.engine.Day()})
}

// GetMarkets handles GET /api/v1/markets.
func (s *Service) GetMarkets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Markets())
}

// GetPositions handles GET /api/v1/positions.
func (s *Service) GetPositions(w http.ResponseWriter, _ *http.Request) {
	positions := s.engine.Positions()
	if positions == nil {
		positions = []model.PositionView{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetHistory handles GET /api/v1/history.
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.History(r.Context())
	if err != nil {
		writeError(w, "failed to load trade history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.TradeRecord{}
	}

	// Optional filter by market query parameter.
	if m := r.URL.Query().Get("market"); m != "" {
		var filtered []model.TradeRecord
		for _, rec := range records {
			if rec.Market == m {
				filtered = append(filtered, rec)
			}
		}
		if filtered == nil {
			filtered = []model.TradeRecord{}
		}
		records = filtered
	}
	writeJSON(w, http.StatusOK, records)
}

// GetAccounting handles GET /api/v1/accounting.
func (s *Service) GetAccounting(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Accounting())
}

// GetSettlement handles GET /api/v1/settlement.
func (s *Service) GetSettlement(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Settlement())
}

// --- Helpers ---

// record updates metrics from a command result.
func (s *Service) record(result *engine.CommandResult) {
	metrics.SimulationDay.Set(float64(result.Day))

	if result.Position != nil {
		metrics.TradesTotal.WithLabelValues(string(result.Position.Direction), "OPENED").Inc()
		metrics.FeesCollected.Add(swap.Fee(result.Position.NotionalDV01).InexactFloat64())
	}
	if result.Trade != nil {
		metrics.TradesTotal.WithLabelValues(string(result.Trade.Direction), string(result.Trade.Status)).Inc()
	}
	for _, rec := range result.Liquidated {
		metrics.TradesTotal.WithLabelValues(string(rec.Direction), string(rec.Status)).Inc()
		metrics.Liquidations.WithLabelValues(rec.Market).Inc()
	}

	for name, st := range s.engine.Markets() {
		metrics.LivePrice.WithLabelValues(name).Set(st.LivePrice.InexactFloat64())
	}
	metrics.OpenPositions.Set(float64(len(s.engine.Positions())))
}

// broadcast pushes command outcomes to WebSocket clients.
func (s *Service) broadcast(result *engine.CommandResult) {
	if s.wsHub == nil {
		return
	}

	if result.Position != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:       "trade_opened",
			Market:     result.Position.Market,
			Price:      result.Position.EntryPrice.String(),
			PositionID: result.Position.ID,
			Direction:  string(result.Position.Direction),
		})
	}
	if result.Trade != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:      "trade_closed",
			Market:    result.Trade.Market,
			Price:     result.Trade.ExitPrice.String(),
			Direction: string(result.Trade.Direction),
			FinalPL:   result.Trade.FinalPL.String(),
		})
	}
	for _, rec := range result.Liquidated {
		s.wsHub.Broadcast(WSMessage{
			Type:      "position_liquidated",
			Market:    rec.Market,
			Price:     rec.ExitPrice.String(),
			Direction: string(rec.Direction),
			FinalPL:   rec.FinalPL.String(),
		})
	}
	if result.Kind == string(engine.PendingSettlement) {
		s.wsHub.Broadcast(WSMessage{Type: "settlement", Active: true})
	}
	if result.Kind == string(engine.PendingDayAdvance) {
		s.wsHub.Broadcast(WSMessage{Type: "day_advanced", Day: result.Day})
	}
}

// writeEngineError maps engine validation errors to HTTP statuses. All
// engine errors are rejections at the command boundary, never faults.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInsufficientBalance):
		status = http.StatusPaymentRequired
	case errors.Is(err, engine.ErrMarginTooLow), errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, market.ErrUnknownField):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrSettlementModeActive), errors.Is(err, engine.ErrPendingActionExists),
		errors.Is(err, engine.ErrNoPendingAction):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrPositionNotFound), errors.Is(err, market.ErrUnknownMarket):
		status = http.StatusNotFound
	}
	writeError(w, err.Error(), status)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
