package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/comtrace/comtrace/internal/model"
	"github.com/comtrace/comtrace/internal/store"
)

// TradesHandler handles trade recording endpoints.
type TradesHandler struct {
	DB *sql.DB
}

type recordTradeRequest struct {
	CommodityID int64  `json:"commodity_id"`
	BuyerID     int64  `json:"buyer_id"`
	Quantity    int64  `json:"quantity"`
	Reference   string `json:"reference"`
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

// Create handles POST /api/trades. The trade, the quantity decrement, and the
// provenance record mint commit together or not at all.
func (h *TradesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req recordTradeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	trade, err := store.RecordTrade(r.Context(), h.DB, claims.AccountID,
		req.CommodityID, req.BuyerID, req.Quantity, req.Reference)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("trade recorded",
		"actor", claims.Username,
		"trade", trade.ID,
		"commodity", trade.CommodityID,
		"quantity", trade.Quantity,
		"total", trade.TotalPrice)
	jsonResponse(w, http.StatusCreated, trade)
}

// List handles GET /api/trades.
func (h *TradesHandler) List(w http.ResponseWriter, r *http.Request) {
	trades, err := store.ListTrades(r.Context(), h.DB, queryID(r, "commodity"), queryID(r, "buyer"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	jsonResponse(w, http.StatusOK, trades)
}

// Get handles GET /api/trades/{id}.
func (h *TradesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	trade, err := store.GetTrade(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get trade")
		return
	}
	if trade == nil {
		jsonError(w, http.StatusNotFound, "trade not found")
		return
	}
	jsonResponse(w, http.StatusOK, trade)
}

// CorrectReference handles PUT /api/trades/{id}/reference, the only mutable
// field of a recorded trade.
func (h *TradesHandler) CorrectReference(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	var req referenceRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.CorrectTradeReference(r.Context(), h.DB, claims.AccountID, id, req.Reference); err != nil {
		storeError(w, err)
		return
	}

	trade, _ := store.GetTrade(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, trade)
}

// GetRecord handles GET /api/trades/{id}/record.
func (h *TradesHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid trade id")
		return
	}

	record, err := store.GetRecordByTrade(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	if record == nil {
		jsonError(w, http.StatusNotFound, "no record for trade")
		return
	}
	jsonResponse(w, http.StatusOK, record)
}
