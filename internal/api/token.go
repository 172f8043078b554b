package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/store"
)

// TokenHandler handles value token endpoints.
type TokenHandler struct {
	DB *sql.DB
}

type tokenAmountRequest struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

// Balance handles GET /api/token/balance/{id}.
func (h *TokenHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	balance, err := store.TokenBalance(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"account_id": id,
		"balance":    balance,
	})
}

// Mint handles POST /api/token/mint.
func (h *TokenHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req tokenAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.MintToken(r.Context(), h.DB, claims.AccountID, req.AccountID, req.Amount); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("token minted", "actor", claims.Username, "account", req.AccountID, "amount", req.Amount)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "minted"})
}

// Burn handles POST /api/token/burn.
func (h *TokenHandler) Burn(w http.ResponseWriter, r *http.Request) {
	var req tokenAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.BurnToken(r.Context(), h.DB, claims.AccountID, req.AccountID, req.Amount); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("token burned", "actor", claims.Username, "account", req.AccountID, "amount", req.Amount)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "burned"})
}

// Redeem handles POST /api/token/redeem, a burn carrying a settlement
// reference in the audit stream.
func (h *TokenHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req tokenAmountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.Redeem(r.Context(), h.DB, claims.AccountID, req.AccountID, req.Amount, req.Reference); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("token redeemed", "actor", claims.Username, "account", req.AccountID, "amount", req.Amount, "reference", req.Reference)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "redeemed"})
}

// SetPause handles PUT /api/token/pause.
func (h *TokenHandler) SetPause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetTokenPaused(r.Context(), h.DB, claims.AccountID, req.Paused); err != nil {
		storeError(w, err)
		return
	}

	slog.Warn("token pause changed", "actor", claims.Username, "paused", req.Paused)
	jsonResponse(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}
