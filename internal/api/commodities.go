package api

import (
	"database/sql"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/imaging"
	"github.com/comtrace/comtrace/internal/model"
	"github.com/comtrace/comtrace/internal/store"
)

// CommoditiesHandler handles commodity ledger endpoints.
type CommoditiesHandler struct {
	DB *sql.DB
}

type stageRequest struct {
	Stage    string `json:"stage"`
	Location string `json:"location"`
	Misc     string `json:"misc"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type commodityDetailsRequest struct {
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Misc      string          `json:"misc"`
}

type quantityRequest struct {
	Remaining int64 `json:"remaining"`
}

// List handles GET /api/commodities.
func (h *CommoditiesHandler) List(w http.ResponseWriter, r *http.Request) {
	commodities, err := store.ListCommodities(r.Context(), h.DB, queryID(r, "owner"), r.URL.Query().Get("status"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list commodities")
		return
	}
	if commodities == nil {
		commodities = []model.Commodity{}
	}
	jsonResponse(w, http.StatusOK, commodities)
}

// Get handles GET /api/commodities/{id}.
func (h *CommoditiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	commodity, err := store.GetCommodity(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get commodity")
		return
	}
	if commodity == nil {
		jsonError(w, http.StatusNotFound, "commodity not found")
		return
	}
	jsonResponse(w, http.StatusOK, commodity)
}

// UpdateStage handles PUT /api/commodities/{id}/stage.
func (h *CommoditiesHandler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	var req stageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.UpdateStage(r.Context(), h.DB, claims.AccountID, id, req.Stage, req.Location, req.Misc); err != nil {
		storeError(w, err)
		return
	}
	commodity, _ := store.GetCommodity(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, commodity)
}

// SetStatus handles PUT /api/commodities/{id}/status.
func (h *CommoditiesHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetCommodityStatus(r.Context(), h.DB, claims.AccountID, id, req.Status); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "status updated"})
}

// Update handles PUT /api/commodities/{id}. Quantity is never editable here.
func (h *CommoditiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	var req commodityDetailsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.UpdateCommodityDetails(r.Context(), h.DB, claims.AccountID, id,
		req.Title, req.Category, req.UnitPrice, req.Misc); err != nil {
		storeError(w, err)
		return
	}
	commodity, _ := store.GetCommodity(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, commodity)
}

// AdjustQuantity handles PUT /api/commodities/{id}/quantity, the
// administrative override distinct from trade consumption.
func (h *CommoditiesHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.AdjustRemaining(r.Context(), h.DB, claims.AccountID, id, req.Remaining); err != nil {
		storeError(w, err)
		return
	}
	commodity, _ := store.GetCommodity(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, commodity)
}

// UploadImage handles PUT /api/commodities/{id}/image.
func (h *CommoditiesHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	data, mime, err := imaging.Normalize(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetCommodityImage(r.Context(), h.DB, claims.AccountID, id, data, mime); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/commodities/{id}/image.
func (h *CommoditiesHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	data, mime, err := store.GetCommodityImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// GetTrades handles GET /api/commodities/{id}/trades.
func (h *CommoditiesHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid commodity id")
		return
	}

	trades, err := store.ListTrades(r.Context(), h.DB, id, 0)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	jsonResponse(w, http.StatusOK, trades)
}
