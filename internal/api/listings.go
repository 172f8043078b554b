package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/comtrace/comtrace/internal/model"
	"github.com/comtrace/comtrace/internal/store"
)

// ListingsHandler handles listing workflow endpoints.
type ListingsHandler struct {
	DB *sql.DB
}

type listingRequest struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type remarkRequest struct {
	Remark string `json:"remark"`
}

// queryID parses an optional numeric query parameter, 0 when absent.
func queryID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return id
}

// List handles GET /api/listings.
func (h *ListingsHandler) List(w http.ResponseWriter, r *http.Request) {
	listings, err := store.ListListings(r.Context(), h.DB, queryID(r, "proposer"), r.URL.Query().Get("status"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	jsonResponse(w, http.StatusOK, listings)
}

// Create handles POST /api/listings.
func (h *ListingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	listing, err := store.CreateListing(r.Context(), h.DB, claims.AccountID,
		req.Title, req.Category, req.Description, req.Quantity, req.UnitPrice)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, listing)
}

// Get handles GET /api/listings/{id}.
func (h *ListingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	listing, err := store.GetListing(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}
	if listing == nil {
		jsonError(w, http.StatusNotFound, "listing not found")
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Update handles PUT /api/listings/{id}.
func (h *ListingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	listing, err := store.UpdateListing(r.Context(), h.DB, claims.AccountID, id,
		req.Title, req.Category, req.Description, req.Quantity, req.UnitPrice)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, listing)
}

// Cancel handles POST /api/listings/{id}/cancel.
func (h *ListingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.CancelListing(r.Context(), h.DB, claims.AccountID, id); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "listing cancelled"})
}

// Approve handles POST /api/listings/{id}/approve. Approval creates the
// commodity, which is returned.
func (h *ListingsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req remarkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	commodity, err := store.ApproveListing(r.Context(), h.DB, claims.AccountID, id, req.Remark)
	if err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, commodity)
}

// Reject handles POST /api/listings/{id}/reject.
func (h *ListingsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req remarkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.RejectListing(r.Context(), h.DB, claims.AccountID, id, req.Remark); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "listing rejected"})
}

// Annotate handles PUT /api/listings/{id}/remark.
func (h *ListingsHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	var req remarkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.AnnotateListing(r.Context(), h.DB, claims.AccountID, id, req.Remark); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "remark updated"})
}
