package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/comtrace/comtrace/internal/model"
	"github.com/comtrace/comtrace/internal/store"
)

// RecordsHandler handles provenance record endpoints.
type RecordsHandler struct {
	DB *sql.DB
}

type metadataRequest struct {
	Metadata string `json:"metadata"`
}

type transferRequest struct {
	HolderID int64 `json:"holder_id"`
}

// List handles GET /api/records. A holder filter is required: records are
// only enumerable per holder, retired ones excluded.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	holderID := queryID(r, "holder")
	if holderID == 0 {
		jsonError(w, http.StatusBadRequest, "holder query parameter required")
		return
	}

	records, err := store.ListRecordsByHolder(r.Context(), h.DB, holderID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	jsonResponse(w, http.StatusOK, records)
}

// Get handles GET /api/records/{id}.
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	record, err := store.GetRecord(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	if record == nil {
		jsonError(w, http.StatusNotFound, "record not found")
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// UpdateMetadata handles PUT /api/records/{id}/metadata and returns the
// previous value alongside the updated record.
func (h *RecordsHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var req metadataRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	previous, err := store.UpdateRecordMetadata(r.Context(), h.DB, claims.AccountID, id, req.Metadata)
	if err != nil {
		storeError(w, err)
		return
	}

	record, _ := store.GetRecord(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, map[string]any{
		"record":   record,
		"previous": previous,
	})
}

// SetStatus handles PUT /api/records/{id}/status.
func (h *RecordsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.SetRecordStatus(r.Context(), h.DB, claims.AccountID, id, req.Status); err != nil {
		storeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "status updated"})
}

// Transfer handles POST /api/records/{id}/transfer.
func (h *RecordsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.TransferCustody(r.Context(), h.DB, claims.AccountID, id, req.HolderID); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("record custody transferred", "actor", claims.Username, "record", id, "holder", req.HolderID)
	record, _ := store.GetRecord(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, record)
}

// Retire handles POST /api/records/{id}/retire.
func (h *RecordsHandler) Retire(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.RetireRecord(r.Context(), h.DB, claims.AccountID, id); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("record retired", "actor", claims.Username, "record", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "record retired"})
}
