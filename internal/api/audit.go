package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/comtrace/comtrace/internal/model"
	"github.com/comtrace/comtrace/internal/store"
)

// AuditHandler exposes the append-only audit stream to administrators.
type AuditHandler struct {
	DB *sql.DB
}

// List handles GET /api/audit with optional entity, id, and limit filters.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := store.ListAuditEvents(r.Context(), h.DB,
		r.URL.Query().Get("entity"), queryID(r, "id"), limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	jsonResponse(w, http.StatusOK, events)
}
