package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/comtrace/comtrace/internal/model"
	"github.com/comtrace/comtrace/internal/store"
)

// AccountsHandler handles account and role management endpoints.
type AccountsHandler struct {
	DB *sql.DB
}

type createAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type grantRoleRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// List handles GET /api/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := store.ListAccounts(r.Context(), h.DB)
	if err != nil {
		slog.Error("listing accounts", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	jsonResponse(w, http.StatusOK, accounts)
}

// Create handles POST /api/accounts.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleNone
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	claims := GetClaims(r.Context())
	account, err := store.RegisterAccount(r.Context(), h.DB, claims.AccountID, req.Username, string(hash), req.Role)
	if err != nil {
		storeError(w, err)
		return
	}

	slog.Info("account created", "actor", claims.Username, "account", req.Username, "role", req.Role)
	jsonResponse(w, http.StatusCreated, account)
}

// Get handles GET /api/accounts/{id}.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := store.GetAccount(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get account")
		return
	}
	if account == nil {
		jsonError(w, http.StatusNotFound, "account not found")
		return
	}
	jsonResponse(w, http.StatusOK, account)
}

// GrantRole handles PUT /api/accounts/{id}/role.
func (h *AccountsHandler) GrantRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req grantRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.GrantRole(r.Context(), h.DB, claims.AccountID, id, req.Role); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("role granted", "actor", claims.Username, "target", id, "role", req.Role)
	account, _ := store.GetAccount(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, account)
}

// RevokeRole handles DELETE /api/accounts/{id}/role.
func (h *AccountsHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.RevokeRole(r.Context(), h.DB, claims.AccountID, id); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("role revoked", "actor", claims.Username, "target", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "role revoked"})
}

// TransferRoot handles POST /api/accounts/{id}/root.
func (h *AccountsHandler) TransferRoot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	claims := GetClaims(r.Context())
	if err := store.TransferRoot(r.Context(), h.DB, claims.AccountID, id); err != nil {
		storeError(w, err)
		return
	}

	slog.Warn("root transferred", "actor", claims.Username, "new_root", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "root transferred"})
}

// ResetPassword handles PUT /api/accounts/{id}/password.
func (h *AccountsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		jsonError(w, http.StatusBadRequest, "password required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateAccountPassword(r.Context(), h.DB, id, string(hash)); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("account password reset", "actor", claims.Username, "target", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/accounts/{id}.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	claims := GetClaims(r.Context())
	if claims.AccountID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteAccount(r.Context(), h.DB, claims.AccountID, id); err != nil {
		storeError(w, err)
		return
	}

	slog.Info("account deleted", "actor", claims.Username, "target", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
