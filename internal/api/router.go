package api

import (
	"database/sql"
	"net/http"

	"github.com/comtrace/comtrace/internal/model"
)

// NewRouter creates the API router with all endpoints registered. Role
// middleware gates coarsely; the store layer re-checks the acting account on
// every mutation.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	accountsHandler := &AccountsHandler{DB: db}
	listingsHandler := &ListingsHandler{DB: db}
	commoditiesHandler := &CommoditiesHandler{DB: db}
	tradesHandler := &TradesHandler{DB: db}
	recordsHandler := &RecordsHandler{DB: db}
	tokenHandler := &TokenHandler{DB: db}
	auditHandler := &AuditHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Accounts and roles. Grant/revoke/root go straight to the store, which
	// enforces the grant hierarchy (some grants need the root, not just admin).
	mux.Handle("GET /api/accounts", authMW(requireAdmin(http.HandlerFunc(accountsHandler.List))))
	mux.Handle("POST /api/accounts", authMW(requireAdmin(http.HandlerFunc(accountsHandler.Create))))
	mux.Handle("GET /api/accounts/{id}", authMW(requireAdmin(http.HandlerFunc(accountsHandler.Get))))
	mux.Handle("PUT /api/accounts/{id}/role", authMW(http.HandlerFunc(accountsHandler.GrantRole)))
	mux.Handle("DELETE /api/accounts/{id}/role", authMW(http.HandlerFunc(accountsHandler.RevokeRole)))
	mux.Handle("POST /api/accounts/{id}/root", authMW(http.HandlerFunc(accountsHandler.TransferRoot)))
	mux.Handle("PUT /api/accounts/{id}/password", authMW(requireAdmin(http.HandlerFunc(accountsHandler.ResetPassword))))
	mux.Handle("DELETE /api/accounts/{id}", authMW(requireAdmin(http.HandlerFunc(accountsHandler.Delete))))

	// Listings: read (all authenticated), mutations gated by the store
	// (proposer or admin, depending on the operation).
	mux.Handle("GET /api/listings", authMW(http.HandlerFunc(listingsHandler.List)))
	mux.Handle("POST /api/listings", authMW(http.HandlerFunc(listingsHandler.Create)))
	mux.Handle("GET /api/listings/{id}", authMW(http.HandlerFunc(listingsHandler.Get)))
	mux.Handle("PUT /api/listings/{id}", authMW(http.HandlerFunc(listingsHandler.Update)))
	mux.Handle("POST /api/listings/{id}/cancel", authMW(http.HandlerFunc(listingsHandler.Cancel)))
	mux.Handle("POST /api/listings/{id}/approve", authMW(http.HandlerFunc(listingsHandler.Approve)))
	mux.Handle("POST /api/listings/{id}/reject", authMW(http.HandlerFunc(listingsHandler.Reject)))
	mux.Handle("PUT /api/listings/{id}/remark", authMW(http.HandlerFunc(listingsHandler.Annotate)))

	// Commodities: read (all authenticated), mutations by owner or admin.
	mux.Handle("GET /api/commodities", authMW(http.HandlerFunc(commoditiesHandler.List)))
	mux.Handle("GET /api/commodities/{id}", authMW(http.HandlerFunc(commoditiesHandler.Get)))
	mux.Handle("PUT /api/commodities/{id}", authMW(http.HandlerFunc(commoditiesHandler.Update)))
	mux.Handle("PUT /api/commodities/{id}/stage", authMW(http.HandlerFunc(commoditiesHandler.UpdateStage)))
	mux.Handle("PUT /api/commodities/{id}/status", authMW(http.HandlerFunc(commoditiesHandler.SetStatus)))
	mux.Handle("PUT /api/commodities/{id}/quantity", authMW(http.HandlerFunc(commoditiesHandler.AdjustQuantity)))
	mux.Handle("PUT /api/commodities/{id}/image", authMW(http.HandlerFunc(commoditiesHandler.UploadImage)))
	mux.Handle("GET /api/commodities/{id}/image", authMW(http.HandlerFunc(commoditiesHandler.GetImage)))
	mux.Handle("GET /api/commodities/{id}/trades", authMW(http.HandlerFunc(commoditiesHandler.GetTrades)))

	// Trades.
	mux.Handle("POST /api/trades", authMW(http.HandlerFunc(tradesHandler.Create)))
	mux.Handle("GET /api/trades", authMW(http.HandlerFunc(tradesHandler.List)))
	mux.Handle("GET /api/trades/{id}", authMW(http.HandlerFunc(tradesHandler.Get)))
	mux.Handle("PUT /api/trades/{id}/reference", authMW(http.HandlerFunc(tradesHandler.CorrectReference)))
	mux.Handle("GET /api/trades/{id}/record", authMW(http.HandlerFunc(tradesHandler.GetRecord)))

	// Provenance records.
	mux.Handle("GET /api/records", authMW(http.HandlerFunc(recordsHandler.List)))
	mux.Handle("GET /api/records/{id}", authMW(http.HandlerFunc(recordsHandler.Get)))
	mux.Handle("PUT /api/records/{id}/metadata", authMW(http.HandlerFunc(recordsHandler.UpdateMetadata)))
	mux.Handle("PUT /api/records/{id}/status", authMW(http.HandlerFunc(recordsHandler.SetStatus)))
	mux.Handle("POST /api/records/{id}/transfer", authMW(http.HandlerFunc(recordsHandler.Transfer)))
	mux.Handle("POST /api/records/{id}/retire", authMW(http.HandlerFunc(recordsHandler.Retire)))

	// Value token.
	mux.Handle("GET /api/token/balance/{id}", authMW(http.HandlerFunc(tokenHandler.Balance)))
	mux.Handle("POST /api/token/mint", authMW(http.HandlerFunc(tokenHandler.Mint)))
	mux.Handle("POST /api/token/burn", authMW(http.HandlerFunc(tokenHandler.Burn)))
	mux.Handle("POST /api/token/redeem", authMW(http.HandlerFunc(tokenHandler.Redeem)))
	mux.Handle("PUT /api/token/pause", authMW(http.HandlerFunc(tokenHandler.SetPause)))

	// Audit stream (admin only).
	mux.Handle("GET /api/audit", authMW(requireAdmin(http.HandlerFunc(auditHandler.List))))

	return mux
}
