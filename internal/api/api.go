// Package api sets up the HTTP routes and middleware for cycletimed's REST API.
package api

import (
	"net/http"

	"github.com/toolworks/cycletimed/internal/api/handlers"
	"github.com/toolworks/cycletimed/internal/auth"
	"github.com/toolworks/cycletimed/internal/batch"
	"github.com/toolworks/cycletimed/internal/config"
	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/engine"
	"github.com/toolworks/cycletimed/internal/notify"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/scheduler"
	"github.com/toolworks/cycletimed/internal/webhook"
	"github.com/toolworks/cycletimed/internal/ws"
)

// Deps holds all dependencies injected into the API handlers.
type Deps struct {
	DB        *db.DB
	Config    *config.Config
	Store     *batch.Store
	Runner    *batch.Runner
	Engine    *engine.Engine
	Ref       *refdata.Provider
	Hub       *ws.Hub
	Notify    *notify.Dispatcher
	Webhook   *webhook.Dispatcher
	Scheduler *scheduler.Engine
}

// SetupRoutes registers all HTTP routes on the given ServeMux.
// Uses Go 1.22 method+pattern routing syntax.
func SetupRoutes(mux *http.ServeMux, deps *Deps) {
	h := handlers.New(deps.DB, deps.Config, deps.Store, deps.Runner, deps.Engine,
		deps.Ref, deps.Hub, deps.Notify, deps.Webhook, deps.Scheduler)

	requireAuth := func(next http.Handler) http.Handler {
		return auth.RequireAPIKey(deps.DB, next)
	}

	// ── Estimation ───────────────────────────────────────────────────────────
	mux.Handle("POST /api/v1/estimate", requireAuth(http.HandlerFunc(h.Estimate)))

	// Batches
	mux.Handle("GET /api/v1/batches", requireAuth(http.HandlerFunc(h.ListBatches)))
	mux.Handle("POST /api/v1/batches", requireAuth(csrfGuard(http.HandlerFunc(h.CreateBatch))))
	mux.Handle("GET /api/v1/batches/{id}", requireAuth(http.HandlerFunc(h.GetBatch)))
	mux.Handle("GET /api/v1/batches/{id}/results", requireAuth(http.HandlerFunc(h.GetBatchResults)))
	mux.Handle("POST /api/v1/batches/{id}/run", requireAuth(csrfGuard(http.HandlerFunc(h.RunBatch))))
	mux.Handle("DELETE /api/v1/batches/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.DeleteBatch))))

	// Rate tables
	mux.Handle("GET /api/v1/rates", requireAuth(http.HandlerFunc(h.ListRates)))
	mux.Handle("POST /api/v1/rates", requireAuth(csrfGuard(http.HandlerFunc(h.CreateRate))))
	mux.Handle("DELETE /api/v1/rates/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.DeleteRate))))
	mux.Handle("GET /api/v1/rates/prep", requireAuth(http.HandlerFunc(h.ListPrepRates)))
	mux.Handle("PUT /api/v1/livetimes/{part}", requireAuth(csrfGuard(http.HandlerFunc(h.UpsertLiveTime))))

	// Schedules
	mux.Handle("GET /api/v1/schedules", requireAuth(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", requireAuth(csrfGuard(http.HandlerFunc(h.CreateSchedule))))
	mux.Handle("GET /api/v1/schedules/{id}", requireAuth(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.UpdateSchedule))))
	mux.Handle("DELETE /api/v1/schedules/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.DeleteSchedule))))

	// Webhooks
	mux.Handle("GET /api/v1/webhooks", requireAuth(http.HandlerFunc(h.ListWebhooks)))
	mux.Handle("POST /api/v1/webhooks", requireAuth(csrfGuard(http.HandlerFunc(h.CreateWebhook))))
	mux.Handle("GET /api/v1/webhooks/{id}", requireAuth(http.HandlerFunc(h.GetWebhook)))
	mux.Handle("PUT /api/v1/webhooks/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.UpdateWebhook))))
	mux.Handle("DELETE /api/v1/webhooks/{id}", requireAuth(csrfGuard(http.HandlerFunc(h.DeleteWebhook))))
	mux.Handle("POST /api/v1/webhooks/{id}/test", requireAuth(csrfGuard(http.HandlerFunc(h.TestWebhook))))

	// Logs
	mux.Handle("GET /api/v1/logs", requireAuth(http.HandlerFunc(h.ListLogs)))

	// Settings
	mux.Handle("GET /api/v1/settings", requireAuth(http.HandlerFunc(h.ListSettings)))
	mux.Handle("PUT /api/v1/settings/{key}", requireAuth(csrfGuard(http.HandlerFunc(h.UpdateSetting))))

	// Daemon status. Left open so monitoring works without the API key.
	mux.HandleFunc("GET /api/v1/status", h.Status)

	// WebSocket event stream
	mux.HandleFunc("GET /ws", deps.Hub.ServeWS)
}

// csrfGuard enforces X-CSRF-Token header on mutating requests.
func csrfGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-CSRF-Token") == "" {
			http.Error(w, `{"success":false,"error":"missing CSRF token"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
