// cycletimed — cycle-time estimation daemon for rotary cutting tools.
// Entry point: wires all packages and starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toolworks/cycletimed/internal/api"
	"github.com/toolworks/cycletimed/internal/auth"
	"github.com/toolworks/cycletimed/internal/batch"
	"github.com/toolworks/cycletimed/internal/config"
	"github.com/toolworks/cycletimed/internal/db"
	"github.com/toolworks/cycletimed/internal/engine"
	"github.com/toolworks/cycletimed/internal/notify"
	"github.com/toolworks/cycletimed/internal/platform"
	"github.com/toolworks/cycletimed/internal/refdata"
	"github.com/toolworks/cycletimed/internal/scheduler"
	"github.com/toolworks/cycletimed/internal/telegram"
	"github.com/toolworks/cycletimed/internal/webhook"
	"github.com/toolworks/cycletimed/internal/ws"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	log.Printf("cycletimed %s starting…", Version)

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg := config.Load()
	log.Printf("Config: port=%s workDir=%s", cfg.Port, cfg.WorkDir)

	// ── 2. Ensure work directory exists ──────────────────────────────────────
	if err := platform.EnsureDir(cfg.WorkDir); err != nil {
		log.Fatalf("EnsureDir %s: %v", cfg.WorkDir, err)
	}

	// ── 3. Open database + migrate + seed reference data ────────────────────
	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db.New: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("db.Migrate: %v", err)
	}
	if err := database.SeedReferenceData(); err != nil {
		log.Fatalf("db.SeedReferenceData: %v", err)
	}
	log.Printf("Database ready: %s", cfg.DBPath)

	// Root context — cancelled on shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 4. Provision API key ─────────────────────────────────────────────────
	if cfg.APIKey != "" {
		if err := auth.SetAPIKey(database, cfg.APIKey); err != nil {
			log.Fatalf("auth.SetAPIKey: %v", err)
		}
		log.Println("API key auth enabled")
	} else if !auth.Enabled(database) {
		log.Println("⚠  No API key configured — the API is open to anyone who can reach it")
	}

	// ── 5. Reference data + estimation engine ───────────────────────────────
	ref := refdata.NewProvider(database, cfg.TaxonomyPath)
	eng := engine.New(ref)

	// ── 6. WebSocket hub ─────────────────────────────────────────────────────
	hub := ws.NewHub()
	go hub.Run(ctx)

	// ── 7. Webhook dispatcher ────────────────────────────────────────────────
	webhookDispatcher := webhook.New(database, time.Duration(cfg.WebhookTimeoutSeconds)*time.Second)

	// ── 8. Batch store + runner ──────────────────────────────────────────────
	store := batch.NewStore(database)
	runner := batch.NewRunner(store, eng, database, hub, nil, webhookDispatcher, cfg.BatchWorkers)

	// ── 9. Telegram bot ──────────────────────────────────────────────────────
	cmdHandler := telegram.NewCommandHandler(database, store, eng, runner)
	bot, err := telegram.New(cfg.TelegramToken, cfg.TelegramChatID, cmdHandler)
	if err != nil {
		log.Printf("Telegram init error (continuing without Telegram): %v", err)
	}
	if bot != nil {
		go bot.Start(ctx)
		log.Printf("Telegram bot started (chatID=%d)", cfg.TelegramChatID)
	}

	// ── 10. Notify dispatcher — now that both channels exist ─────────────────
	notifier := notify.New(telegramSender(bot), webhookDispatcher)
	runner.SetNotifier(notifier)
	go runner.Start(ctx)

	// ── 11. Cron scheduler ───────────────────────────────────────────────────
	schedEngine := scheduler.New(database, store, runner)
	if err := schedEngine.Start(ctx); err != nil {
		log.Printf("scheduler.Start: %v", err)
	}

	// ── 12. HTTP router ──────────────────────────────────────────────────────
	mux := http.NewServeMux()
	api.SetupRoutes(mux, &api.Deps{
		DB:        database,
		Config:    cfg,
		Store:     store,
		Runner:    runner,
		Engine:    eng,
		Ref:       ref,
		Hub:       hub,
		Notify:    notifier,
		Webhook:   webhookDispatcher,
		Scheduler: schedEngine,
	})

	// Recovery + logging middleware.
	handler := loggingMiddleware(recoveryMiddleware(mux))

	// ── 13. Start HTTP server ────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received %s — shutting down…", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		runner.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}()

	log.Printf("cycletimed listening on http://0.0.0.0:%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("ListenAndServe: %v", err)
	}
	log.Printf("cycletimed stopped.")
}

// loggingMiddleware logs each request.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				log.Printf("panic: %v", rv)
				http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// telegramSender wraps *telegram.Bot to implement notify.Sender.
// Returns nil if bot is nil (Telegram disabled).
func telegramSender(bot *telegram.Bot) notify.Sender {
	if bot == nil {
		return nil
	}
	return bot
}
