// cmd/server is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/boulderhaus/clubhouse/internal/config"
	"github.com/boulderhaus/clubhouse/internal/database"
	"github.com/boulderhaus/clubhouse/internal/handler"
	"github.com/boulderhaus/clubhouse/internal/repository"
	"github.com/boulderhaus/clubhouse/internal/service"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// ── 1. Connect to PostgreSQL and apply migrations ─────────────────────
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to postgres")

	if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		slog.Error("migrations", "error", err)
		os.Exit(1)
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	repo := repository.NewPool(pool)
	st := repo.Store()

	perms := service.NewPermissions(st)
	visibility := service.NewVisibility(st, cfg.Settings.DefaultMaxDifficulty)
	attendance := service.NewAttendance(repo, st, cfg.Settings.MinBalance)
	waitlist := service.NewWaitlist(repo, st)
	events := service.NewEvents(repo, st)
	ledger := service.NewLedger(repo, st)
	grants := service.NewGrants(repo)

	h := handler.New(visibility, attendance, waitlist, events, ledger, grants, perms,
		cfg.Settings.VisibleWindowDays)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger)
	r.Use(handler.CORS)
	r.Use(handler.Authenticate(cfg.JWTSecret))

	r.Get("/health", handler.HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/attendees", h.ListAttendees)
		r.Get("/{id}/waitlist", h.GetWaitlist)

		// State machine entry points require a caller identity.
		r.Group(func(r chi.Router) {
			r.Use(handler.RequireAuth)
			r.Post("/{id}/attend", h.Attend)
			r.Post("/{id}/leave", h.LeaveEvent)
			r.Post("/{id}/waitlist/join", h.JoinWaitlist)
			r.Post("/{id}/waitlist/leave", h.LeaveWaitlist)

			// Tag-scoped authorization happens inside the service.
			r.Post("/", h.CreateEvent)
			r.Put("/{id}", h.UpdateEvent)
			r.Post("/{id}/cancel", h.CancelEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/attendees/{userID}/refund", h.RefundAttendee)
		})
	})

	r.Route("/tags", func(r chi.Router) {
		r.Use(handler.RequirePermission(perms, service.PermRBACManage))
		r.Post("/", h.CreateTag)
		r.Put("/{id}", h.UpdateTag)
		r.Delete("/{id}", h.DeleteTag)
	})

	r.Route("/ledger", func(r chi.Router) {
		r.Use(handler.RequirePermission(perms, service.PermLedgerManage))
		r.Post("/", h.AddLedgerEntry)
		r.Delete("/{id}", h.DeleteLedgerEntry)
	})

	r.Route("/users/{id}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.RequirePermission(perms, service.PermLedgerManage))
			r.Get("/ledger", h.GetLedger)
			r.Get("/balance", h.GetBalance)
		})
		r.Group(func(r chi.Router) {
			r.Use(handler.RequirePermission(perms, service.PermRBACManage))
			r.Post("/permissions", h.GrantPermission)
			r.Delete("/permissions", h.RevokePermission)
			r.Post("/managed-tags", h.GrantManagedTag)
			r.Delete("/managed-tags", h.RevokeManagedTag)
			r.Put("/role", h.SetRole)
		})
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
