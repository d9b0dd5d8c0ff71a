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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/seatflow/position-engine/internal/contract"
	"github.com/seatflow/position-engine/internal/engine"
	"github.com/seatflow/position-engine/internal/metrics"
	"github.com/seatflow/position-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })

			ttl := 30 * time.Second
			if v := os.Getenv("CACHE_TTL"); v != "" {
				parsed, err := time.ParseDuration(v)
				if err != nil {
					slog.Error("invalid CACHE_TTL", "err", err)
					os.Exit(1)
				}
				ttl = parsed
			}
			st = store.NewCachedStore(st, rdb, ttl)
			slog.Info("Redis cache enabled", "ttl", ttl)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Contract registry ---
	// Populated from ingest payloads; unregistered codes fall back to
	// expiry stripping.
	table := contract.NewTable()

	// --- WebSocket hub ---
	wsHub := engine.NewWSHub()
	go wsHub.Run()

	// --- Engine service ---
	svc := engine.NewService(st, table, wsHub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"position-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for derived-table refresh events.
		r.Get("/ws", wsHub.HandleWS)

		// Raw-record ingestion.
		r.Post("/ingest/quotes", svc.IngestQuotes)
		r.Post("/ingest/holdings", svc.IngestHoldings)

		// Derived-data queries.
		r.Get("/commodities/{commodity}/weighted", svc.GetWeighted)
		r.Get("/commodities/{commodity}/seats", svc.GetSeats)
		r.Get("/commodities/{commodity}/indicators", svc.GetIndicators)
		r.Get("/commodities/{commodity}/seats/{seat}/trend", svc.GetSeatTrend)
		r.Get("/commodities/{commodity}/seats/{seat}/profit", svc.GetSeatProfit)
		r.Get("/commodities/{commodity}/distribution", svc.GetDistribution)

		// Screening.
		r.Post("/screen", svc.RunScreen)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("position-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down position-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("position-engine stopped")
}
