package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AngelCh415/campaign-dash/internal/config"
	"github.com/AngelCh415/campaign-dash/internal/httpx"
	"github.com/AngelCh415/campaign-dash/internal/ingest"
	"github.com/AngelCh415/campaign-dash/internal/metrics"
	"github.com/AngelCh415/campaign-dash/internal/session"
	"github.com/AngelCh415/campaign-dash/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)
	sheets, err := store.Open(ctx, cfg, cl)
	if err != nil {
		logger.Error("sheet store", slog.String("driver", cfg.StoreDriver), slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer sheets.Close()

	sess := openSessions(ctx, cfg, logger)
	ws := store.NewWorkingSet()
	insights := ingest.NewInsightsClient(cl, ingest.InsightsConfigFrom(cfg), logger)
	etl := ingest.NewETL(cl, sheets, ws, insights, sess, logger, cfg)

	if _, err := etl.Reload(ctx); err != nil {
		logger.Warn("initial load failed, starting empty", slog.String("err", err.Error()))
	}

	r := httpx.NewRouter(httpx.Deps{
		Log:        logger,
		ETL:        etl,
		Metrics:    metrics.NewService(ws),
		Sessions:   sess,
		Checker:    httpx.NewStaticChecker(cfg),
		SessionTTL: cfg.SessionTTL(),
		Ready: func(context.Context) error {
			if ws.LoadedAt().IsZero() {
				return fmt.Errorf("working set not loaded")
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	logger.Info("starting server", slog.String("port", cfg.Port), slog.String("store", cfg.StoreDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

// openSessions uses redis when REDIS_URL answers and falls back to memory.
func openSessions(ctx context.Context, cfg config.Config, logger *slog.Logger) session.Store {
	if cfg.RedisURL == "" {
		return session.NewMemoryStore()
	}
	rdb, err := session.DialRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, sessions kept in memory", slog.String("err", err.Error()))
		return session.NewMemoryStore()
	}
	return session.NewRedisStore(rdb, "dash:")
}
