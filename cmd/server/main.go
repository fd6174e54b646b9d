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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/printdesk/backend/internal/config"
	"github.com/printdesk/backend/internal/handler"
	"github.com/printdesk/backend/internal/logging"
	"github.com/printdesk/backend/internal/repository"
	"github.com/printdesk/backend/internal/service"
	"github.com/printdesk/backend/internal/totalsync"
	"github.com/printdesk/backend/pkg/auth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	pool, err := repository.NewPool(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("failed to connect to database", "error", err)
	}
	defer pool.Close()

	documentRepo := repository.NewPgDocumentRepository(pool)
	lineItemRepo := repository.NewPgLineItemRepository(pool)
	referenceRepo := repository.NewPgReferenceRepository(pool)

	var metrics *totalsync.Metrics
	if cfg.MetricsEnabled {
		metrics = totalsync.NewMetrics(prometheus.DefaultRegisterer)
	}

	referenceService := service.NewReferenceService(referenceRepo)
	editService := service.NewDocumentEditService(documentRepo, lineItemRepo, referenceService, service.DocumentEditConfig{
		SyncWindow:  cfg.SyncDebounce,
		BleedInches: cfg.BleedInches,
		Metrics:     metrics,
	})

	h := handler.New(pool, cfg.FrontendURL)
	documentHandler := handler.NewDocumentHandler(editService)
	referenceHandler := handler.NewReferenceHandler(referenceService)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", h.Health)
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// 認証必要エンドポイント
	sessionSecret := auth.SessionSecretBytes(cfg.SessionSecret)
	wrapAuth := func(next http.HandlerFunc) http.Handler {
		if cfg.AuthRequired {
			return auth.RequireAuth(sessionSecret)(next)
		}
		return auth.DevAuth(next)
	}

	// 単位・素材マスタ
	mux.Handle("GET /api/reference/units", wrapAuth(referenceHandler.Units))
	mux.Handle("GET /api/reference/materials", wrapAuth(referenceHandler.Materials))

	// 明細編集 API
	mux.Handle("GET /api/documents/{id}/line-items", wrapAuth(documentHandler.ListLineItems))
	mux.Handle("POST /api/documents/{id}/line-items", wrapAuth(documentHandler.CreateLineItem))
	mux.Handle("PATCH /api/documents/{id}/line-items/{order}", wrapAuth(documentHandler.UpdateLineItem))
	mux.Handle("DELETE /api/documents/{id}/line-items/{lineId}", wrapAuth(documentHandler.DeleteLineItem))
	mux.Handle("PUT /api/documents/{id}/line-items/{lineId}/order", wrapAuth(documentHandler.MoveLineItem))
	mux.Handle("PUT /api/documents/{id}/discount", wrapAuth(documentHandler.SetDiscount))
	mux.Handle("GET /api/documents/{id}/totals", wrapAuth(documentHandler.Totals))
	mux.Handle("POST /api/documents/{id}/finish", wrapAuth(documentHandler.Finish))
	mux.Handle("GET /api/documents/{id}/export.xlsx", wrapAuth(documentHandler.Export))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.RequestLogger(handler.SecurityHeaders(h.CORS(mux))),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	// 保留中の集計を書き込んでから接続を閉じる
	_ = editService.CloseAll(ctx)
	slog.Info("server stopped")
}
