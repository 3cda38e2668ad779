package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"decision-matrix/backend/internal/api"
	"decision-matrix/backend/internal/app"
	"decision-matrix/backend/internal/config"
	"decision-matrix/backend/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}
	logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := app.OpenStore(cfg)
	if err != nil {
		logrus.Fatalf("open store: %v", err)
	}
	defer db.Close()

	responseCache, err := app.NewCache(ctx, cfg)
	if err != nil {
		logrus.Fatalf("create ai cache: %v", err)
	}
	assistant, err := app.NewAssistant(cfg.AI, responseCache)
	if err != nil {
		logrus.Fatalf("create ai assistant: %v", err)
	}
	products, err := app.OpenCatalog(cfg)
	if err != nil {
		logrus.Fatalf("load product catalog: %v", err)
	}
	publisher, err := app.NewPublisher(cfg)
	if err != nil {
		logrus.Fatalf("create publisher: %v", err)
	}

	server, err := api.NewServer(api.Config{
		Repository:     db,
		Runs:           db,
		Assistant:      assistant,
		Catalog:        products,
		Publisher:      publisher,
		Cache:          responseCache,
		Concurrency:    cfg.AI.Concurrency,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("starting decision-matrix backend on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("evaluation shutdown")
	}
}
