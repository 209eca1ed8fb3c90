package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/mlpstudio/platform/pkg/catalog"
	"github.com/mlpstudio/platform/pkg/common/config"
	"github.com/mlpstudio/platform/pkg/common/database"
	"github.com/mlpstudio/platform/pkg/common/kafka"
	"github.com/mlpstudio/platform/pkg/common/logger"
	"github.com/mlpstudio/platform/pkg/training"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.NewPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	repo, err := training.NewRepository(db)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate training tables")
	}

	var store training.Store = repo
	if cfg.RedisEnabled {
		cache, err := database.NewRedis(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to redis")
		}
		defer database.CloseRedis(cache)
		store = training.WithCache(repo, cache, cfg.SessionCacheTTL)
	}

	var events training.Publisher
	if cfg.KafkaEnabled {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		events = producer
	}

	models, err := catalog.NewRegistry()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load model templates")
	}

	manager := training.NewManager(store, events, cfg.TrainingMaxWorkers, cfg.TrainingInitTimeout)
	handler := training.NewHTTPHandler(manager, models, cfg.MaxRequestBody)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":        cfg.ServerHost,
			"port":        cfg.ServerPort,
			"max_workers": cfg.TrainingMaxWorkers,
		}).Info("Training Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Training Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("training workers did not drain cleanly")
	}

	logger.Log.Info("Training Service stopped")
}
