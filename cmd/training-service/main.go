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
	"github.com/joho/godotenv"

	"github.com/synaptica-ai/cardiorisk/pkg/artifact"
	"github.com/synaptica-ai/cardiorisk/pkg/common/config"
	"github.com/synaptica-ai/cardiorisk/pkg/common/database"
	"github.com/synaptica-ai/cardiorisk/pkg/common/kafka"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
	"github.com/synaptica-ai/cardiorisk/pkg/gateway/middleware"
	"github.com/synaptica-ai/cardiorisk/pkg/gateway/routes"
	"github.com/synaptica-ai/cardiorisk/pkg/observability/metrics"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
	"github.com/synaptica-ai/cardiorisk/pkg/training"
)

func main() {
	_ = godotenv.Load()
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	repo := training.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate training tables")
	}

	// The history pipeline is unavailable without Mongo; static jobs still run.
	var history training.HistorySource
	mongoClient, err := database.GetMongo(context.Background())
	if err != nil {
		logger.Log.WithError(err).Warn("Telemetry store unavailable, history training disabled")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
		src, err := records.NewMongoSource(ctx, mongoClient.Database(cfg.MongoDatabase), cfg.MongoDataCollections, cfg.MongoUserCollections)
		cancel()
		if err != nil {
			logger.Log.WithError(err).Warn("Telemetry collections unavailable, history training disabled")
		} else {
			history = src
		}
	}

	store := artifact.NewStore(cfg.ArtifactDir)
	runner := training.NewRunner(training.RunnerConfig{
		StaticDataPath:    cfg.StaticDataPath,
		StaticCandidates:  cfg.StaticCandidates,
		HistoryCandidates: cfg.HistoryCandidates,
		ConditionLimit:    cfg.ConditionLimit,
		MinRows:           cfg.MinTrainingRows,
		Workers:           cfg.CandidateWorkers,
	}, store, history)

	producer := kafka.NewProducer(cfg.KafkaModelTopic)
	defer producer.Close()

	service := training.NewService(repo, runner, producer, cfg.TrainingMaxWorkers, cfg.TrainingJobTimeout)

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging, middleware.CORS, middleware.BodyLimit(cfg.MaxRequestBody))
	routes.RegisterHealth(router, "training-service")
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	api := router.PathPrefix("/api/v1").Subrouter()
	routes.NewTrainingHandler(service, store).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.TrainingPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":         cfg.ServerHost,
			"port":         cfg.TrainingPort,
			"artifact_dir": cfg.ArtifactDir,
		}).Info("Training Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Training Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	service.Wait()
	_ = database.CloseMongo(ctx)
	_ = database.ClosePostgres()

	logger.Log.Info("Training Service stopped")
}
