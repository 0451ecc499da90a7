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
	"github.com/synaptica-ai/cardiorisk/pkg/insight"
	"github.com/synaptica-ai/cardiorisk/pkg/observability/metrics"
	"github.com/synaptica-ai/cardiorisk/pkg/records"
	"github.com/synaptica-ai/cardiorisk/pkg/serving"
	"github.com/synaptica-ai/cardiorisk/pkg/serving/predictor"
	"github.com/synaptica-ai/cardiorisk/pkg/storage"
)

func main() {
	_ = godotenv.Load()
	logger.Init()
	cfg := config.Load()

	catalog, err := insight.LoadCatalog(cfg.InsightCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load insight catalog")
	}

	store := artifact.NewStore(cfg.ArtifactDir)
	pred := predictor.NewPredictor(store)

	deps := serving.Deps{
		Predictor: pred,
		Insights:  insight.NewEngine(catalog),
		Profiles:  storage.NewFeatureStore(database.GetRedis(), cfg.FeatureStorePrefix, cfg.FeatureStoreCacheTTL),
	}

	var predictionLogs *serving.Repository
	if db, err := database.GetPostgres(); err != nil {
		logger.Log.WithError(err).Warn("Prediction logging disabled")
	} else {
		predictionLogs = serving.NewRepository(db)
		if err := predictionLogs.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("Failed to migrate prediction log tables")
		}
		deps.Logs = predictionLogs
	}

	if client, err := database.GetMongo(context.Background()); err != nil {
		logger.Log.WithError(err).Warn("Telemetry store unavailable, user routes disabled")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
		src, err := records.NewMongoSource(ctx, client.Database(cfg.MongoDatabase), cfg.MongoDataCollections, cfg.MongoUserCollections)
		cancel()
		if err != nil {
			logger.Log.WithError(err).Warn("Telemetry collections unavailable, user routes disabled")
		} else {
			deps.Telemetry = src
		}
	}

	producer := kafka.NewProducer(cfg.KafkaPredictionTopic)
	defer producer.Close()
	deps.Publisher = producer

	service := serving.NewService(deps, serving.Options{
		AnalysisDays:  cfg.AnalysisDays,
		AnalysisLimit: cfg.AnalysisLimit,
	})

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer(cfg.KafkaModelTopic, cfg.KafkaGroupID+"-serving")
	go func() {
		if err := consumer.Consume(consumerCtx, kafka.ModelTrainedHandler(pred)); err != nil && consumerCtx.Err() == nil {
			logger.Log.WithError(err).Error("Model event consumer stopped")
		}
	}()

	router := mux.NewRouter()
	router.Use(
		middleware.Recovery,
		middleware.Logging,
		middleware.CORS,
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		middleware.BodyLimit(cfg.MaxRequestBody),
	)
	routes.RegisterHealth(router, "serving-service")
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	api := router.PathPrefix("/api/v1").Subrouter()
	var history routes.PredictionHistory
	if predictionLogs != nil {
		history = predictionLogs
	}
	routes.NewServingHandler(service, history).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServingPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":         cfg.ServerHost,
			"port":         cfg.ServingPort,
			"artifact_dir": cfg.ArtifactDir,
		}).Info("Serving Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Serving Service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	stopConsumer()
	_ = consumer.Close()
	_ = database.CloseMongo(ctx)
	_ = database.CloseRedis()
	_ = database.ClosePostgres()

	logger.Log.Info("Serving Service stopped")
}
