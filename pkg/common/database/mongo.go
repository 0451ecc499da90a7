package database

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/synaptica-ai/cardiorisk/pkg/common/config"
	"github.com/synaptica-ai/cardiorisk/pkg/common/logger"
)

var (
	mongoClient *mongo.Client
	mongoOnce   sync.Once
)

// GetMongo connects to the telemetry store once per process.
func GetMongo(ctx context.Context) (*mongo.Client, error) {
	var err error
	mongoOnce.Do(func() {
		cfg := config.Load()
		ctx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
		defer cancel()

		opts := options.Client().ApplyURI(cfg.MongoURI).SetServerSelectionTimeout(cfg.MongoTimeout)
		mongoClient, err = mongo.Connect(ctx, opts)
		if err != nil {
			logger.Log.WithError(err).Error("Failed to connect to MongoDB")
			return
		}
		if err = mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			logger.Log.WithError(err).Error("Failed to ping MongoDB")
			return
		}

		logger.Log.Info("Connected to MongoDB")
	})

	return mongoClient, err
}

func CloseMongo(ctx context.Context) error {
	if mongoClient != nil {
		return mongoClient.Disconnect(ctx)
	}
	return nil
}
