package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerHost     string
	TrainingPort   string
	ServingPort    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresMaxOpen  int
	PostgresMaxIdle  int
	PostgresConnTTL  time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	// Kafka
	KafkaBrokers         []string
	KafkaGroupID         string
	KafkaModelTopic      string
	KafkaPredictionTopic string
	KafkaPublishTimeout  time.Duration

	// MongoDB telemetry
	MongoURI             string
	MongoDatabase        string
	MongoDataCollections []string
	MongoUserCollections []string
	MongoTimeout         time.Duration

	// Artifacts and datasets
	ArtifactDir        string
	StaticDataPath     string
	InsightCatalogPath string

	// Training
	ConditionLimit     int
	MinTrainingRows    int
	TrainingMaxWorkers int
	TrainingJobTimeout time.Duration
	CandidateWorkers   int
	StaticCandidates   []string
	HistoryCandidates  []string
	HistoryWindowDays  int
	HistoryLabelSource string

	// Feature Store
	FeatureStoreCacheTTL time.Duration
	FeatureStorePrefix   string

	// Analysis
	AnalysisDays  int
	AnalysisLimit int
}

func Load() *Config {
	return &Config{
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		TrainingPort:   getEnv("TRAINING_PORT", "8088"),
		ServingPort:    getEnv("SERVING_PORT", "8089"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 0),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 0),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "cardiorisk"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "cardiorisk"),
		PostgresDB:       getEnv("POSTGRES_DB", "cardiorisk"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresMaxOpen:  getIntEnv("POSTGRES_MAX_OPEN_CONNS", 20),
		PostgresMaxIdle:  getIntEnv("POSTGRES_MAX_IDLE_CONNS", 5),
		PostgresConnTTL:  getDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisTimeout:  getDuration("REDIS_TIMEOUT", 5*time.Second),

		KafkaBrokers:         getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:         getEnv("KAFKA_GROUP_ID", "cardiorisk"),
		KafkaModelTopic:      getEnv("KAFKA_MODEL_TOPIC", "cardiorisk.models"),
		KafkaPredictionTopic: getEnv("KAFKA_PREDICTION_TOPIC", "cardiorisk.predictions"),
		KafkaPublishTimeout:  getDuration("KAFKA_PUBLISH_TIMEOUT", 5*time.Second),

		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnv("MONGO_DB", "heart"),
		MongoDataCollections: getStringSliceEnv("MONGO_DATA_COLLECTIONS", []string{"datas", "data", "Data"}),
		MongoUserCollections: getStringSliceEnv("MONGO_USER_COLLECTIONS", []string{"users", "user", "User"}),
		MongoTimeout:         getDuration("MONGO_TIMEOUT", 10*time.Second),

		ArtifactDir:        getEnv("ARTIFACT_DIR", "./artifacts"),
		StaticDataPath:     getEnv("STATIC_DATA_PATH", "./data/heart.csv"),
		InsightCatalogPath: getEnv("INSIGHT_CATALOG_PATH", ""),

		ConditionLimit:     getIntEnv("CONDITION_LIMIT", 20),
		MinTrainingRows:    getIntEnv("MIN_TRAINING_ROWS", 50),
		TrainingMaxWorkers: getIntEnv("TRAINING_MAX_WORKERS", 1),
		TrainingJobTimeout: getDuration("TRAINING_JOB_TIMEOUT", 30*time.Minute),
		CandidateWorkers:   getIntEnv("CANDIDATE_WORKERS", 3),
		StaticCandidates:   getStringSliceEnv("STATIC_CANDIDATES", []string{"random_forest", "svm", "neural_network"}),
		HistoryCandidates:  getStringSliceEnv("HISTORY_CANDIDATES", []string{"random_forest"}),
		HistoryWindowDays:  getIntEnv("HISTORY_WINDOW_DAYS", 30),
		HistoryLabelSource: getEnv("HISTORY_LABEL_SOURCE", "auto"),

		FeatureStoreCacheTTL: getDuration("FEATURE_STORE_CACHE_TTL", 5*time.Minute),
		FeatureStorePrefix:   getEnv("FEATURE_STORE_PREFIX", "profile"),

		AnalysisDays:  getIntEnv("ANALYSIS_DAYS", 7),
		AnalysisLimit: getIntEnv("ANALYSIS_LIMIT", 200),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
