package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Configuration defines the structure for storing application configuration
type Configuration struct {
	// Backend connection
	BackendWSURL string
	APIToken     string
	ProjectID    string

	// Audio capture
	SampleRate    int
	ChunkDuration time.Duration
	AudioFile     string
	Speaker       string

	// HTTP server (metrics endpoint)
	HTTPPort          int
	HTTPEnableMetrics bool

	// AMQP forwarding
	AMQPUrl        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Persistence
	SQLitePath string

	// Logging
	LogLevel logrus.Level
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig(logger *logrus.Logger) (*Configuration, error) {
	// A missing .env file is fine; the environment may be set directly.
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using process environment")
	}

	config := &Configuration{}

	config.BackendWSURL = os.Getenv("LIVEINSIGHTS_WS_URL")
	if config.BackendWSURL == "" {
		return nil, fmt.Errorf("LIVEINSIGHTS_WS_URL is not set")
	}

	config.APIToken = os.Getenv("LIVEINSIGHTS_API_TOKEN")
	config.ProjectID = os.Getenv("LIVEINSIGHTS_PROJECT_ID")
	if config.ProjectID == "" {
		return nil, fmt.Errorf("LIVEINSIGHTS_PROJECT_ID is not set")
	}

	config.SampleRate = getEnvInt(logger, "AUDIO_SAMPLE_RATE", 16000)
	chunkMs := getEnvInt(logger, "AUDIO_CHUNK_MS", 250)
	config.ChunkDuration = time.Duration(chunkMs) * time.Millisecond
	config.AudioFile = os.Getenv("AUDIO_FILE")
	config.Speaker = os.Getenv("AUDIO_SPEAKER")

	config.HTTPPort = getEnvInt(logger, "HTTP_PORT", 8080)
	config.HTTPEnableMetrics = os.Getenv("HTTP_ENABLE_METRICS") != "false"

	config.AMQPUrl = os.Getenv("AMQP_URL")
	config.AMQPExchange = os.Getenv("AMQP_EXCHANGE")
	if config.AMQPUrl != "" && config.AMQPExchange == "" {
		config.AMQPExchange = "liveinsights.events"
		logger.Info("No AMQP_EXCHANGE specified, defaulting to liveinsights.events")
	}
	config.AMQPRoutingKey = os.Getenv("AMQP_ROUTING_KEY")
	if config.AMQPRoutingKey == "" {
		config.AMQPRoutingKey = "liveinsights"
	}

	config.SQLitePath = os.Getenv("SQLITE_PATH")

	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		config.LogLevel = logrus.InfoLevel
	} else {
		level, err := logrus.ParseLevel(logLevelStr)
		if err != nil {
			logger.WithField("log_level", logLevelStr).Warn("Invalid LOG_LEVEL, defaulting to info")
			config.LogLevel = logrus.InfoLevel
		} else {
			config.LogLevel = level
		}
	}

	return config, nil
}

// getEnvInt reads an integer environment variable, falling back to a default
// on absence or parse failure.
func getEnvInt(logger *logrus.Logger, key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.WithFields(logrus.Fields{"key": key, "value": raw}).Warnf("Invalid %s, defaulting to %d", key, def)
		return def
	}
	return v
}
