package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"verdict/pkg/errors"
)

type Config struct {
	App           AppConfig
	Paths         PathsConfig
	Tracking      TrackingConfig
	History       HistoryConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"verdict"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// PathsConfig fixes the input artifacts and output reports of one evaluation run
type PathsConfig struct {
	Model   string `envconfig:"MODEL_PATH" default:"models/model.onnx"`
	Dataset string `envconfig:"DATA_PATH" default:"data/processed/test.csv"`
	Metrics string `envconfig:"METRICS_PATH" default:"reports/metrics.json"`
	RunInfo string `envconfig:"RUN_INFO_PATH" default:"reports/experiment_info.json"`
}

type TrackingConfig struct {
	URI        string        `envconfig:"MLFLOW_TRACKING_URI" required:"true"`
	Experiment string        `envconfig:"MLFLOW_EXPERIMENT" default:"my-dvc-pipeline"`
	Token      string        `envconfig:"MLFLOW_TRACKING_TOKEN"`
	Timeout    time.Duration `envconfig:"MLFLOW_TIMEOUT" default:"30s"`
}

// Validate checks the tracking credential before any pipeline work starts
func (c TrackingConfig) Validate() error {
	if c.Token == "" {
		return errors.Wrap(errors.ErrMissingCredential, "MLFLOW_TRACKING_TOKEN is not set")
	}
	return nil
}

// HistoryConfig enables the optional Postgres metrics-history sink when DSN is set
type HistoryConfig struct {
	DSN string `envconfig:"POSTGRES_DSN"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	// envconfig accepts a present-but-empty value for required keys
	if cfg.Tracking.URI == "" {
		return nil, errors.New("MLFLOW_TRACKING_URI is not set")
	}

	return &cfg, nil
}
