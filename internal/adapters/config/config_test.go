package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/pkg/errors"
)

func TestTrackingConfig_Validate(t *testing.T) {
	cfg := TrackingConfig{URI: "https://tracking.example.com"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingCredential))

	cfg.Token = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MLFLOW_TRACKING_URI", "https://tracking.example.com")
	t.Setenv("MLFLOW_TRACKING_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "verdict", cfg.App.Name)
	assert.Equal(t, "models/model.onnx", cfg.Paths.Model)
	assert.Equal(t, "data/processed/test.csv", cfg.Paths.Dataset)
	assert.Equal(t, "reports/metrics.json", cfg.Paths.Metrics)
	assert.Equal(t, "reports/experiment_info.json", cfg.Paths.RunInfo)
	assert.Equal(t, "my-dvc-pipeline", cfg.Tracking.Experiment)
	assert.Equal(t, 30*time.Second, cfg.Tracking.Timeout)
}

func TestLoad_MissingTrackingURI(t *testing.T) {
	// A present-but-empty variable must be rejected the same as an unset one
	t.Setenv("MLFLOW_TRACKING_URI", "")

	_, err := Load()
	require.Error(t, err)
}
