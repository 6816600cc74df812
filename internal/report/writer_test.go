package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/eval"
	"verdict/pkg/errors"
)

func TestMetricsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	m := &eval.Metrics{Accuracy: 0.91, Precision: 0.87, Recall: 0.85, AUC: 0.93}

	require.NoError(t, WriteMetrics(m, path))

	got, err := ReadMetrics(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestWriteMetrics_StableKeyOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, WriteMetrics(&eval.Metrics{}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	order := []string{"accuracy", "precision", "recall", "auc"}
	last := -1
	for _, key := range order {
		idx := strings.Index(text, `"`+key+`"`)
		require.GreaterOrEqual(t, idx, 0, "missing key %q", key)
		assert.Greater(t, idx, last, "key %q out of order", key)
		last = idx
	}
}

func TestWriteMetrics_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.json")

	require.NoError(t, WriteMetrics(&eval.Metrics{Accuracy: 0.1}, path))
	require.NoError(t, WriteMetrics(&eval.Metrics{Accuracy: 0.9}, path))

	got, err := ReadMetrics(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Accuracy)
}

func TestWriteMetrics_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	// A file where a parent directory is expected
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := WriteMetrics(&eval.Metrics{}, filepath.Join(blocker, "metrics.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
}

func TestRunInfoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment_info.json")
	info := RunInfo{RunID: "abc123", ModelPath: "model"}

	require.NoError(t, WriteRunInfo(info, path))

	got, err := ReadRunInfo(path)
	require.NoError(t, err)
	assert.Equal(t, info, got)
}
