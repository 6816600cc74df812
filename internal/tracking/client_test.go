package tracking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/adapters/config"
	"verdict/pkg/errors"
)

// fakeServer records the MLflow REST calls the client makes
type fakeServer struct {
	mu          sync.Mutex
	experiments map[string]string
	batches     []map[string]interface{}
	artifacts   map[string][]byte
	updates     []map[string]interface{}
	authHeaders []string
	failAll     bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		experiments: make(map[string]string),
		artifacts:   make(map[string][]byte),
	}
}

func (s *fakeServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		if s.failAll {
			http.Error(w, `{"error_code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/2.0/mlflow/experiments/get-by-name":
			name := r.URL.Query().Get("experiment_name")
			id, ok := s.experiments[name]
			if !ok {
				http.Error(w, `{"error_code":"RESOURCE_DOES_NOT_EXIST"}`, http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"experiment": map[string]string{"experiment_id": id},
			})

		case r.Method == http.MethodPost && r.URL.Path == "/api/2.0/mlflow/experiments/create":
			var body struct {
				Name string `json:"name"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			s.experiments[body.Name] = "1"
			json.NewEncoder(w).Encode(map[string]string{"experiment_id": "1"})

		case r.Method == http.MethodPost && r.URL.Path == "/api/2.0/mlflow/runs/create":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"run": map[string]interface{}{
					"info": map[string]string{
						"run_id":       "run-42",
						"artifact_uri": "mlflow-artifacts:/1/run-42/artifacts",
					},
				},
			})

		case r.Method == http.MethodPost && r.URL.Path == "/api/2.0/mlflow/runs/log-batch":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			s.batches = append(s.batches, body)
			w.Write([]byte("{}"))

		case r.Method == http.MethodPost && r.URL.Path == "/api/2.0/mlflow/runs/update":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			s.updates = append(s.updates, body)
			json.NewEncoder(w).Encode(map[string]interface{}{"run_info": map[string]string{"run_id": "run-42"}})

		case r.Method == http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			s.artifacts[r.URL.Path] = data
			w.WriteHeader(http.StatusOK)

		default:
			http.Error(w, "unexpected call: "+r.Method+" "+r.URL.Path, http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, s *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)

	return NewClient(config.TrackingConfig{
		URI:        srv.URL,
		Experiment: "my-dvc-pipeline",
		Token:      "test-token",
		Timeout:    5 * time.Second,
	})
}

func TestStartRun_CreatesExperimentOnFirstUse(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-42", run.ID())

	assert.Equal(t, map[string]string{"my-dvc-pipeline": "1"}, server.experiments)
}

func TestStartRun_ReusesExistingExperiment(t *testing.T) {
	server := newFakeServer()
	server.experiments["my-dvc-pipeline"] = "7"
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID())
}

func TestStartRun_SendsBearerToken(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	_, err := client.StartRun(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, server.authHeaders)
	for _, h := range server.authHeaders {
		assert.Equal(t, "Bearer test-token", h)
	}
}

func TestRun_LogMetricsAndParams(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)

	require.NoError(t, run.LogMetrics(context.Background(), map[string]float64{
		"accuracy": 0.91,
		"auc":      0.93,
	}))
	require.NoError(t, run.LogParams(context.Background(), map[string]string{
		"n_estimators": "100",
	}))

	require.Len(t, server.batches, 2)
	assert.Equal(t, "run-42", server.batches[0]["run_id"])
	assert.Len(t, server.batches[0]["metrics"], 2)
	assert.Len(t, server.batches[1]["params"], 1)
}

func TestRun_LogParamsEmpty(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)

	// Models without introspectable params produce no batch call
	require.NoError(t, run.LogParams(context.Background(), nil))
	assert.Empty(t, server.batches)
}

func TestRun_LogArtifact(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "metrics.json")
	require.NoError(t, os.WriteFile(local, []byte(`{"accuracy": 0.91}`), 0o644))

	require.NoError(t, run.LogArtifact(context.Background(), local, "metrics.json"))

	uploaded, ok := server.artifacts["/api/2.0/mlflow-artifacts/artifacts/1/run-42/artifacts/metrics.json"]
	require.True(t, ok, "artifact not uploaded to expected path, got: %v", server.artifacts)
	assert.Equal(t, `{"accuracy": 0.91}`, string(uploaded))
}

func TestRun_End(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)

	require.NoError(t, run.End(context.Background(), RunStatusFailed))

	require.Len(t, server.updates, 1)
	assert.Equal(t, "run-42", server.updates[0]["run_id"])
	assert.Equal(t, "FAILED", server.updates[0]["status"])
}

func TestStartRun_ServerFailure(t *testing.T) {
	server := newFakeServer()
	server.failAll = true
	client := newTestClient(t, server)

	_, err := client.StartRun(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTrackingService))
}

func TestRun_LogArtifact_MissingLocalFile(t *testing.T) {
	server := newFakeServer()
	client := newTestClient(t, server)

	run, err := client.StartRun(context.Background())
	require.NoError(t, err)

	err = run.LogArtifact(context.Background(), filepath.Join(t.TempDir(), "nope.bin"), "model/model.onnx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIO))
}
