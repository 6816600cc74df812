package tracking

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"verdict/internal/adapters/config"
	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

const apiPrefix = "/api/2.0/mlflow"

// Client records runs against an MLflow-compatible tracking server over its
// REST API. It is explicitly constructed from config, holds no global state
// and authenticates every request with the configured bearer token.
type Client struct {
	http       *resty.Client
	experiment string
}

// NewClient builds a tracking client for the configured server
func NewClient(cfg config.TrackingConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URI, "/")).
		SetAuthToken(cfg.Token).
		SetTimeout(cfg.Timeout)

	return &Client{
		http:       httpClient,
		experiment: cfg.Experiment,
	}
}

type tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type metricEntry struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
	Step      int64   `json:"step"`
}

type experimentGetResponse struct {
	Experiment struct {
		ExperimentID string `json:"experiment_id"`
	} `json:"experiment"`
}

type experimentCreateResponse struct {
	ExperimentID string `json:"experiment_id"`
}

type runCreateResponse struct {
	Run struct {
		Info struct {
			RunID       string `json:"run_id"`
			ArtifactURI string `json:"artifact_uri"`
		} `json:"info"`
	} `json:"run"`
}

// StartRun opens a run under the configured experiment, creating the
// experiment on first use. The run is tagged with a client-side evaluation id.
func (c *Client) StartRun(ctx context.Context) (Run, error) {
	experimentID, err := c.ensureExperiment(ctx)
	if err != nil {
		return nil, err
	}

	evaluationID := uuid.NewString()
	body := map[string]interface{}{
		"experiment_id": experimentID,
		"start_time":    time.Now().UnixMilli(),
		"tags": []tag{
			{Key: "verdict.evaluation_id", Value: evaluationID},
		},
	}

	var created runCreateResponse
	if err := c.post(ctx, apiPrefix+"/runs/create", body, &created); err != nil {
		logger.Errorf("failed to create tracking run: %v", err)
		return nil, err
	}

	info := created.Run.Info
	logger.Infof("tracking run started: run_id=%s evaluation_id=%s", info.RunID, evaluationID)

	return &mlflowRun{
		client:      c,
		id:          info.RunID,
		artifactURI: info.ArtifactURI,
	}, nil
}

// ensureExperiment resolves the experiment id by name, creating it if the
// server does not know it yet
func (c *Client) ensureExperiment(ctx context.Context) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("experiment_name", c.experiment).
		SetResult(&experimentGetResponse{}).
		Get(apiPrefix + "/experiments/get-by-name")
	if err != nil {
		return "", errors.WrapKind(err, errors.ErrTrackingService, "get experiment "+c.experiment)
	}

	if resp.IsSuccess() {
		return resp.Result().(*experimentGetResponse).Experiment.ExperimentID, nil
	}
	if resp.StatusCode() != http.StatusNotFound {
		return "", errors.Wrapf(errors.ErrTrackingService,
			"get experiment %s: status %d: %s", c.experiment, resp.StatusCode(), resp.String())
	}

	var created experimentCreateResponse
	if err := c.post(ctx, apiPrefix+"/experiments/create", map[string]string{"name": c.experiment}, &created); err != nil {
		return "", err
	}

	logger.Infof("experiment %q created (id=%s)", c.experiment, created.ExperimentID)
	return created.ExperimentID, nil
}

// post sends a JSON request and decodes the response, classifying transport
// and non-2xx failures as tracking-service errors
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	req := c.http.R().SetContext(ctx).SetBody(body)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post(path)
	if err != nil {
		return errors.WrapKind(err, errors.ErrTrackingService, "POST "+path)
	}
	if !resp.IsSuccess() {
		return errors.Wrapf(errors.ErrTrackingService,
			"POST %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

// mlflowRun is one open run on the tracking server
type mlflowRun struct {
	client      *Client
	id          string
	artifactURI string
}

func (r *mlflowRun) ID() string {
	return r.id
}

// LogMetrics logs all metrics in one batch call
func (r *mlflowRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	now := time.Now().UnixMilli()
	entries := make([]metricEntry, 0, len(metrics))
	for key, value := range metrics {
		entries = append(entries, metricEntry{Key: key, Value: value, Timestamp: now})
	}

	body := map[string]interface{}{
		"run_id":  r.id,
		"metrics": entries,
	}
	if err := r.client.post(ctx, apiPrefix+"/runs/log-batch", body, nil); err != nil {
		logger.Errorf("failed to log metrics for run %s: %v", r.id, err)
		return err
	}
	logger.Infof("logged %d metrics to run %s", len(metrics), r.id)
	return nil
}

// LogParams logs all hyperparameters in one batch call
func (r *mlflowRun) LogParams(ctx context.Context, params map[string]string) error {
	if len(params) == 0 {
		return nil
	}

	entries := make([]tag, 0, len(params))
	for key, value := range params {
		entries = append(entries, tag{Key: key, Value: value})
	}

	body := map[string]interface{}{
		"run_id": r.id,
		"params": entries,
	}
	if err := r.client.post(ctx, apiPrefix+"/runs/log-batch", body, nil); err != nil {
		logger.Errorf("failed to log params for run %s: %v", r.id, err)
		return err
	}
	logger.Infof("logged %d params to run %s", len(params), r.id)
	return nil
}

// LogArtifact uploads a local file through the server's proxied artifact
// endpoint at the given run-relative path
func (r *mlflowRun) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		logger.Errorf("failed to read artifact %s: %v", localPath, err)
		return errors.WrapKind(err, errors.ErrIO, "read artifact "+localPath)
	}

	endpoint, err := r.artifactEndpoint(artifactPath)
	if err != nil {
		return err
	}

	resp, err := r.client.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Put(endpoint)
	if err != nil {
		logger.Errorf("failed to upload artifact %s to run %s: %v", artifactPath, r.id, err)
		return errors.WrapKind(err, errors.ErrTrackingService, "upload artifact "+artifactPath)
	}
	if !resp.IsSuccess() {
		logger.Errorf("artifact upload %s rejected: status %d", artifactPath, resp.StatusCode())
		return errors.Wrapf(errors.ErrTrackingService,
			"upload artifact %s: status %d: %s", artifactPath, resp.StatusCode(), resp.String())
	}

	logger.Infof("artifact %s uploaded to run %s", artifactPath, r.id)
	return nil
}

// artifactEndpoint maps the run's artifact URI onto the mlflow-artifacts
// REST route
func (r *mlflowRun) artifactEndpoint(artifactPath string) (string, error) {
	const scheme = "mlflow-artifacts:"
	if !strings.HasPrefix(r.artifactURI, scheme) {
		return "", errors.Wrapf(errors.ErrTrackingService,
			"artifact store %q is not served over the tracking API", r.artifactURI)
	}
	root := strings.TrimPrefix(r.artifactURI, scheme)
	return "/api/2.0/mlflow-artifacts/artifacts" + root + "/" + artifactPath, nil
}

// End closes the run with a terminal status
func (r *mlflowRun) End(ctx context.Context, status RunStatus) error {
	body := map[string]interface{}{
		"run_id":   r.id,
		"status":   string(status),
		"end_time": time.Now().UnixMilli(),
	}
	if err := r.client.post(ctx, apiPrefix+"/runs/update", body, nil); err != nil {
		logger.Errorf("failed to end run %s: %v", r.id, err)
		return err
	}
	logger.Infof("tracking run %s ended with status %s", r.id, status)
	return nil
}
