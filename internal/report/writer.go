package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"verdict/internal/eval"
	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

// RunInfo identifies where the tracking service stored this run's artifacts
type RunInfo struct {
	RunID     string `json:"run_id"`
	ModelPath string `json:"model_path"`
}

// WriteMetrics serializes the metrics record as indented JSON with stable key
// order, overwriting any existing file. Failures map to ErrIO.
func WriteMetrics(m *eval.Metrics, path string) error {
	if err := writeJSON(m, path); err != nil {
		logger.Errorf("failed to save metrics to %s: %v", path, err)
		return errors.WrapKind(err, errors.ErrIO, "write metrics "+path)
	}
	logger.Infof("metrics saved to %s", path)
	return nil
}

// ReadMetrics reads a metrics file back into a record
func ReadMetrics(path string) (*eval.Metrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapKind(err, errors.ErrIO, "read metrics "+path)
	}
	var m eval.Metrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapKind(err, errors.ErrParse, "decode metrics "+path)
	}
	return &m, nil
}

// WriteRunInfo persists the run identifier and artifact path for downstream
// pipeline stages
func WriteRunInfo(info RunInfo, path string) error {
	if err := writeJSON(info, path); err != nil {
		logger.Errorf("failed to save run info to %s: %v", path, err)
		return errors.WrapKind(err, errors.ErrIO, "write run info "+path)
	}
	logger.Infof("run info saved to %s", path)
	return nil
}

// ReadRunInfo reads a run metadata file
func ReadRunInfo(path string) (RunInfo, error) {
	var info RunInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, errors.WrapKind(err, errors.ErrIO, "read run info "+path)
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, errors.WrapKind(err, errors.ErrParse, "decode run info "+path)
	}
	return info, nil
}

func writeJSON(v interface{}, path string) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
