package ml

import (
	"os"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

// Classifier is the capability surface the evaluation pipeline needs from a
// trained model: discrete class predictions, positive-class probabilities and
// an introspectable hyperparameter set.
type Classifier interface {
	// Predict returns a class prediction (0 or 1) per feature row
	Predict(features [][]float64) ([]int, error)

	// PredictProba returns the positive-class probability per feature row
	PredictProba(features [][]float64) ([]float64, error)

	// Params returns the model's hyperparameters, empty when none are recorded
	Params() map[string]string

	// Close releases model resources
	Close()
}

// ONNXModel wraps an ONNX Runtime session for binary classifier inference
type ONNXModel struct {
	session *onnxruntime.DynamicAdvancedSession
	params  map[string]string
}

// Load deserializes a trained classifier from an ONNX artifact.
// A missing file maps to ErrNotFound, any runtime failure to ErrDeserialization.
func Load(modelPath string) (*ONNXModel, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		logger.Errorf("model file not found: %s", modelPath)
		return nil, errors.WrapKind(err, errors.ErrNotFound, "load model "+modelPath)
	}

	// Initialize ONNX runtime environment (only once)
	if !onnxruntime.IsInitialized() {
		if err := onnxruntime.InitializeEnvironment(); err != nil {
			return nil, errors.WrapKind(err, errors.ErrDeserialization, "failed to initialize ONNX runtime")
		}
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.WrapKind(err, errors.ErrDeserialization, "failed to create session options")
	}
	defer options.Destroy()

	// Dynamic session allows tensor creation at inference time.
	// Input: "input" (feature matrix)
	// Outputs: "label" (predicted class), "probabilities" (per-class probabilities)
	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{"input"}, []string{"label", "probabilities"}, options)
	if err != nil {
		logger.Errorf("failed to deserialize model %s: %v", modelPath, err)
		return nil, errors.WrapKind(err, errors.ErrDeserialization, "load model "+modelPath)
	}

	m := &ONNXModel{session: session}
	m.params = readCustomMetadata(session)

	logger.Infof("model loaded from %s (%d hyperparameters)", modelPath, len(m.params))
	return m, nil
}

// Predict runs inference and returns the predicted class per row
func (m *ONNXModel) Predict(features [][]float64) ([]int, error) {
	labels, _, err := m.run(features)
	if err != nil {
		return nil, err
	}

	preds := make([]int, len(labels))
	for i, l := range labels {
		preds[i] = int(l)
	}
	return preds, nil
}

// PredictProba runs inference and returns the positive-class probability per row
func (m *ONNXModel) PredictProba(features [][]float64) ([]float64, error) {
	_, probs, err := m.run(features)
	if err != nil {
		return nil, err
	}

	// probabilities has shape [n, 2]; column 1 is the positive class
	n := len(features)
	proba := make([]float64, n)
	for i := 0; i < n; i++ {
		proba[i] = probs[i*2+1]
	}
	return proba, nil
}

// Params returns the hyperparameters stored in the model's custom metadata map
func (m *ONNXModel) Params() map[string]string {
	return m.params
}

// run executes one inference pass over the whole feature matrix
func (m *ONNXModel) run(features [][]float64) ([]int64, []float64, error) {
	if m.session == nil {
		return nil, nil, errors.New("model session is nil")
	}
	if len(features) == 0 {
		return nil, nil, errors.New("empty feature matrix")
	}

	n := len(features)
	dims := len(features[0])

	// Flatten to row-major [n, dims]
	flat := make([]float64, 0, n*dims)
	for _, row := range features {
		if len(row) != dims {
			return nil, nil, errors.Newf("ragged feature matrix: row has %d columns, want %d", len(row), dims)
		}
		flat = append(flat, row...)
	}

	inputShape := onnxruntime.NewShape(int64(n), int64(dims))
	inputTensor, err := onnxruntime.NewTensor(inputShape, flat)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	// Output 1: predicted class per row (int64, shape [n])
	labelOutput := make([]int64, n)
	labelTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(int64(n)), labelOutput)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create label output tensor")
	}
	defer labelTensor.Destroy()

	// Output 2: class probabilities (float64, shape [n, 2])
	probOutput := make([]float64, n*2)
	probTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(int64(n), 2), probOutput)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create probabilities output tensor")
	}
	defer probTensor.Destroy()

	err = m.session.Run(
		[]onnxruntime.Value{inputTensor},
		[]onnxruntime.Value{labelTensor, probTensor},
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "inference failed")
	}

	return labelOutput, probOutput, nil
}

// Close releases the ONNX session, safe to call more than once
func (m *ONNXModel) Close() {
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}

// readCustomMetadata copies the ONNX custom metadata map, the conventional
// place training exporters record hyperparameters
func readCustomMetadata(session *onnxruntime.DynamicAdvancedSession) map[string]string {
	params := make(map[string]string)

	metadata, err := session.GetModelMetadata()
	if err != nil {
		logger.Debugf("model metadata unavailable: %v", err)
		return params
	}
	defer metadata.Destroy()

	keys, err := metadata.GetCustomMetadataMapKeys()
	if err != nil {
		logger.Debugf("custom metadata keys unavailable: %v", err)
		return params
	}

	for _, key := range keys {
		value, present, err := metadata.LookupCustomMetadataMap(key)
		if err != nil || !present {
			continue
		}
		params[key] = value
	}
	return params
}
