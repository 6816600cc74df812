package eval

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"verdict/internal/ml"
	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

// Metrics is the record of one evaluation run. Field order fixes the key
// order of the serialized report.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	AUC       float64 `json:"auc"`
}

// AsMap returns the record keyed by metric name
func (m *Metrics) AsMap() map[string]float64 {
	return map[string]float64{
		"accuracy":  m.Accuracy,
		"precision": m.Precision,
		"recall":    m.Recall,
		"auc":       m.AUC,
	}
}

// Evaluate runs inference against the feature matrix and scores the
// predictions against the label vector. All-or-nothing: any precondition
// violation or inference failure yields ErrEvaluation and no partial record.
//
// Preconditions: at least one row, labels are binary and both classes are
// present (otherwise the ROC curve is undefined).
func Evaluate(clf ml.Classifier, features [][]float64, labels []int) (*Metrics, error) {
	n := len(labels)
	if n == 0 {
		logger.Error("evaluation failed: empty test set")
		return nil, errors.Wrap(errors.ErrEvaluation, "empty feature matrix and label vector")
	}
	if len(features) != n {
		logger.Errorf("evaluation failed: %d feature rows vs %d labels", len(features), n)
		return nil, errors.Wrap(errors.ErrEvaluation, "feature matrix and label vector length mismatch")
	}

	positives := 0
	for i, label := range labels {
		if label != 0 && label != 1 {
			logger.Errorf("evaluation failed: label %d at row %d is not binary", label, i)
			return nil, errors.Wrap(errors.ErrEvaluation, "label vector is not binary")
		}
		if label == 1 {
			positives++
		}
	}
	if positives == 0 || positives == n {
		logger.Errorf("evaluation failed: single-class label vector (%d/%d positive)", positives, n)
		return nil, errors.Wrap(errors.ErrEvaluation, "label vector contains a single class, AUC is undefined")
	}

	preds, err := clf.Predict(features)
	if err != nil {
		logger.Errorf("prediction failed: %v", err)
		return nil, errors.WrapKind(err, errors.ErrEvaluation, "predict")
	}
	if len(preds) != n {
		return nil, errors.Wrapf(errors.ErrEvaluation, "model returned %d predictions for %d rows", len(preds), n)
	}

	proba, err := clf.PredictProba(features)
	if err != nil {
		logger.Errorf("probability prediction failed: %v", err)
		return nil, errors.WrapKind(err, errors.ErrEvaluation, "predict proba")
	}
	if len(proba) != n {
		return nil, errors.Wrapf(errors.ErrEvaluation, "model returned %d probabilities for %d rows", len(proba), n)
	}

	m := &Metrics{
		Accuracy:  accuracy(labels, preds),
		Precision: precision(labels, preds),
		Recall:    recall(labels, preds),
		AUC:       rocAUC(labels, proba),
	}

	logger.Infof("evaluation metrics calculated: accuracy=%.4f precision=%.4f recall=%.4f auc=%.4f",
		m.Accuracy, m.Precision, m.Recall, m.AUC)
	return m, nil
}

// accuracy is the fraction of exact label matches
func accuracy(labels, preds []int) float64 {
	correct := 0
	for i := range labels {
		if preds[i] == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}

// precision is TP / (TP + FP), 0 when nothing is predicted positive
func precision(labels, preds []int) float64 {
	tp, fp := 0, 0
	for i := range labels {
		if preds[i] == 1 {
			if labels[i] == 1 {
				tp++
			} else {
				fp++
			}
		}
	}
	if tp+fp == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fp)
}

// recall is TP / (TP + FN), 0 when there are no actual positives
func recall(labels, preds []int) float64 {
	tp, fn := 0, 0
	for i := range labels {
		if labels[i] == 1 {
			if preds[i] == 1 {
				tp++
			} else {
				fn++
			}
		}
	}
	if tp+fn == 0 {
		return 0
	}
	return float64(tp) / float64(tp+fn)
}

// rocAUC computes the area under the ROC curve from positive-class
// probabilities. Inputs are copied; stat.ROC wants scores sorted ascending.
func rocAUC(labels []int, proba []float64) float64 {
	n := len(labels)
	y := make([]float64, n)
	classes := make([]bool, n)
	copy(y, proba)
	for i, label := range labels {
		classes[i] = label == 1
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
