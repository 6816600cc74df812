package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"verdict/internal/adapters/config"
	"verdict/internal/dataset"
	"verdict/internal/eval"
	"verdict/internal/history"
	"verdict/internal/ml"
	"verdict/internal/report"
	"verdict/internal/tracking"
	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

// modelArtifactPath is where the model is stored under the tracking run,
// recorded in the run metadata for downstream stages
const modelArtifactPath = "model"

// HistorySink receives evaluation records after a successful run.
// Failures here are logged but never fail the pipeline.
type HistorySink interface {
	Insert(ctx context.Context, rec history.Record) error
}

// Deps are the injectable collaborators of the pipeline
type Deps struct {
	Recorder tracking.Recorder
	History  HistorySink // optional
	// LoadModel deserializes the classifier, defaults to ml.Load
	LoadModel func(path string) (ml.Classifier, error)
}

// Pipeline sequences one full evaluation: load model, load data, evaluate,
// persist reports and record everything to the tracking service, all within
// a single tracking-run scope.
type Pipeline struct {
	paths      config.PathsConfig
	experiment string
	deps       Deps
}

// New creates a pipeline for the given paths and collaborators
func New(paths config.PathsConfig, experiment string, deps Deps) *Pipeline {
	if deps.LoadModel == nil {
		deps.LoadModel = func(path string) (ml.Classifier, error) {
			return ml.Load(path)
		}
	}
	return &Pipeline{paths: paths, experiment: experiment, deps: deps}
}

// Run executes the evaluation once. The tracking run is opened first and
// closed on every exit path: FINISHED on success, FAILED otherwise. Any
// stage failure short-circuits the rest, is logged with pipeline context
// and is returned to the caller. Partial artifacts written before a failure
// are left in place.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	run, err := p.deps.Recorder.StartRun(ctx)
	if err != nil {
		return p.fail("start tracking run", err)
	}
	defer func() {
		status := tracking.RunStatusFinished
		if err != nil {
			status = tracking.RunStatusFailed
		}
		if endErr := run.End(ctx, status); endErr != nil {
			logger.Warnf("failed to close tracking run %s: %v", run.ID(), endErr)
			if err == nil {
				err = endErr
			}
		}
	}()

	clf, err := p.deps.LoadModel(p.paths.Model)
	if err != nil {
		return p.fail("load model", err)
	}
	defer clf.Close()

	table, err := dataset.Load(p.paths.Dataset)
	if err != nil {
		return p.fail("load dataset", err)
	}
	features, labels := table.Split()

	metrics, err := eval.Evaluate(clf, features, labels)
	if err != nil {
		return p.fail("evaluate", err)
	}

	if err := report.WriteMetrics(metrics, p.paths.Metrics); err != nil {
		return p.fail("write metrics", err)
	}

	if err := run.LogMetrics(ctx, metrics.AsMap()); err != nil {
		return p.fail("log metrics", err)
	}
	if err := run.LogParams(ctx, clf.Params()); err != nil {
		return p.fail("log params", err)
	}
	if err := run.LogArtifact(ctx, p.paths.Model, modelArtifactPath+"/"+filepath.Base(p.paths.Model)); err != nil {
		return p.fail("log model artifact", err)
	}
	if err := run.LogArtifact(ctx, p.paths.Metrics, filepath.Base(p.paths.Metrics)); err != nil {
		return p.fail("log metrics artifact", err)
	}

	info := report.RunInfo{RunID: run.ID(), ModelPath: modelArtifactPath}
	if err := report.WriteRunInfo(info, p.paths.RunInfo); err != nil {
		return p.fail("write run info", err)
	}

	p.recordHistory(ctx, run.ID(), metrics)

	logger.Info("model evaluation completed and logged to tracking service")
	return nil
}

// fail logs the failure once more with pipeline-level context and wraps it
// with the stage it occurred in. The underlying error kind stays visible
// through errors.Is.
func (p *Pipeline) fail(stage string, err error) error {
	stageErr := errors.NewStageError(stage, err)
	logger.Errorf("failed to complete model evaluation: %v", stageErr)
	return stageErr
}

// recordHistory is best effort: the tracking server already holds the run
func (p *Pipeline) recordHistory(ctx context.Context, runID string, metrics *eval.Metrics) {
	if p.deps.History == nil {
		return
	}
	rec := history.Record{
		RunID:       runID,
		Experiment:  p.experiment,
		Accuracy:    metrics.Accuracy,
		Precision:   metrics.Precision,
		Recall:      metrics.Recall,
		AUC:         metrics.AUC,
		EvaluatedAt: time.Now().UTC(),
	}
	if err := p.deps.History.Insert(ctx, rec); err != nil {
		logger.Warnf("failed to record evaluation history: %v", err)
	}
}
