package tracking

import (
	"context"
)

// RunStatus is the terminal state reported for a tracking run
type RunStatus string

const (
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusFailed   RunStatus = "FAILED"
)

// Recorder opens tracking runs against an experiment-tracking service.
// The pipeline depends on this interface so tests can substitute a fake.
type Recorder interface {
	// StartRun opens a new run under the configured experiment,
	// creating the experiment if absent
	StartRun(ctx context.Context) (Run, error)
}

// Run is one open tracking session. All logging calls target its identifier;
// End must be called on every exit path.
type Run interface {
	// ID returns the service-assigned run identifier
	ID() string

	// LogMetrics logs each metric as a scalar under the run
	LogMetrics(ctx context.Context, metrics map[string]float64) error

	// LogParams logs each hyperparameter under the run
	LogParams(ctx context.Context, params map[string]string) error

	// LogArtifact uploads a local file under the run at artifactPath
	LogArtifact(ctx context.Context, localPath, artifactPath string) error

	// End closes the run with the given terminal status
	End(ctx context.Context, status RunStatus) error
}
