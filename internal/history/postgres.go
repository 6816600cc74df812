package history

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"verdict/pkg/errors"
	"verdict/pkg/logger"
)

// Record is one evaluation outcome kept for dashboarding across runs.
// The tracking server stays the source of truth; this table is a cheap
// local index over it.
type Record struct {
	RunID       string    `db:"run_id"`
	Experiment  string    `db:"experiment"`
	Accuracy    float64   `db:"accuracy"`
	Precision   float64   `db:"precision"`
	Recall      float64   `db:"recall"`
	AUC         float64   `db:"auc"`
	EvaluatedAt time.Time `db:"evaluated_at"`
}

// Repository persists evaluation records to Postgres
type Repository struct {
	db *sqlx.DB
}

// New connects to Postgres and makes sure the history table exists
func New(dsn string) (*Repository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	r := &Repository{db: db}
	if err := r.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("evaluation history sink connected")
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS evaluation_history (
			run_id       TEXT PRIMARY KEY,
			experiment   TEXT NOT NULL,
			accuracy     DOUBLE PRECISION NOT NULL,
			precision    DOUBLE PRECISION NOT NULL,
			recall       DOUBLE PRECISION NOT NULL,
			auc          DOUBLE PRECISION NOT NULL,
			evaluated_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to ensure evaluation_history schema")
	}
	return nil
}

// Insert stores one evaluation record
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	const query = `
		INSERT INTO evaluation_history (
			run_id, experiment, accuracy, precision, recall, auc, evaluated_at
		) VALUES (
			:run_id, :experiment, :accuracy, :precision, :recall, :auc, :evaluated_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return errors.Wrap(err, "failed to insert evaluation record")
	}
	return nil
}

// Close releases the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
