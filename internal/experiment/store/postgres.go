package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
	"splitlab/pkg/platform/sentinel"
	txcontext "splitlab/pkg/platform/tx"
)

// PostgresExperimentStore implements ExperimentStore on database/sql.
// Variants, metrics, configuration, and the frozen result are stored as
// JSONB columns; the typed structs are the schema and (de)serialization
// happens only at this boundary.
type PostgresExperimentStore struct {
	db *sql.DB
}

func NewPostgresExperimentStore(db *sql.DB) *PostgresExperimentStore {
	return &PostgresExperimentStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

func (s *PostgresExperimentStore) Create(ctx context.Context, exp *models.Experiment) error {
	variants, metrics, config, result, err := marshalExperimentBlobs(exp)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO experiments (id, name, status, variants, metrics, config, result, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(exp.ID), exp.Name, string(exp.Status),
		variants, metrics, config, result,
		exp.StartDate, exp.EndDate, exp.CreatedAt, exp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresExperimentStore) FindByID(ctx context.Context, experimentID id.ExperimentID) (*models.Experiment, error) {
	row := execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, name, status, variants, metrics, config, result, start_date, end_date, created_at, updated_at
		FROM experiments
		WHERE id = $1
	`, uuid.UUID(experimentID))
	return scanExperiment(row)
}

func (s *PostgresExperimentStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, variants, metrics, config, result, start_date, end_date, created_at, updated_at
		FROM experiments
		WHERE status = $1
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	var out []*models.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT FOR UPDATE so the validate check and
// the mutate write form a compare-and-set against concurrent callers.
func (s *PostgresExperimentStore) Execute(ctx context.Context, experimentID id.ExperimentID, validate func(*models.Experiment) error, mutate func(*models.Experiment)) (*models.Experiment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin experiment update: %w", err)
	}
	defer tx.Rollback()

	txCtx := txcontext.WithTx(ctx, tx)

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, status, variants, metrics, config, result, start_date, end_date, created_at, updated_at
		FROM experiments
		WHERE id = $1
		FOR UPDATE
	`, uuid.UUID(experimentID))
	exp, err := scanExperiment(row)
	if err != nil {
		return nil, err
	}

	if err := validate(exp); err != nil {
		return nil, err
	}
	mutate(exp)

	if err := s.update(txCtx, exp); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit experiment update: %w", err)
	}
	return exp, nil
}

func (s *PostgresExperimentStore) update(ctx context.Context, exp *models.Experiment) error {
	variants, metrics, config, result, err := marshalExperimentBlobs(exp)
	if err != nil {
		return err
	}
	_, err = execer(ctx, s.db).ExecContext(ctx, `
		UPDATE experiments
		SET name = $2, status = $3, variants = $4, metrics = $5, config = $6,
		    result = $7, start_date = $8, end_date = $9, updated_at = $10
		WHERE id = $1
	`,
		uuid.UUID(exp.ID), exp.Name, string(exp.Status),
		variants, metrics, config, result,
		exp.StartDate, exp.EndDate, exp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}
	return nil
}

func marshalExperimentBlobs(exp *models.Experiment) (variants, metrics, config, result []byte, err error) {
	if variants, err = json.Marshal(exp.Variants); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal variants: %w", err)
	}
	if metrics, err = json.Marshal(exp.Metrics); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal metrics: %w", err)
	}
	if config, err = json.Marshal(exp.Config); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal config: %w", err)
	}
	if exp.Result != nil {
		if result, err = json.Marshal(exp.Result); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return variants, metrics, config, result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*models.Experiment, error) {
	var (
		exp       models.Experiment
		expID     uuid.UUID
		status    string
		variants  []byte
		metrics   []byte
		config    []byte
		result    []byte
		startDate sql.NullTime
		endDate   sql.NullTime
	)
	err := row.Scan(&expID, &exp.Name, &status, &variants, &metrics, &config, &result, &startDate, &endDate, &exp.CreatedAt, &exp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan experiment: %w", err)
	}

	exp.ID = id.ExperimentID(expID)
	exp.Status = models.Status(status)
	if err := json.Unmarshal(variants, &exp.Variants); err != nil {
		return nil, fmt.Errorf("unmarshal variants: %w", err)
	}
	if err := json.Unmarshal(metrics, &exp.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(config, &exp.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(result) > 0 {
		exp.Result = &models.AnalysisResult{}
		if err := json.Unmarshal(result, exp.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if startDate.Valid {
		t := startDate.Time
		exp.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		exp.EndDate = &t
	}
	return &exp, nil
}

// PostgresAssignmentStore implements AssignmentStore.
type PostgresAssignmentStore struct {
	db *sql.DB
}

func NewPostgresAssignmentStore(db *sql.DB) *PostgresAssignmentStore {
	return &PostgresAssignmentStore{db: db}
}

func (s *PostgresAssignmentStore) CreateIfAbsent(ctx context.Context, assignment models.Assignment) (models.Assignment, bool, error) {
	contextJSON, err := json.Marshal(assignment.Context)
	if err != nil {
		return models.Assignment{}, false, fmt.Errorf("marshal assignment context: %w", err)
	}

	res, err := execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO assignments (experiment_id, user_id, variant_id, context, assigned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (experiment_id, user_id) DO NOTHING
	`,
		uuid.UUID(assignment.ExperimentID), string(assignment.UserID),
		uuid.UUID(assignment.VariantID), contextJSON, assignment.AssignedAt,
	)
	if err != nil {
		return models.Assignment{}, false, fmt.Errorf("insert assignment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return assignment, true, nil
	}

	// Lost the race or already assigned: the stored row wins.
	existing, err := s.Find(ctx, assignment.ExperimentID, assignment.UserID)
	if err != nil {
		return models.Assignment{}, false, err
	}
	return existing, false, nil
}

func (s *PostgresAssignmentStore) Find(ctx context.Context, experimentID id.ExperimentID, userID id.UserID) (models.Assignment, error) {
	var (
		a           models.Assignment
		expID       uuid.UUID
		variantID   uuid.UUID
		user        string
		contextJSON []byte
	)
	err := execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT experiment_id, user_id, variant_id, context, assigned_at
		FROM assignments
		WHERE experiment_id = $1 AND user_id = $2
	`, uuid.UUID(experimentID), string(userID)).Scan(&expID, &user, &variantID, &contextJSON, &a.AssignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Assignment{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Assignment{}, fmt.Errorf("query assignment: %w", err)
	}

	a.ExperimentID = id.ExperimentID(expID)
	a.UserID = id.UserID(user)
	a.VariantID = id.VariantID(variantID)
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &a.Context); err != nil {
			return models.Assignment{}, fmt.Errorf("unmarshal assignment context: %w", err)
		}
	}
	return a, nil
}

// PostgresConversionStore implements ConversionStore.
type PostgresConversionStore struct {
	db *sql.DB
}

func NewPostgresConversionStore(db *sql.DB) *PostgresConversionStore {
	return &PostgresConversionStore{db: db}
}

func (s *PostgresConversionStore) Append(ctx context.Context, event models.ConversionEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal conversion metadata: %w", err)
	}
	_, err = execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO conversions (id, experiment_id, variant_id, user_id, value, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.New(), uuid.UUID(event.ExperimentID), uuid.UUID(event.VariantID),
		string(event.UserID), event.Value, metadata, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) VariantAggregates(ctx context.Context, experimentID id.ExperimentID) (map[id.VariantID]VariantAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.variant_id,
		       COUNT(DISTINCT a.user_id) AS sample_size,
		       COUNT(DISTINCT c.user_id) AS conversions,
		       COALESCE(AVG(c.value), 0) AS avg_value,
		       COALESCE(STDDEV_SAMP(c.value), 0) AS std_value
		FROM assignments a
		LEFT JOIN conversions c
		  ON c.experiment_id = a.experiment_id
		 AND c.variant_id = a.variant_id
		 AND c.user_id = a.user_id
		WHERE a.experiment_id = $1
		GROUP BY a.variant_id
	`, uuid.UUID(experimentID))
	if err != nil {
		return nil, fmt.Errorf("query variant aggregates: %w", err)
	}
	defer rows.Close()

	out := make(map[id.VariantID]VariantAggregate)
	for rows.Next() {
		var (
			variantID uuid.UUID
			agg       VariantAggregate
		)
		if err := rows.Scan(&variantID, &agg.SampleSize, &agg.Conversions, &agg.AvgValue, &agg.StdValue); err != nil {
			return nil, fmt.Errorf("scan variant aggregate: %w", err)
		}
		out[id.VariantID(variantID)] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant aggregates: %w", err)
	}
	return out, nil
}

func (s *PostgresConversionStore) SegmentAggregates(ctx context.Context, experimentID id.ExperimentID, dimension string) ([]SegmentAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.context->>$2 AS segment_value,
		       a.variant_id,
		       COUNT(DISTINCT a.user_id) AS sample_size,
		       COUNT(DISTINCT c.user_id) AS conversions,
		       COALESCE(AVG(c.value), 0) AS avg_value,
		       COALESCE(STDDEV_SAMP(c.value), 0) AS std_value
		FROM assignments a
		LEFT JOIN conversions c
		  ON c.experiment_id = a.experiment_id
		 AND c.variant_id = a.variant_id
		 AND c.user_id = a.user_id
		WHERE a.experiment_id = $1
		  AND a.context ? $2
		GROUP BY segment_value, a.variant_id
		ORDER BY segment_value
	`, uuid.UUID(experimentID), dimension)
	if err != nil {
		return nil, fmt.Errorf("query segment aggregates: %w", err)
	}
	defer rows.Close()

	var (
		out     []SegmentAggregate
		current *SegmentAggregate
	)
	for rows.Next() {
		var (
			value     string
			variantID uuid.UUID
			agg       VariantAggregate
		)
		if err := rows.Scan(&value, &variantID, &agg.SampleSize, &agg.Conversions, &agg.AvgValue, &agg.StdValue); err != nil {
			return nil, fmt.Errorf("scan segment aggregate: %w", err)
		}
		if current == nil || current.Value != value {
			out = append(out, SegmentAggregate{
				Dimension: dimension,
				Value:     value,
				Variants:  make(map[id.VariantID]VariantAggregate),
			})
			current = &out[len(out)-1]
		}
		current.Variants[id.VariantID(variantID)] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment aggregates: %w", err)
	}
	return out, nil
}

// Schema is the DDL for the engine's tables. Applied by integration tests;
// production deployments manage migrations externally.
const Schema = `
CREATE TABLE IF NOT EXISTS experiments (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	variants    JSONB NOT NULL,
	metrics     JSONB NOT NULL,
	config      JSONB NOT NULL,
	result      JSONB,
	start_date  TIMESTAMPTZ,
	end_date    TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS assignments (
	experiment_id UUID NOT NULL,
	user_id       TEXT NOT NULL,
	variant_id    UUID NOT NULL,
	context       JSONB,
	assigned_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (experiment_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_assignments_variant ON assignments (experiment_id, variant_id);

CREATE TABLE IF NOT EXISTS conversions (
	id            UUID PRIMARY KEY,
	experiment_id UUID NOT NULL,
	variant_id    UUID NOT NULL,
	user_id       TEXT NOT NULL,
	value         DOUBLE PRECISION NOT NULL,
	metadata      JSONB,
	occurred_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversions_experiment ON conversions (experiment_id, variant_id);
`
