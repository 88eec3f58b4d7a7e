package auditrun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"steward/internal/steward/models"
	"steward/pkg/platform/sentinel"
)

// PostgresStore persists audit runs in PostgreSQL. Findings and actions are
// stored as JSONB documents: they are written once at finalization and only
// ever read back whole, so relational decomposition buys nothing.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, run *models.AuditRun) error {
	if run == nil || run.ID == "" {
		return sentinel.ErrInvalidState
	}
	policies, err := json.Marshal(run.Policies)
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_runs (id, status, dry_run, policies, started_at, finding_counts, findings, actions)
		 VALUES ($1, $2, $3, $4, $5, '{}', '[]', '[]')`,
		run.ID, string(models.RunPending), run.DryRun, policies, run.StartedAt)
	if err != nil {
		return fmt.Errorf("create audit run: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkRunning(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs SET status = $2 WHERE id = $1 AND status = $3`,
		id, string(models.RunRunning), string(models.RunPending))
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return s.expectTransition(ctx, res, id)
}

func (s *PostgresStore) Complete(ctx context.Context, run *models.AuditRun) error {
	return s.finalize(ctx, run, models.RunCompleted)
}

func (s *PostgresStore) Fail(ctx context.Context, run *models.AuditRun) error {
	return s.finalize(ctx, run, models.RunFailed)
}

// finalize guards immutability in the WHERE clause: a run already in a
// terminal status matches zero rows and the write is refused.
func (s *PostgresStore) finalize(ctx context.Context, run *models.AuditRun, status models.RunStatus) error {
	if run == nil || run.ID == "" {
		return sentinel.ErrInvalidState
	}
	counts, err := json.Marshal(run.FindingCounts)
	if err != nil {
		return fmt.Errorf("marshal finding counts: %w", err)
	}
	findings, err := json.Marshal(run.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	actions, err := json.Marshal(run.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_runs
		 SET status = $2, completed_at = $3, finding_counts = $4, findings = $5, actions = $6, error = $7
		 WHERE id = $1 AND status IN ($8, $9)`,
		run.ID, string(status), run.CompletedAt, counts, findings, actions, run.Error,
		string(models.RunPending), string(models.RunRunning))
	if err != nil {
		return fmt.Errorf("finalize audit run: %w", err)
	}
	return s.expectTransition(ctx, res, run.ID)
}

func (s *PostgresStore) expectTransition(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("audit run transition: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

const runColumns = `id, status, dry_run, policies, started_at, completed_at, finding_counts, findings, actions, COALESCE(error, '')`

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.AuditRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM audit_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit run: %w", err)
	}
	return run, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.AuditRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM audit_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row interface{ Scan(...any) error }) (*models.AuditRun, error) {
	var (
		run                                 models.AuditRun
		status                              string
		policies, counts, findings, actions []byte
		completedAt                         sql.NullTime
	)
	err := row.Scan(&run.ID, &status, &run.DryRun, &policies, &run.StartedAt,
		&completedAt, &counts, &findings, &actions, &run.Error)
	if err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		run.CompletedAt = &t
	}
	if err := json.Unmarshal(policies, &run.Policies); err != nil {
		return nil, fmt.Errorf("unmarshal policies: %w", err)
	}
	if err := json.Unmarshal(counts, &run.FindingCounts); err != nil {
		return nil, fmt.Errorf("unmarshal finding counts: %w", err)
	}
	if err := json.Unmarshal(findings, &run.Findings); err != nil {
		return nil, fmt.Errorf("unmarshal findings: %w", err)
	}
	if err := json.Unmarshal(actions, &run.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	return &run, nil
}
