package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"steward/internal/steward/models"
	"steward/pkg/platform/sentinel"
)

// PostgresStore persists policies in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const policyColumns = `id, label, category, enabled, auto_fixable, auto_fix_enabled, archived, created_at, updated_at`

func (s *PostgresStore) Seed(ctx context.Context, p *models.Policy) error {
	if p == nil || p.ID == "" {
		return sentinel.ErrInvalidState
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO policies (`+policyColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		 ON CONFLICT (id) DO NOTHING`,
		string(p.ID), p.Label, string(p.Category), p.Enabled, p.AutoFixable, p.AutoFixEnabled, p.Archived)
	if err != nil {
		return fmt.Errorf("seed policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id models.PolicyID) (*models.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1`, string(id))
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE NOT archived ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetEnabled(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error) {
	return s.update(ctx, id, `UPDATE policies SET enabled = $2, updated_at = now() WHERE id = $1`, enabled)
}

func (s *PostgresStore) SetAutoFix(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error) {
	return s.update(ctx, id, `UPDATE policies SET auto_fix_enabled = $2, updated_at = now() WHERE id = $1`, enabled)
}

func (s *PostgresStore) Archive(ctx context.Context, id models.PolicyID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE policies SET archived = true, updated_at = now() WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("archive policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive policy: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) update(ctx context.Context, id models.PolicyID, query string, enabled bool) (*models.Policy, error) {
	res, err := s.db.ExecContext(ctx, query, string(id), enabled)
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update policy: %w", err)
	}
	if affected == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.Get(ctx, id)
}

func scanPolicy(row interface{ Scan(...any) error }) (*models.Policy, error) {
	var (
		p            models.Policy
		id, category string
	)
	err := row.Scan(&id, &p.Label, &category, &p.Enabled, &p.AutoFixable, &p.AutoFixEnabled,
		&p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.ID = models.PolicyID(id)
	p.Category = models.PolicyCategory(category)
	return &p, nil
}
