package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"steward/internal/election/models"
	"steward/pkg/platform/sentinel"
	"steward/pkg/platform/tx"
)

// PostgresStore persists election and candidate records in PostgreSQL.
// Pagination is keyset-based on the primary key so scans stay bounded
// regardless of corpus size.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const electionColumns = `id, external_id, title, description, jurisdiction, office, election_date, level, election_type, provenance, active`

func (s *PostgresStore) GetElection(ctx context.Context, id string) (*models.ElectionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE id = $1`, id)
	rec, err := scanElection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get election: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListElections(ctx context.Context, cursor string, limit int) (*ElectionPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE id > $1 ORDER BY id LIMIT $2`,
		cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	defer rows.Close()

	page := &ElectionPage{}
	for rows.Next() {
		rec, err := scanElection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		if len(page.Records) == limit {
			page.NextCursor = page.Records[len(page.Records)-1].ID
			break
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list elections: %w", err)
	}
	return page, nil
}

const candidateColumns = `id, external_id, name, party, election_id, incumbent,
	polling_support, polling_source, last_polling_update, polling_trend,
	vote_percentage, votes_received, result_source, result_certified`

func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (*models.CandidateRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)
	rec, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, cursor string, limit int) (*CandidatePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id > $1 ORDER BY id LIMIT $2`,
		cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	page := &CandidatePage{}
	for rows.Next() {
		rec, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if len(page.Records) == limit {
			page.NextCursor = page.Records[len(page.Records)-1].ID
			break
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return page, nil
}

func (s *PostgresStore) ListCandidatesByElection(ctx context.Context, electionID string) ([]*models.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE election_id = $1 ORDER BY id`, electionID)
	if err != nil {
		return nil, fmt.Errorf("list candidates by election: %w", err)
	}
	defer rows.Close()

	var out []*models.CandidateRecord
	for rows.Next() {
		rec, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RunInTx executes fn inside one SQL transaction. Writes issued through this
// store with fn's context join the transaction, so a multi-record mutation
// either lands whole or not at all.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// execer routes writes through the context transaction when one is open.
func (s *PostgresStore) execer(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) UpdateCandidatePolling(ctx context.Context, candidateID string, fields models.PollingSnapshot) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE candidates
		 SET polling_support = $2, polling_source = $3, last_polling_update = $4, polling_trend = $5
		 WHERE id = $1`,
		candidateID,
		nullFloat(fields.PollingSupport),
		nullString(fields.PollingSource),
		nullTime(fields.LastPollingUpdate),
		nullTrend(fields.PollingTrend),
	)
	if err != nil {
		return fmt.Errorf("update candidate polling: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update candidate polling: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PutElection(ctx context.Context, rec *models.ElectionRecord) error {
	if rec == nil || rec.ID == "" {
		return sentinel.ErrInvalidState
	}
	var provenance []byte
	if rec.Provenance != nil {
		b, err := json.Marshal(rec.Provenance)
		if err != nil {
			return fmt.Errorf("marshal provenance: %w", err)
		}
		provenance = b
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO elections (`+electionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			jurisdiction = EXCLUDED.jurisdiction,
			office = EXCLUDED.office,
			election_date = EXCLUDED.election_date,
			level = EXCLUDED.level,
			election_type = EXCLUDED.election_type,
			provenance = EXCLUDED.provenance,
			active = EXCLUDED.active`,
		rec.ID, rec.ExternalID, rec.Title, rec.Description, rec.Jurisdiction, rec.Office,
		rec.Date, string(rec.Level), string(rec.Type), provenance, rec.Active)
	if err != nil {
		return fmt.Errorf("put election: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutCandidate(ctx context.Context, rec *models.CandidateRecord) error {
	if rec == nil || rec.ID == "" {
		return sentinel.ErrInvalidState
	}
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO candidates (`+candidateColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			name = EXCLUDED.name,
			party = EXCLUDED.party,
			election_id = EXCLUDED.election_id,
			incumbent = EXCLUDED.incumbent,
			polling_support = EXCLUDED.polling_support,
			polling_source = EXCLUDED.polling_source,
			last_polling_update = EXCLUDED.last_polling_update,
			polling_trend = EXCLUDED.polling_trend,
			vote_percentage = EXCLUDED.vote_percentage,
			votes_received = EXCLUDED.votes_received,
			result_source = EXCLUDED.result_source,
			result_certified = EXCLUDED.result_certified`,
		rec.ID, rec.ExternalID, rec.Name, rec.Party, rec.ElectionID, rec.Incumbent,
		nullFloat(rec.PollingSupport), nullString(rec.PollingSource), nullTime(rec.LastPollingUpdate), nullTrend(rec.PollingTrend),
		nullFloat(rec.VotePercentage), nullInt(rec.VotesReceived), nullString(rec.ResultSource), rec.ResultCertified)
	if err != nil {
		return fmt.Errorf("put candidate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (*models.ElectionRecord, error) {
	var (
		rec        models.ElectionRecord
		provenance []byte
		level, typ string
	)
	err := row.Scan(&rec.ID, &rec.ExternalID, &rec.Title, &rec.Description, &rec.Jurisdiction,
		&rec.Office, &rec.Date, &level, &typ, &provenance, &rec.Active)
	if err != nil {
		return nil, err
	}
	rec.Level = models.Level(level)
	rec.Type = models.Type(typ)
	rec.Date = rec.Date.UTC()
	if len(provenance) > 0 {
		var p models.Provenance
		if err := json.Unmarshal(provenance, &p); err != nil {
			return nil, fmt.Errorf("unmarshal provenance: %w", err)
		}
		rec.Provenance = &p
	}
	return &rec, nil
}

func scanCandidate(row rowScanner) (*models.CandidateRecord, error) {
	var (
		rec           models.CandidateRecord
		support, pct  sql.NullFloat64
		source, rsrc  sql.NullString
		trend         sql.NullString
		lastUpdate    sql.NullTime
		votesReceived sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.ExternalID, &rec.Name, &rec.Party, &rec.ElectionID, &rec.Incumbent,
		&support, &source, &lastUpdate, &trend,
		&pct, &votesReceived, &rsrc, &rec.ResultCertified)
	if err != nil {
		return nil, err
	}
	if support.Valid {
		rec.PollingSupport = &support.Float64
	}
	if source.Valid {
		rec.PollingSource = &source.String
	}
	if lastUpdate.Valid {
		t := lastUpdate.Time.UTC()
		rec.LastPollingUpdate = &t
	}
	if trend.Valid {
		tr := models.PollingTrend(trend.String)
		rec.PollingTrend = &tr
	}
	if pct.Valid {
		rec.VotePercentage = &pct.Float64
	}
	if votesReceived.Valid {
		rec.VotesReceived = &votesReceived.Int64
	}
	if rsrc.Valid {
		rec.ResultSource = &rsrc.String
	}
	return &rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTrend(v *models.PollingTrend) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
