package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guanacaste-labs/climatrack/internal/record"
)

// Postgres is the production record.Store backed by pgxpool. Writes rely on
// single-statement atomicity; ids and timestamps are assigned by the
// database so records for one (subject, kind) pair are totally ordered.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store over an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Append implements record.Store.
func (s *Postgres) Append(ctx context.Context, subjectID int64, kind string, payload json.RawMessage) (record.Record, error) {
	r := record.Record{
		SubjectID: subjectID,
		Kind:      kind,
		Payload:   payload,
	}
	err := s.pool.QueryRow(ctx, "insert_record", subjectID, kind, string(payload)).
		Scan(&r.ID, &r.Timestamp)
	if err != nil {
		return record.Record{}, fmt.Errorf("insert record: %w", err)
	}
	return r, nil
}

// Latest implements record.Store.
func (s *Postgres) Latest(ctx context.Context, subjectID int64, kind string) (record.Record, error) {
	var r record.Record
	var payload string
	err := s.pool.QueryRow(ctx, "latest_record", subjectID, kind).
		Scan(&r.ID, &r.SubjectID, &r.Kind, &payload, &r.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Record{}, record.ErrNotFound
	}
	if err != nil {
		return record.Record{}, fmt.Errorf("latest record: %w", err)
	}
	r.Payload = json.RawMessage(payload)
	return r, nil
}

// Query implements record.Store. Filters are optional; the WHERE clause is
// built per call since prepared statements cannot cover every combination.
func (s *Postgres) Query(ctx context.Context, subjectID int64, f record.Filter) (record.Page, error) {
	conds := []string{"subject_id = $1"}
	args := []any{subjectID}

	if f.Kind != "" {
		args = append(args, f.Kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Start != nil {
		args = append(args, *f.Start)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.End != nil {
		args = append(args, *f.End)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM records WHERE "+where, args...).Scan(&total)
	if err != nil {
		return record.Page{}, fmt.Errorf("count records: %w", err)
	}

	page := record.Page{
		Total:     total,
		PageCount: record.PageCount(total, f.PerPage),
		Page:      f.Page,
		PerPage:   f.PerPage,
		Records:   []record.Record{},
	}

	offset := (f.Page - 1) * f.PerPage
	if offset >= total {
		return page, nil
	}

	args = append(args, f.PerPage, offset)
	sql := fmt.Sprintf(`
		SELECT id, subject_id, kind, payload, created_at
		FROM records
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return record.Page{}, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r record.Record
		var payload string
		if err := rows.Scan(&r.ID, &r.SubjectID, &r.Kind, &payload, &r.Timestamp); err != nil {
			return record.Page{}, fmt.Errorf("scan record: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		page.Records = append(page.Records, r)
	}
	if err := rows.Err(); err != nil {
		return record.Page{}, fmt.Errorf("iterate records: %w", err)
	}
	return page, nil
}

// Delete implements record.Store. The ownership check is part of the WHERE
// clause so a foreign record and a missing one are indistinguishable.
func (s *Postgres) Delete(ctx context.Context, subjectID int64, recordID int64) error {
	tag, err := s.pool.Exec(ctx, "delete_record", recordID, subjectID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return record.ErrNotFound
	}
	return nil
}

// ListSubjects implements record.Store.
func (s *Postgres) ListSubjects(ctx context.Context) ([]record.Subject, error) {
	rows, err := s.pool.Query(ctx, "list_subjects")
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []record.Subject
	for rows.Next() {
		var sub record.Subject
		if err := rows.Scan(&sub.ID, &sub.Username); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}
