package medical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the record as JSONB next to the columns Summary
// filters on. Mutations lock the row with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *PostgresStore) FindByRegNumber(ctx context.Context, regNumber string) (*Record, error) {
	return scanRecord(s.db.QueryRow(ctx,
		`SELECT doc FROM medical_info WHERE reg_number = $1`,
		regNumber,
	))
}

func (s *PostgresStore) Upsert(ctx context.Context, regNumber string, u Update) (*Record, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now()
	defaults, err := json.Marshal(NewRecord(regNumber, now))
	if err != nil {
		return nil, false, fmt.Errorf("encode medical info: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO medical_info (reg_number, doc, department, admission_at, created_at, updated_at)
		VALUES ($1, $2, '', NULL, $3, $3)
		ON CONFLICT (reg_number) DO NOTHING`,
		regNumber, defaults, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert medical info: %w", err)
	}
	created := tag.RowsAffected() == 1

	record, err := lockRecord(ctx, tx, regNumber)
	if err != nil {
		return nil, false, err
	}
	ApplyUpdate(record, u, now)

	if err := writeRecord(ctx, tx, record); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return record, created, nil
}

func (s *PostgresStore) UpdateSection(ctx context.Context, regNumber, section string, data json.RawMessage) (*Record, error) {
	if !ValidSection(section) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	record, err := lockRecord(ctx, tx, regNumber)
	if err != nil {
		return nil, err
	}
	if err := MergeSection(record, section, data, s.now()); err != nil {
		return nil, err
	}
	if err := writeRecord(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Delete(ctx context.Context, regNumber string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM medical_info WHERE reg_number = $1`, regNumber)
	if err != nil {
		return fmt.Errorf("delete medical info: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMedicalNotFound
	}
	return nil
}

func (s *PostgresStore) Summary(ctx context.Context, filter SummaryFilter) ([]Summary, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Department != "" {
		args = append(args, filter.Department)
		where = append(where, fmt.Sprintf("department = $%d", len(args)))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT doc FROM medical_info`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query medical summary: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, SummaryOf(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query medical summary: %w", err)
	}
	return summaries, nil
}

func lockRecord(ctx context.Context, tx pgx.Tx, regNumber string) (*Record, error) {
	return scanRecord(tx.QueryRow(ctx,
		`SELECT doc FROM medical_info WHERE reg_number = $1 FOR UPDATE`,
		regNumber,
	))
}

func writeRecord(ctx context.Context, tx pgx.Tx, record *Record) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode medical info: %w", err)
	}

	var admissionAt *time.Time
	if record.AdmissionDateTime != nil && !record.AdmissionDateTime.IsZero() {
		t := record.AdmissionDateTime.Time
		admissionAt = &t
	}

	_, err = tx.Exec(ctx, `
		UPDATE medical_info
		SET doc = $2, department = $3, admission_at = $4, updated_at = $5
		WHERE reg_number = $1`,
		record.RegNumber, doc, record.Department, admissionAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update medical info: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMedicalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan medical info: %w", err)
	}

	var record Record
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, fmt.Errorf("decode medical info: %w", err)
	}
	return &record, nil
}
