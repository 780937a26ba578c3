package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps the patient fields as a JSONB document keyed by
// registration number. The schema lives in internal/db/migrations.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record *Record) error {
	doc, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("encode patient: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO patients (reg_number, doc, created_at)
		VALUES ($1, $2, $3)`,
		record.RegNumber, doc, record.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateRegNumber
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByRegNumber(ctx context.Context, regNumber string) (*Record, error) {
	row := s.db.QueryRow(ctx, `
		SELECT reg_number, doc, created_at
		FROM patients
		WHERE reg_number = $1`,
		regNumber,
	)
	return scanPatient(row)
}

func (s *PostgresStore) Exists(ctx context.Context, regNumber string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE reg_number = $1)`,
		regNumber,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Update(ctx context.Context, regNumber string, fields Fields) (*Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	record, err := scanPatient(tx.QueryRow(ctx, `
		SELECT reg_number, doc, created_at
		FROM patients
		WHERE reg_number = $1
		FOR UPDATE`,
		regNumber,
	))
	if err != nil {
		return nil, err
	}

	record.Fields.Overlay(fields)
	doc, err := json.Marshal(record.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode patient: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE patients SET doc = $2 WHERE reg_number = $1`, regNumber, doc); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return record, nil
}

func scanPatient(row pgx.Row) (*Record, error) {
	var (
		record Record
		doc    []byte
	)
	err := row.Scan(&record.RegNumber, &doc, &record.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	if err := json.Unmarshal(doc, &record.Fields); err != nil {
		return nil, fmt.Errorf("decode patient: %w", err)
	}
	return &record, nil
}
