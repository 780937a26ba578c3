package medical

import (
	"context"
	"encoding/json"
)

// Store persists at most one Record per registration number. It does not
// know about patients; the Service checks that the patient exists first.
type Store interface {
	FindByRegNumber(ctx context.Context, regNumber string) (*Record, error)
	// Upsert creates the record from defaults when absent and otherwise
	// applies u with ApplyUpdate. The bool reports whether it was created.
	Upsert(ctx context.Context, regNumber string, u Update) (*Record, bool, error)
	UpdateSection(ctx context.Context, regNumber, section string, data json.RawMessage) (*Record, error)
	Delete(ctx context.Context, regNumber string) error
	Summary(ctx context.Context, filter SummaryFilter) ([]Summary, error)
}
