package patient

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDuplicateRegNumber  = errors.New("registration number already in use")
	ErrInvalidPatientData  = errors.New("invalid patient data")
	ErrAllocationExhausted = errors.New("no free registration number found")
)

// Store persists one Record per registration number. Implementations must
// enforce uniqueness of RegNumber in Create: the allocator's existence check
// is only a pre-filter.
type Store interface {
	Create(ctx context.Context, record *Record) error
	FindByRegNumber(ctx context.Context, regNumber string) (*Record, error)
	Exists(ctx context.Context, regNumber string) (bool, error)
	Update(ctx context.Context, regNumber string, fields Fields) (*Record, error)
}
