package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/audit"
)

type Service interface {
	Register(ctx context.Context, fields Fields) (*Record, error)
	Get(ctx context.Context, regNumber string) (*Record, error)
	Update(ctx context.Context, regNumber string, fields Fields) (*Record, error)
	GetHistory(ctx context.Context, regNumber string) ([]audit.AuditEvent, error)
}

type service struct {
	store       Store
	allocator   *Allocator
	audit       audit.Service
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

func NewService(store Store, allocator *Allocator, audit audit.Service, logger *zap.Logger, maxAttempts int) Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &service{
		store:       store,
		allocator:   allocator,
		audit:       audit,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Register allocates a registration number and stores the patient under it.
// A duplicate key from the store means another registration won the race for
// the same candidate, so a fresh number is allocated.
func (s *service) Register(ctx context.Context, fields Fields) (*Record, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		regNumber, err := s.allocator.Allocate(ctx)
		if err != nil {
			return nil, err
		}

		record := &Record{
			RegNumber: regNumber,
			Fields:    fields,
			CreatedAt: s.now(),
		}

		err = s.store.Create(ctx, record)
		if errors.Is(err, ErrDuplicateRegNumber) {
			s.logger.Warn("registration number taken concurrently, allocating again",
				zap.String("reg_number", regNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create patient: %w", err)
		}

		s.logEvent(ctx, audit.EventModify, "CREATE", regNumber)
		return record, nil
	}

	return nil, fmt.Errorf("%w after %d create attempts", ErrAllocationExhausted, s.maxAttempts)
}

func (s *service) Get(ctx context.Context, regNumber string) (*Record, error) {
	record, err := s.store.FindByRegNumber(ctx, regNumber)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, audit.EventAccess, "READ", regNumber)
	return record, nil
}

func (s *service) Update(ctx context.Context, regNumber string, fields Fields) (*Record, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	record, err := s.store.Update(ctx, regNumber, fields)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, audit.EventModify, "UPDATE", regNumber)
	return record, nil
}

// HistoryResources are the audit resources keyed by registration number that
// make up a patient's history.
var HistoryResources = []string{"patient", "medical_info"}

func (s *service) GetHistory(ctx context.Context, regNumber string) ([]audit.AuditEvent, error) {
	if _, err := s.store.FindByRegNumber(ctx, regNumber); err != nil {
		return nil, err
	}

	filters := map[string]interface{}{
		"resource":    HistoryResources,
		"resource_id": regNumber,
	}
	return s.audit.QueryEvents(ctx, filters, 0, 100)
}

func (s *service) logEvent(ctx context.Context, eventType audit.EventType, action, regNumber string) {
	err := s.audit.LogEvent(ctx, &audit.AuditEvent{
		EventType:  eventType,
		Action:     action,
		Resource:   "patient",
		ResourceID: regNumber,
		Status:     "success",
	})
	if err != nil {
		s.logger.Error("failed to record audit event",
			zap.String("action", action),
			zap.String("reg_number", regNumber),
			zap.Error(err),
		)
	}
}
