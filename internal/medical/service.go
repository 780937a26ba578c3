package medical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/audit"
	"github.com/mesikahq/patient-care-portal/internal/patient"
)

// PatientFinder is the part of the patient store the service needs to gate
// every medical operation on an existing registration.
type PatientFinder interface {
	FindByRegNumber(ctx context.Context, regNumber string) (*patient.Record, error)
}

// Complete is a patient together with their medical information, which is
// nil until the first SaveMedical.
type Complete struct {
	Patient     *patient.Record `json:"patient"`
	MedicalInfo *Record         `json:"medicalInfo"`
}

type Service interface {
	// GetMedical returns (nil, nil) when the patient exists but has no
	// medical information yet.
	GetMedical(ctx context.Context, regNumber string) (*Record, error)
	SaveMedical(ctx context.Context, regNumber string, u Update) (*Record, bool, error)
	UpdateSection(ctx context.Context, regNumber, section string, data json.RawMessage) (*Record, error)
	GetComplete(ctx context.Context, regNumber string) (*Complete, error)
	DeleteMedical(ctx context.Context, regNumber string) error
	Summary(ctx context.Context, filter SummaryFilter) ([]Summary, error)
}

type service struct {
	patients PatientFinder
	store    Store
	audit    audit.Service
	logger   *zap.Logger
}

func NewService(patients PatientFinder, store Store, audit audit.Service, logger *zap.Logger) Service {
	return &service{
		patients: patients,
		store:    store,
		audit:    audit,
		logger:   logger,
	}
}

func (s *service) GetMedical(ctx context.Context, regNumber string) (*Record, error) {
	if _, err := s.patients.FindByRegNumber(ctx, regNumber); err != nil {
		return nil, err
	}

	record, err := s.store.FindByRegNumber(ctx, regNumber)
	if errors.Is(err, ErrMedicalNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, audit.EventAccess, "READ", regNumber, nil)
	return record, nil
}

func (s *service) SaveMedical(ctx context.Context, regNumber string, u Update) (*Record, bool, error) {
	if _, err := s.patients.FindByRegNumber(ctx, regNumber); err != nil {
		return nil, false, err
	}

	record, created, err := s.store.Upsert(ctx, regNumber, u)
	if err != nil {
		return nil, false, fmt.Errorf("save medical info: %w", err)
	}

	action := "UPDATE"
	if created {
		action = "CREATE"
	}
	s.logEvent(ctx, audit.EventModify, action, regNumber, nil)
	return record, created, nil
}

func (s *service) UpdateSection(ctx context.Context, regNumber, section string, data json.RawMessage) (*Record, error) {
	if !ValidSection(section) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}
	if _, err := s.patients.FindByRegNumber(ctx, regNumber); err != nil {
		return nil, err
	}

	record, err := s.store.UpdateSection(ctx, regNumber, section, data)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, audit.EventModify, "SECTION_UPDATE", regNumber, map[string]interface{}{
		"section": section,
	})
	return record, nil
}

func (s *service) GetComplete(ctx context.Context, regNumber string) (*Complete, error) {
	p, err := s.patients.FindByRegNumber(ctx, regNumber)
	if err != nil {
		return nil, err
	}

	record, err := s.store.FindByRegNumber(ctx, regNumber)
	if err != nil && !errors.Is(err, ErrMedicalNotFound) {
		return nil, err
	}

	s.logEvent(ctx, audit.EventAccess, "READ_COMPLETE", regNumber, nil)
	return &Complete{Patient: p, MedicalInfo: record}, nil
}

func (s *service) DeleteMedical(ctx context.Context, regNumber string) error {
	if _, err := s.patients.FindByRegNumber(ctx, regNumber); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, regNumber); err != nil {
		return err
	}

	s.logEvent(ctx, audit.EventDelete, "DELETE", regNumber, nil)
	return nil
}

func (s *service) Summary(ctx context.Context, filter SummaryFilter) ([]Summary, error) {
	summaries, err := s.store.Summary(ctx, filter)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, audit.EventAccess, "SUMMARY", "", map[string]interface{}{
		"department": filter.Department,
		"count":      len(summaries),
	})
	return summaries, nil
}

func (s *service) logEvent(ctx context.Context, eventType audit.EventType, action, regNumber string, details map[string]interface{}) {
	event := &audit.AuditEvent{
		EventType:  eventType,
		Action:     action,
		Resource:   "medical_info",
		ResourceID: regNumber,
		Status:     "success",
	}
	if details != nil {
		event.Details = audit.Details(details)
	}
	if err := s.audit.LogEvent(ctx, event); err != nil {
		s.logger.Error("failed to record audit event",
			zap.String("action", action),
			zap.String("reg_number", regNumber),
			zap.Error(err),
		)
	}
}
