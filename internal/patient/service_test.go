package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/audit"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestService(store Store, maxAttempts int) *service {
	return NewService(store, NewAllocator(store, maxAttempts), audit.NewLogService(), zap.NewNop(), maxAttempts).(*service)
}

func TestService_RegisterAssignsUniqueNumbers(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, 0)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		record, err := svc.Register(context.Background(), Fields{FirstName: strPtr("Asha")})
		require.NoError(t, err)
		require.True(t, ValidRegNumber(record.RegNumber))
		assert.False(t, seen[record.RegNumber], "duplicate registration number %s", record.RegNumber)
		seen[record.RegNumber] = true
	}
	assert.Equal(t, 200, store.Len())
}

func TestService_RegisterStoresFields(t *testing.T) {
	svc := newTestService(NewMemoryStore(), 0)

	record, err := svc.Register(context.Background(), Fields{
		FirstName:  strPtr("Ravi"),
		LastName:   strPtr("Kumar"),
		Age:        intPtr(42),
		Department: strPtr("Cardiology"),
	})
	require.NoError(t, err)
	assert.False(t, record.CreatedAt.IsZero())

	got, err := svc.Get(context.Background(), record.RegNumber)
	require.NoError(t, err)
	assert.Equal(t, "Ravi", *got.FirstName)
	assert.Equal(t, 42, *got.Age)
	assert.Nil(t, got.MiddleName)
}

func TestService_RegisterRejectsInvalidFields(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, 0)

	_, err := svc.Register(context.Background(), Fields{Age: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidPatientData)
	assert.Equal(t, 0, store.Len())
}

func TestService_RegisterRetriesDuplicateOnCreate(t *testing.T) {
	store := newFakeStore()
	creates := 0
	store.createFn = func(ctx context.Context, record *Record) error {
		creates++
		if creates == 1 {
			return ErrDuplicateRegNumber
		}
		return store.MemoryStore.Create(ctx, record)
	}

	svc := newTestService(store, 5)
	svc.allocator.intN = sequence(11, 22)

	record, err := svc.Register(context.Background(), Fields{})
	require.NoError(t, err)
	assert.Equal(t, "100022", record.RegNumber)
	assert.Equal(t, 2, creates)
}

func TestService_RegisterGivesUpAfterRepeatedDuplicates(t *testing.T) {
	store := newFakeStore()
	store.createFn = func(context.Context, *Record) error {
		return ErrDuplicateRegNumber
	}

	svc := newTestService(store, 3)
	_, err := svc.Register(context.Background(), Fields{})
	assert.ErrorIs(t, err, ErrAllocationExhausted)
}

func TestService_RegisterPropagatesStorageErrors(t *testing.T) {
	boom := errors.New("disk full")
	store := newFakeStore()
	store.createFn = func(context.Context, *Record) error { return boom }

	svc := newTestService(store, 3)
	_, err := svc.Register(context.Background(), Fields{})
	assert.ErrorIs(t, err, boom)
}

func TestService_UpdateReplacesOnlyProvidedFields(t *testing.T) {
	svc := newTestService(NewMemoryStore(), 0)
	ctx := context.Background()

	record, err := svc.Register(ctx, Fields{
		FirstName: strPtr("Meera"),
		LastName:  strPtr("Iyer"),
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, record.RegNumber, Fields{LastName: strPtr("Nair")})
	require.NoError(t, err)
	assert.Equal(t, "Meera", *updated.FirstName)
	assert.Equal(t, "Nair", *updated.LastName)
	assert.Equal(t, record.RegNumber, updated.RegNumber)
	assert.Equal(t, record.CreatedAt, updated.CreatedAt)
}

func TestService_UpdateUnknownPatient(t *testing.T) {
	svc := newTestService(NewMemoryStore(), 0)

	_, err := svc.Update(context.Background(), "123456", Fields{FirstName: strPtr("X")})
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestService_UpdateRejectsInvalidEmail(t *testing.T) {
	svc := newTestService(NewMemoryStore(), 0)
	ctx := context.Background()

	record, err := svc.Register(ctx, Fields{})
	require.NoError(t, err)

	_, err = svc.Update(ctx, record.RegNumber, Fields{Email: strPtr("not-an-email")})
	assert.ErrorIs(t, err, ErrInvalidPatientData)
}

func TestService_GetHistory(t *testing.T) {
	svc := newTestService(NewMemoryStore(), 0)
	ctx := context.Background()

	_, err := svc.GetHistory(ctx, "999999")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	record, err := svc.Register(ctx, Fields{})
	require.NoError(t, err)

	events, err := svc.GetHistory(ctx, record.RegNumber)
	require.NoError(t, err)
	assert.Empty(t, events)
}

type recordingAudit struct {
	audit.Service
	filters map[string]interface{}
}

func (a *recordingAudit) QueryEvents(_ context.Context, filters map[string]interface{}, _, _ int) ([]audit.AuditEvent, error) {
	a.filters = filters
	return []audit.AuditEvent{{Resource: "medical_info", ResourceID: "123456"}}, nil
}

func TestService_GetHistoryCoversMedicalEvents(t *testing.T) {
	store := NewMemoryStore()
	recorder := &recordingAudit{Service: audit.NewLogService()}
	svc := NewService(store, NewAllocator(store, 0), recorder, zap.NewNop(), 0)
	ctx := context.Background()

	record, err := svc.Register(ctx, Fields{})
	require.NoError(t, err)

	events, err := svc.GetHistory(ctx, record.RegNumber)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "medical_info", events[0].Resource)
	assert.Equal(t, []string{"patient", "medical_info"}, recorder.filters["resource"])
	assert.Equal(t, record.RegNumber, recorder.filters["resource_id"])
}

func TestFields_Overlay(t *testing.T) {
	base := Fields{FirstName: strPtr("A"), Age: intPtr(10)}
	base.Overlay(Fields{Age: intPtr(11), Gender: strPtr("F")})

	assert.Equal(t, "A", *base.FirstName)
	assert.Equal(t, 11, *base.Age)
	assert.Equal(t, "F", *base.Gender)
	assert.False(t, base.Empty())
	assert.True(t, Fields{}.Empty())
}

func TestValidRegNumber(t *testing.T) {
	tests := map[string]bool{
		"100000":  true,
		"999999":  true,
		"012345":  false,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		"":        false,
	}
	for in, want := range tests {
		assert.Equal(t, want, ValidRegNumber(in), in)
	}
}
