package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/config"
	"github.com/mesikahq/patient-care-portal/internal/medical"
	"github.com/mesikahq/patient-care-portal/internal/patient"
)

func TestOpenStores_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	ctx := context.Background()

	stores, err := OpenStores(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer stores.Close(ctx)

	assert.IsType(t, &patient.MemoryStore{}, stores.Patients)
	assert.IsType(t, &medical.MemoryStore{}, stores.Medical)
	assert.Nil(t, stores.Pool())
	assert.NoError(t, stores.EnsureIndexes(ctx))
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = "cassandra"

	_, err := OpenStores(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewAuditService_WithoutElasticsearch(t *testing.T) {
	svc, err := NewAuditService(config.Default(), zap.NewNop())
	require.NoError(t, err)

	events, err := svc.QueryEvents(context.Background(), map[string]interface{}{"resource": "patient"}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "debug"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Logging.Level = "loud"
	_, err = NewLogger(cfg)
	assert.Error(t, err)
}
