// Package app opens the storage backend and audit sink selected by the
// configuration. It is shared by the server and the admin commands.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/mesikahq/patient-care-portal/internal/audit"
	"github.com/mesikahq/patient-care-portal/internal/auth"
	"github.com/mesikahq/patient-care-portal/internal/config"
	"github.com/mesikahq/patient-care-portal/internal/database"
	"github.com/mesikahq/patient-care-portal/internal/db/migrate"
	"github.com/mesikahq/patient-care-portal/internal/medical"
	"github.com/mesikahq/patient-care-portal/internal/patient"
)

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// Stores holds the repositories for one backend.
type Stores struct {
	Backend  string
	Patients patient.Store
	Medical  medical.Store
	Users    auth.UserStore

	mongoClient *mongo.Client
	pool        *pgxpool.Pool
	indexers    []indexer
	cfg         *config.Config
	logger      *zap.Logger
}

// OpenStores connects to the configured backend. Close must be called when
// the stores are no longer needed.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	s := &Stores{Backend: cfg.Storage.Backend, cfg: cfg, logger: logger}

	switch cfg.Storage.Backend {
	case config.BackendMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		patients := patient.NewMongoStore(db)
		medicalInfo := medical.NewMongoStore(db)
		users := auth.NewMongoUserStore(db)

		s.mongoClient = client
		s.Patients, s.Medical, s.Users = patients, medicalInfo, users
		s.indexers = []indexer{patients, medicalInfo, users}

	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		s.Patients = patient.NewPostgresStore(pool)
		s.Medical = medical.NewPostgresStore(pool)
		s.Users = auth.NewPostgresUserStore(pool)

	case config.BackendMemory:
		s.Patients = patient.NewMemoryStore()
		s.Medical = medical.NewMemoryStore()
		s.Users = auth.NewMemoryUserStore()

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	logger.Info("storage backend ready", zap.String("backend", s.Backend))
	return s, nil
}

// EnsureIndexes creates the mongo indexes, or applies pending migrations on
// postgres. It is a no-op for the memory backend.
func (s *Stores) EnsureIndexes(ctx context.Context) error {
	if s.pool != nil {
		manager := migrate.NewManager(s.pool, s.cfg.Postgres.MigrationsDir, s.logger)
		if err := manager.Initialize(ctx); err != nil {
			return err
		}
		return manager.Up(ctx)
	}

	for _, ix := range s.indexers {
		if err := ix.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}
	}
	return nil
}

// Pool exposes the postgres pool, or nil for other backends.
func (s *Stores) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Stores) Close(ctx context.Context) error {
	if s.mongoClient != nil {
		return s.mongoClient.Disconnect(ctx)
	}
	database.Disconnect(s.pool)
	return nil
}

// NewAuditService returns an Elasticsearch-backed audit service when
// addresses are configured and a log-only one otherwise.
func NewAuditService(cfg *config.Config, logger *zap.Logger) (audit.Service, error) {
	es, err := database.NewElasticsearch(cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}
	if es == nil {
		logger.Warn("elasticsearch not configured; audit events are logged only")
		return audit.NewLogService(), nil
	}
	return audit.NewService(es, cfg.Elasticsearch.IndexPrefix), nil
}

// NewLogger builds the application logger for the configured level.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging.level: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
