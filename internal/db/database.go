package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/storycut-backend/internal/logger"
	"github.com/yungbote/storycut-backend/internal/types"
	"github.com/yungbote/storycut-backend/internal/utils"
)

// DatabaseService owns the gorm handle for the registry. REGISTRY_DRIVER
// selects postgres (default) or sqlite; sqlite exists for local development
// and tests, not production.
type DatabaseService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatabaseService(log *logger.Logger) (*DatabaseService, error) {
	serviceLog := log.With("service", "DatabaseService")

	driver := utils.GetEnv("REGISTRY_DRIVER", "postgres", log)

	var (
		handle *gorm.DB
		err    error
	)
	switch driver {
	case "sqlite":
		path := utils.GetEnv("REGISTRY_SQLITE_PATH", "storycut.db", log)
		log.Info("Connecting to sqlite registry...", "path", path)
		handle, err = gorm.Open(sqlite.Open(path), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err != nil {
			log.Error("Failed to open sqlite registry", "error", err)
			return nil, fmt.Errorf("failed to open sqlite registry: %w", err)
		}
	case "postgres":
		postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
		postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
		postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
		postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
		postgresName := utils.GetEnv("POSTGRES_NAME", "storycut", log)

		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

		log.Info("Connecting to Postgres registry...")
		handle, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
		if err != nil {
			log.Error("Failed to connect to Postgres", "error", err)
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := handle.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			log.Error("Failed to enable uuid-ossp extension", "error", err)
			return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown REGISTRY_DRIVER %q", driver)
	}

	return &DatabaseService{db: handle, log: serviceLog}, nil
}

func (s *DatabaseService) DB() *gorm.DB { return s.db }

func (s *DatabaseService) AutoMigrateAll() error {
	s.log.Info("Auto migrating registry tables...")
	err := s.db.AutoMigrate(
		&types.Media{},
		&types.JobRun{},
		&types.Transcript{},
		&types.SilenceMap{},
		&types.SceneCuts{},
		&types.Frame{},
		&types.Scene{},
		&types.ClipCandidate{},
		&types.Plan{},
		&types.Render{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for registry tables", "error", err)
		return err
	}
	s.log.Info("Registry tables migrated")
	return nil
}
