package db

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/jackc/pgx/v5/stdlib" // sqlx driver registration
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/abdoElHodaky/clobcore/internal/db/models"
)

// Open connects gorm and a parallel sqlx handle to the same Postgres DSN:
// gorm owns writes and migrations, sqlx serves the aggregate reads.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, *sqlx.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}

	sqlxDB, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := gdb.AutoMigrate(&models.Market{}, &models.Order{}); err != nil {
		logger.Error("failed to migrate schema", zap.Error(err))
		return nil, nil, err
	}

	logger.Info("database initialized")
	return gdb, sqlxDB, nil
}
