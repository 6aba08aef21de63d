package store

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/cardclash-backend/internal/models"
)

// Open connects to Postgres when dsn looks like a Postgres URL or keyword
// DSN, and to a SQLite file otherwise. The schema is migrated before
// returning.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	if IsPostgresDSN(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(sqliteDSN(dsn)), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		// SQLite allows one writer; a single connection also keeps
		// in-memory databases alive and shared.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Card{},
		&models.Timer{},
		&models.Battle{},
		&models.BattleSelection{},
		&models.CardOwnershipHistory{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "cardclash.db"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_busy_timeout=5000&_journal_mode=WAL"
}
