// Package db connects to the database, applies the schema and seeds reference data.
package db

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// MigrationsSource is where golang-migrate looks for SQL files.
var MigrationsSource = "file://migrations"

var passwordRegex = regexp.MustCompile(`(password=)([^\s]+)`)

// Models lists every table managed by AutoMigrate, parents first.
func Models() []any {
	return []any{
		&models.Category{}, &models.Product{}, &models.GlobalStock{},
		&models.Event{}, &models.Room{}, &models.RoomStock{},
		&models.Proposal{}, &models.ProposalItem{},
	}
}

// Connect opens the configured database, retrying postgres while it starts up.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, errors.New("database dsn is empty, check DB_* or DATABASE_DSN")
	}
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var gdb *gorm.DB
	var err error
	if cfg.Driver == "sqlite" {
		gdb, err = gorm.Open(sqlite.Open(dsn), gcfg)
	} else {
		dsn = NormalizeDSN(dsn)
		for i := 1; i <= connectAttempts; i++ {
			gdb, err = gorm.Open(postgres.Open(dsn), gcfg)
			if err == nil {
				break
			}
			log.Warn("retrying db connection", zap.Int("attempt", i), zap.Error(err))
			time.Sleep(connectBackoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if pingErr := gdb.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info("connected to database", zap.String("driver", driverName(cfg)), zap.String("dsn", MaskDSN(dsn)))
	return gdb, nil
}

// Migrate applies the schema. With sqlMigrations on a postgres database the
// versioned files under MigrationsSource are used, otherwise AutoMigrate.
func Migrate(gdb *gorm.DB, cfg config.DatabaseConfig, sqlMigrations bool, log *zap.Logger) error {
	if sqlMigrations && cfg.Driver != "sqlite" {
		if err := runSQLMigrations(ToURLDSN(NormalizeDSN(cfg.DSN()))); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Info("sql migrations applied", zap.String("source", MigrationsSource))
	} else {
		for _, m := range Models() {
			if err := gdb.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
		log.Info("automigrate completed", zap.Int("models", len(Models())))
	}

	// sanity check: ensure required core tables exist
	for _, table := range []string{"products", "global_stocks", "rooms", "room_stocks", "proposal_items"} {
		if !gdb.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// runSQLMigrations executes migrations from MigrationsSource using golang-migrate.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New(MigrationsSource, dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MaskDSN hides the password of a key=value or URL DSN.
func MaskDSN(dsn string) string {
	if strings.Contains(dsn, "password=") {
		return passwordRegex.ReplaceAllString(dsn, `${1}***`)
	}
	return urlPasswordRegex.ReplaceAllString(dsn, `${1}***@`)
}

var urlPasswordRegex = regexp.MustCompile(`(://[^:/@]+:)[^@]+@`)

func driverName(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}
