// Package db opens the record store, applies the schema and seeds the
// fixed rows the application expects.
package db

import (
	"errors"
	"fmt"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sallegelias/metaverso-erp/internal/config"
	"github.com/sallegelias/metaverso-erp/internal/models"
)

// MigrationsDir is the golang-migrate source used when SQL migrations are enabled.
var MigrationsDir = "file://migrations"

const connectAttempts = 5

// Open connects to sqlite or postgres depending on cfg.Driver, retrying
// while the server comes up.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	if cfg.IsPostgres() {
		dialector = postgres.Open(cfg.DSN())
		log.Info("connecting to database",
			zap.String("driver", "postgres"),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("dbname", cfg.DBName))
	} else {
		dialector = sqlite.Open(cfg.Path)
		log.Info("connecting to database", zap.String("driver", "sqlite"), zap.String("path", cfg.Path))
	}

	var (
		conn *gorm.DB
		err  error
	)
	for i := 0; i < connectAttempts; i++ {
		conn, err = gorm.Open(dialector, gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if err := conn.Exec("SELECT 1").Error; err != nil {
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return conn, nil
}

// Migrate applies the schema. Postgres with SQL migrations enabled runs the
// golang-migrate files; every other case uses AutoMigrate.
func Migrate(conn *gorm.DB, cfg *config.Config) error {
	if cfg != nil && cfg.App.Migrations && cfg.Database.IsPostgres() {
		if err := runSQLMigrations(cfg.Database.URL()); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range models.All() {
			if err := conn.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}

	for _, table := range []string{"users", "company_profiles", "quotations"} {
		if !conn.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

func runSQLMigrations(url string) error {
	m, err := migrate.New(MigrationsDir, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
