package database

import (
	"fmt"
	"strings"
	"time"

	absenceDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/absence"
	employeeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/employee"
	ledgerDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/ledger"
	leaveRequestDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leaverequest"
	leaveTypeDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/leavetype"
	notificationDatamodel "github.com/frahmantamala/leave-management/internal/core/datamodel/notification"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

type Options struct {
	Source          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        logger.LogLevel
}

// IsSQLite reports whether source points at a sqlite database ("sqlite://path"
// or ":memory:"). Everything else is handed to the postgres driver.
func IsSQLite(source string) bool {
	return strings.HasPrefix(source, sqlitePrefix) || source == ":memory:"
}

// Open connects GORM to postgres, or to sqlite for local runs and tests.
func Open(opts Options) (*gorm.DB, error) {
	level := opts.LogLevel
	if level == 0 {
		level = logger.Silent
	}
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var (
		db  *gorm.DB
		err error
	)
	if IsSQLite(opts.Source) {
		db, err = gorm.Open(sqlite.Open(strings.TrimPrefix(opts.Source, sqlitePrefix)), gcfg)
	} else {
		db, err = gorm.Open(postgres.Open(opts.Source), gcfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}

	if IsSQLite(opts.Source) {
		// a single connection keeps one in-memory database and serialises writers
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
		if opts.ConnMaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
		}
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenInMemory returns a migrated sqlite database, used by tests and demo runs.
func OpenInMemory() (*gorm.DB, error) {
	db, err := Open(Options{Source: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates the schema from the datamodel rows. Postgres deployments
// use the goose migrations under db/migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&employeeDatamodel.Enterprise{},
		&employeeDatamodel.Department{},
		&employeeDatamodel.Employee{},
		&leaveTypeDatamodel.LeaveType{},
		&leaveRequestDatamodel.LeaveRequest{},
		&ledgerDatamodel.LedgerEntry{},
		&absenceDatamodel.Absence{},
		&notificationDatamodel.Notification{},
	)
}

// SQLX wraps the GORM connection pool for hand written read queries.
func SQLX(db *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	driver := "pgx"
	if db.Dialector.Name() == "sqlite" {
		driver = "sqlite3"
	}
	return sqlx.NewDb(sqlDB, driver), nil
}
