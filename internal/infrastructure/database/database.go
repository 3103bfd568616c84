package database

import (
	"errors"
	"strings"

	"carbonpay-backend/internal/domain"
	"carbonpay-backend/internal/pkg/checked"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open opens a GORM DB from DSN. Postgres DSNs go through the pgx driver with
// PreferSimpleProtocol so poolers (PgBouncer, Supabase) do not hit 42P05.
// A "sqlite://" prefix selects the embedded driver, used for local runs and tests.
// TranslateError maps unique violations to gorm.ErrDuplicatedKey on both drivers.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if strings.HasPrefix(dsn, sqlitePrefix) {
		path := strings.TrimPrefix(dsn, sqlitePrefix)
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, err
		}
		// every connection to :memory: is a fresh database
		if strings.Contains(path, ":memory:") {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, err
			}
			sqlDB.SetMaxOpenConns(1)
		}
		return db, nil
	}
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), cfg)
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Mint{},
		&domain.TokenAccount{},
		&domain.Ledger{},
		&domain.Project{},
		&domain.Purchase{},
		&domain.OffsetRequest{},
		&domain.Payment{},
	)
}

// UpdateVersioned applies updates to the row of model whose primary key column
// equals id, but only while its version is still the one the caller read. The
// version is bumped in the same statement. No matching row means another writer
// got there first and the caller gets domain.ErrWriteConflict. A uint64 value
// beyond the signed column range fails with domain.ErrMathOverflow before any write.
func UpdateVersioned(tx *gorm.DB, model interface{}, pkColumn string, id interface{}, version int64, updates map[string]interface{}) error {
	for _, v := range updates {
		if n, ok := v.(uint64); ok {
			if err := checked.Storable(n); err != nil {
				return err
			}
		}
	}
	updates["version"] = version + 1
	res := tx.Model(model).Where(pkColumn+" = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrWriteConflict
	}
	return nil
}

// IsDuplicate reports whether err is a unique-index violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
