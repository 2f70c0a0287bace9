package persistence

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/venda/backend/internal/domain/catalog"
	"github.com/venda/backend/internal/domain/inventory"
	"github.com/venda/backend/internal/domain/ledger"
	"github.com/venda/backend/internal/domain/ordering"
	"github.com/venda/backend/internal/domain/token"
	"github.com/venda/backend/internal/infrastructure/config"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase creates a new database connection with the given configuration
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return newDatabaseWithLogLevel(cfg, logger.Silent)
}

// NewDatabaseWithLogger creates a new database connection with custom logger settings
func NewDatabaseWithLogger(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*Database, error) {
	return newDatabaseWithLogLevel(cfg, logLevel)
}

func newDatabaseWithLogLevel(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*Database, error) {
	dsn := cfg.DSN()
	gormLogger := logger.Default.LogMode(logLevel)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db}, nil
}

// Migrate creates or updates the schema for all persisted aggregates
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(
		&ordering.Order{},
		&ordering.OrderLine{},
		&token.TokenConfig{},
		&token.ReservableToken{},
		&token.TokenSale{},
		&catalog.Variant{},
		&inventory.InventoryItem{},
		&inventory.Movement{},
		&ledger.Transaction{},
	); err != nil {
		return err
	}

	// Composite indexes that span fields of embedded structs; gorm struct
	// tags cannot express these.
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_tenant_number ON orders (tenant_id, order_number)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tokens_tenant_code ON reservable_tokens (tenant_id, code)`,
		`CREATE INDEX IF NOT EXISTS idx_tokens_claim ON reservable_tokens (tenant_id, config_id, status, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_tenant_variant ON inventory_items (tenant_id, variant_id)`,
	}
	for _, stmt := range stmts {
		if err := d.DB.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Transaction executes a function within a database transaction
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}
