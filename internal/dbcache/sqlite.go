package dbcache

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// defaultMaxConns is the number of permitted active and idle
	// connections. SQLite wants a single writer, multiple readers.
	defaultMaxConns = 10

	// defaultConnMaxLifetime is the maximum amount of time a connection
	// can be reused for before it is closed.
	defaultConnMaxLifetime = 10 * time.Minute
)

// Config holds the arguments needed to open the export cache database.
type Config struct {
	// SkipMigrations, if true, assumes the schema already exists and
	// skips running migrations on start up.
	SkipMigrations bool

	// SkipMigrationDBBackup, if true, skips creating a backup of the
	// database before applying migrations.
	SkipMigrationDBBackup bool

	// DatabaseFileName is the full file path of the cache database file.
	DatabaseFileName string
}

// DefaultCachePath returns the default on-disk location of the export
// cache database.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".meshc", "exports.db"), nil
}

// Store is a sqlite3 backed export cache.
type Store struct {
	cfg *Config
	log *slog.Logger
	db  *BaseDB

	exec *TransactionExecutor[*txQueries]
}

// Open opens (and, unless skipped, migrates) the export cache database at
// the path given in cfg.
func Open(cfg *Config, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.DatabaseFileName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		cfg.DatabaseFileName,
	)

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	sqlDB.SetMaxOpenConns(defaultMaxConns)
	sqlDB.SetMaxIdleConns(defaultMaxConns)
	sqlDB.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := configurePragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to configure cache database: %w", err)
	}

	baseDB := NewBaseDB(sqlDB)

	s := &Store{
		cfg: cfg,
		log: log,
		db:  baseDB,
		exec: NewTransactionExecutor(
			baseDB,
			func(tx *sql.Tx) *txQueries { return &txQueries{q: tx} },
			log,
		),
	}

	if !cfg.SkipMigrations {
		if err := s.ExecuteMigrations(s.backupAndMigrate); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("error executing cache "+
				"migrations: %w", err)
		}
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// backupAndMigrate creates a database backup before migrating the schema
// forward, unless the database is already at the latest version.
func (s *Store) backupAndMigrate(mig *migrate.Migrate,
	currentDBVersion int, maxMigrationVersion uint) error {

	versionUpgradePending := currentDBVersion < int(maxMigrationVersion)
	if !versionUpgradePending {
		s.log.Info(
			"cache database already up-to-date, skipping "+
				"migration and backup",
			"current_db_version", currentDBVersion,
		)

		return nil
	}

	if !s.cfg.SkipMigrationDBBackup {
		s.log.Info("creating cache database backup before migrating")

		if err := backupSqliteDatabase(
			s.db.DB, s.cfg.DatabaseFileName, s.log,
		); err != nil {
			return err
		}
	}

	s.log.Info("applying migrations to cache database")

	return mig.Up()
}

// ExecuteMigrations runs the cache database's migrations up to target.
func (s *Store) ExecuteMigrations(target MigrationTarget,
	optFuncs ...MigrateOpt) error {

	opts := defaultMigrateOptions()
	for _, optFunc := range optFuncs {
		optFunc(opts)
	}

	driver, err := sqlite_migrate.WithInstance(s.db.DB, &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite migration driver: %w", err)
	}

	return applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite", target, opts, s.log,
	)
}

// configurePragmas sets additional SQLite pragmas for the cache database.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16384",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
