package persistence

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"trendpulse/internal/logger"
)

// Migration files are named NNN_name.up.sql with an optional NNN_name.down.sql.
// The SQL is written for Postgres and rewritten when the driver is SQLite.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

var (
	// ErrNothingApplied is returned by Down when no migration is recorded
	ErrNothingApplied = errors.New("no applied migrations")

	// ErrIrreversible is returned by Down when the last migration has no down script
	ErrIrreversible = errors.New("migration has no down script")
)

// Migration is one versioned schema change
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// LoadMigrations reads migrations from a directory of NNN_name.up.sql and
// NNN_name.down.sql files, ordered by version.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationName.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("migration file %q does not match NNN_name.up.sql", entry.Name())
		}
		version, _ := strconv.Atoi(parts[1])
		content, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		} else if m.Name != parts[2] {
			return nil, fmt.Errorf("migration %03d has two names: %s and %s", version, m.Name, parts[2])
		}
		if parts[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %03d_%s has no up script", m.Version, m.Name)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Migrator applies and reverts migrations, recording them in schema_migrations
type Migrator struct {
	db         *SQLDB
	migrations []Migration
	log        *slog.Logger
	now        func() time.Time
}

// NewMigrator creates a migrator over the embedded migrations
func NewMigrator(db *SQLDB) (*Migrator, error) {
	migrations, err := LoadMigrations(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	return &Migrator{
		db:         db,
		migrations: migrations,
		log:        logger.With("migrations"),
		now:        time.Now,
	}, nil
}

// Up applies every pending migration in version order, each in its own
// transaction, and returns how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, migration := range m.migrations {
		if _, done := applied[migration.Version]; done {
			continue
		}
		m.log.Info("Applying migration", "version", migration.Version, "name", migration.Name, "driver", m.db.Driver())
		err := m.runScript(ctx, migration.Up, func(tx sqlx.ExtContext) error {
			_, err := exec(ctx, tx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				migration.Version, migration.Name, m.now().UTC())
			return err
		})
		if err != nil {
			return count, fmt.Errorf("migration %03d_%s failed: %w", migration.Version, migration.Name, err)
		}
		count++
	}

	if count > 0 {
		m.log.Info("Migrations applied", "count", count)
	}
	return count, nil
}

// Down reverts the most recently applied migration with its down script
func (m *Migrator) Down(ctx context.Context) (Migration, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return Migration{}, err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if _, done := applied[migration.Version]; !done {
			continue
		}
		if strings.TrimSpace(migration.Down) == "" {
			return migration, fmt.Errorf("%w: %03d_%s", ErrIrreversible, migration.Version, migration.Name)
		}
		m.log.Warn("Reverting migration", "version", migration.Version, "name", migration.Name)
		err := m.runScript(ctx, migration.Down, func(tx sqlx.ExtContext) error {
			_, err := exec(ctx, tx, `DELETE FROM schema_migrations WHERE version = ?`, migration.Version)
			return err
		})
		if err != nil {
			return migration, fmt.Errorf("revert %03d_%s failed: %w", migration.Version, migration.Name, err)
		}
		return migration, nil
	}
	return Migration{}, ErrNothingApplied
}

// Status lists every known migration with its applied time
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, len(m.migrations))
	for i, migration := range m.migrations {
		at, ok := applied[migration.Version]
		status[i] = MigrationStatus{
			Version:   migration.Version,
			Name:      migration.Name,
			Applied:   ok,
			AppliedAt: at,
		}
	}
	return status, nil
}

// applied ensures the tracking table exists and returns applied versions
func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	_, err := m.db.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var rows []struct {
		Version   int       `db:"version"`
		AppliedAt time.Time `db:"applied_at"`
	}
	if err := selectInto(ctx, m.db.db, &rows, `SELECT version, applied_at FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	applied := make(map[int]time.Time, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.AppliedAt
	}
	return applied, nil
}

// runScript runs a migration script and its bookkeeping in one transaction
func (m *Migrator) runScript(ctx context.Context, script string, record func(sqlx.ExtContext) error) error {
	tx, err := m.db.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{script}
	if m.db.Driver() == "sqlite3" {
		statements = sqliteStatements(script)
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if err := record(tx); err != nil {
		return err
	}
	return tx.Commit()
}
