package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"trendpulse/internal/config"
	"trendpulse/internal/persistence"
)

// FileName is the SQLite database file created inside the data directory.
const FileName = "trendpulse.db"

// Store is the local SQLite database. It implements persistence.Database.
type Store struct {
	*persistence.SQLDB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)
	db, err := sqlx.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		SQLDB: persistence.NewSQLDB(db),
		path:  dbPath,
	}

	if err := store.initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize brings the schema up to date through the shared migrations
func (s *Store) initialize(ctx context.Context) error {
	migrator, err := persistence.NewMigrator(s.SQLDB)
	if err != nil {
		return err
	}
	_, err = migrator.Up(ctx)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Open returns the configured database. Postgres is used when the driver says
// so, otherwise a local SQLite store under dataDir.
func Open(cfg config.Database, dataDir string) (persistence.Database, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		return persistence.NewPostgresDB(cfg)
	case "", "sqlite", "sqlite3":
		return NewStore(dataDir)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// FileStats represents on-disk statistics of the store
type FileStats struct {
	Records  int
	History  int
	Cards    int
	Runs     int
	Size     int64
	Modified time.Time
}

// FileStats returns row counts and the database file size.
func (s *Store) FileStats(ctx context.Context) (*FileStats, error) {
	stats := &FileStats{}

	queries := map[string]*int{
		"SELECT COUNT(*) FROM trend_records": &stats.Records,
		"SELECT COUNT(*) FROM trend_history": &stats.History,
		"SELECT COUNT(*) FROM pitch_cards":   &stats.Cards,
		"SELECT COUNT(*) FROM pipeline_runs": &stats.Runs,
	}
	for query, target := range queries {
		if err := s.DB().GetContext(ctx, target, query); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.Size = fileInfo.Size()
		stats.Modified = fileInfo.ModTime()
	}
	return stats, nil
}

// Vacuum reclaims space after cleanup
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.DB().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}
