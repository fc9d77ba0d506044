package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"trendpulse/internal/core"
)

// RecordID derives the stable record id of a fingerprint.
func RecordID(fingerprint string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("trendpulse:trend:"+fingerprint)).String()
}

// SQLDB implements Database over any sqlx driver. Queries use ? placeholders
// and are rebound for the driver.
type SQLDB struct {
	db *sqlx.DB
}

// NewSQLDB wraps an open connection.
func NewSQLDB(db *sqlx.DB) *SQLDB {
	return &SQLDB{db: db}
}

// DB exposes the underlying connection.
func (s *SQLDB) DB() *sqlx.DB { return s.db }

// Driver returns the driver name.
func (s *SQLDB) Driver() string { return s.db.DriverName() }

func (s *SQLDB) Trends() TrendRepository         { return &trendRepo{ext: s.db} }
func (s *SQLDB) Signals() SignalRepository       { return &signalRepo{ext: s.db} }
func (s *SQLDB) PitchCards() PitchCardRepository { return &pitchCardRepo{ext: s.db} }
func (s *SQLDB) Runs() RunRepository             { return &runRepo{ext: s.db} }

func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlTx{tx: tx}, nil
}

var lastUpdatedQueries = map[string]string{
	ModuleTrends:       `SELECT updated_at FROM trend_records ORDER BY updated_at DESC LIMIT 1`,
	ModuleArtistSpikes: `SELECT collected_at FROM artist_spikes ORDER BY collected_at DESC LIMIT 1`,
	ModuleStyleSignals: `SELECT collected_at FROM style_signals ORDER BY collected_at DESC LIMIT 1`,
	ModulePitchCards:   `SELECT generated_at FROM pitch_cards ORDER BY generated_at DESC LIMIT 1`,
}

func (s *SQLDB) LastUpdated(ctx context.Context, module string) (time.Time, error) {
	query, ok := lastUpdatedQueries[module]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown module %q", module)
	}
	var ts time.Time
	err := s.db.QueryRowxContext(ctx, query).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s freshness: %w", module, err)
	}
	return ts.UTC(), nil
}

// sqlTx implements Transaction
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) Commit() error                   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error                 { return t.tx.Rollback() }
func (t *sqlTx) Trends() TrendRepository         { return &trendRepo{ext: t.tx} }
func (t *sqlTx) Signals() SignalRepository       { return &signalRepo{ext: t.tx} }
func (t *sqlTx) PitchCards() PitchCardRepository { return &pitchCardRepo{ext: t.tx} }
func (t *sqlTx) Runs() RunRepository             { return &runRepo{ext: t.tx} }

func exec(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return ext.ExecContext(ctx, ext.Rebind(query), args...)
}

func selectInto(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func getInto(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, ext, dest, ext.Rebind(query), args...)
}

// inTx runs fn inside a transaction unless ext already is one.
func inTx(ctx context.Context, ext sqlx.ExtContext, fn func(sqlx.ExtContext) error) error {
	db, ok := ext.(*sqlx.DB)
	if !ok {
		return fn(ext)
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// trendRepo implements TrendRepository
type trendRepo struct {
	ext sqlx.ExtContext
}

type trendRow struct {
	ID            string    `db:"id"`
	Fingerprint   string    `db:"fingerprint"`
	RunID         string    `db:"run_id"`
	TrendJSON     string    `db:"trend_json"`
	BreakdownJSON string    `db:"breakdown_json"`
	SummaryJSON   string    `db:"summary_json"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

const trendColumns = `id, fingerprint, run_id, trend_json, breakdown_json, summary_json, created_at, updated_at`

func (row trendRow) record() (core.TrendRecord, error) {
	r := core.TrendRecord{
		ID:          row.ID,
		Fingerprint: row.Fingerprint,
		RunID:       row.RunID,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.TrendJSON), &r.Trend); err != nil {
		return r, fmt.Errorf("failed to decode trend %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.BreakdownJSON), &r.Breakdown); err != nil {
		return r, fmt.Errorf("failed to decode breakdown %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.SummaryJSON), &r.Summary); err != nil {
		return r, fmt.Errorf("failed to decode summary %s: %w", row.ID, err)
	}
	return r, nil
}

func (r *trendRepo) Upsert(ctx context.Context, record *core.TrendRecord) error {
	if record.Fingerprint == "" {
		record.Fingerprint = record.Trend.Fingerprint()
	}
	record.ID = RecordID(record.Fingerprint)
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}

	trendJSON, err := json.Marshal(record.Trend)
	if err != nil {
		return fmt.Errorf("failed to encode trend: %w", err)
	}
	breakdownJSON, err := json.Marshal(record.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}
	summaryJSON, err := json.Marshal(record.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	query := `
		INSERT INTO trend_records (
			id, fingerprint, run_id, market, topic, title, total_score, risk_score,
			risk_level, action, priority, trend_json, breakdown_json, summary_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET
			run_id = excluded.run_id,
			title = excluded.title,
			total_score = excluded.total_score,
			risk_score = excluded.risk_score,
			risk_level = excluded.risk_level,
			action = excluded.action,
			priority = excluded.priority,
			trend_json = excluded.trend_json,
			breakdown_json = excluded.breakdown_json,
			summary_json = excluded.summary_json,
			updated_at = excluded.updated_at
	`
	_, err = exec(ctx, r.ext, query,
		record.ID, record.Fingerprint, record.RunID,
		strings.ToUpper(record.Trend.Market), record.Trend.Topic, record.Trend.Title,
		record.Breakdown.Total, record.Breakdown.Risk,
		string(record.Breakdown.RiskLevel), string(record.Breakdown.Action), string(record.Breakdown.Priority),
		string(trendJSON), string(breakdownJSON), string(summaryJSON),
		record.CreatedAt.UTC(), record.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trend %s: %w", record.Fingerprint, err)
	}

	var created time.Time
	if err := getInto(ctx, r.ext, &created, `SELECT created_at FROM trend_records WHERE fingerprint = ?`, record.Fingerprint); err != nil {
		return fmt.Errorf("failed to read back trend %s: %w", record.Fingerprint, err)
	}
	record.CreatedAt = created.UTC()
	return nil
}

func (r *trendRepo) Query(ctx context.Context, filter TrendFilter) ([]core.TrendRecord, error) {
	var where []string
	var args []any
	if filter.Market != "" {
		where = append(where, "market = ?")
		args = append(args, strings.ToUpper(filter.Market))
	}
	if filter.Topic != "" {
		where = append(where, "topic = ?")
		args = append(args, filter.Topic)
	}
	if filter.RiskLevel != "" {
		where = append(where, "risk_level = ?")
		args = append(args, string(filter.RiskLevel))
	}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.MinScore > 0 {
		where = append(where, "total_score >= ?")
		args = append(args, filter.MinScore)
	}

	query := `SELECT ` + trendColumns + ` FROM trend_records`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY total_score DESC, fingerprint ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	var rows []trendRow
	if err := selectInto(ctx, r.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	records := make([]core.TrendRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *trendRepo) GetByID(ctx context.Context, id string) (*core.TrendRecord, error) {
	var row trendRow
	err := getInto(ctx, r.ext, &row, `SELECT `+trendColumns+` FROM trend_records WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trend %s: %w", id, err)
	}
	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *trendRepo) AppendHistory(ctx context.Context, fingerprint string, snap core.TrendSnapshot) error {
	query := `
		INSERT INTO trend_history (
			fingerprint, market, topic, run_id, recorded_at, total_score,
			risk_score, risk_level, action, magnitude
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := exec(ctx, r.ext, query,
		fingerprint, strings.ToUpper(snap.Market), snap.Topic, snap.RunID, snap.RecordedAt.UTC(),
		snap.Total, snap.RiskScore, string(snap.RiskLevel), string(snap.Action), snap.Magnitude,
	)
	if err != nil {
		return fmt.Errorf("failed to append history for %s: %w", fingerprint, err)
	}
	return nil
}

func (r *trendRepo) History(ctx context.Context, fingerprint string, limit int) ([]core.TrendSnapshot, error) {
	query := `
		SELECT fingerprint, market, topic, run_id, recorded_at, total_score,
			risk_score, risk_level, action, magnitude
		FROM trend_history WHERE fingerprint = ? ORDER BY recorded_at ASC, id ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	var snaps []core.TrendSnapshot
	if err := selectInto(ctx, r.ext, &snaps, query, fingerprint); err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", fingerprint, err)
	}
	for i := range snaps {
		snaps[i].RecordedAt = snaps[i].RecordedAt.UTC()
	}
	return snaps, nil
}

func (r *trendRepo) Baseline(ctx context.Context, market, topic string, since time.Time) (float64, error) {
	var avg sql.NullFloat64
	err := getInto(ctx, r.ext, &avg,
		`SELECT AVG(magnitude) FROM trend_history WHERE market = ? AND topic = ? AND recorded_at >= ?`,
		strings.ToUpper(market), topic, since.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to compute baseline for %s/%s: %w", market, topic, err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func (r *trendRepo) Stats(ctx context.Context) (*TrendStats, error) {
	stats := &TrendStats{}
	groups := []struct {
		column string
		dest   *map[string]int
	}{
		{"priority", &stats.ByPriority},
		{"risk_level", &stats.ByRisk},
		{"action", &stats.ByAction},
		{"market", &stats.ByMarket},
		{"topic", &stats.ByTopic},
	}
	for _, g := range groups {
		var rows []struct {
			Key   string `db:"bucket"`
			Count int    `db:"n"`
		}
		query := fmt.Sprintf(`SELECT %s AS bucket, COUNT(*) AS n FROM trend_records GROUP BY %s`, g.column, g.column)
		if err := selectInto(ctx, r.ext, &rows, query); err != nil {
			return nil, fmt.Errorf("failed to aggregate trends by %s: %w", g.column, err)
		}
		m := make(map[string]int, len(rows))
		for _, row := range rows {
			m[row.Key] = row.Count
		}
		*g.dest = m
	}
	for _, n := range stats.ByRisk {
		stats.Total += n
	}
	return stats, nil
}

func (r *trendRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := inTx(ctx, r.ext, func(ext sqlx.ExtContext) error {
		res, err := exec(ctx, ext, `DELETE FROM trend_records WHERE updated_at < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to delete old trends: %w", err)
		}
		deleted, _ = res.RowsAffected()
		if _, err := exec(ctx, ext, `DELETE FROM trend_history WHERE recorded_at < ?`, cutoff.UTC()); err != nil {
			return fmt.Errorf("failed to delete old history: %w", err)
		}
		return nil
	})
	return deleted, err
}

// signalRepo implements SignalRepository
type signalRepo struct {
	ext sqlx.ExtContext
}

func (r *signalRepo) SaveArtistSpikes(ctx context.Context, spikes []core.ArtistSpike) error {
	return inTx(ctx, r.ext, func(ext sqlx.ExtContext) error {
		for _, s := range spikes {
			payload, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to encode artist spike %s: %w", s.ID, err)
			}
			_, err = exec(ctx, ext, `
				INSERT INTO artist_spikes (id, artist_name, market, spike_score, collected_at, payload_json)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					spike_score = excluded.spike_score,
					collected_at = excluded.collected_at,
					payload_json = excluded.payload_json
			`, s.ID, s.ArtistName, strings.ToUpper(s.Market), s.SpikeScore, s.CollectedAt.UTC(), string(payload))
			if err != nil {
				return fmt.Errorf("failed to save artist spike %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *signalRepo) SaveStyleSignals(ctx context.Context, signals []core.StyleSignal) error {
	return inTx(ctx, r.ext, func(ext sqlx.ExtContext) error {
		for _, s := range signals {
			payload, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to encode style signal %s: %w", s.ID, err)
			}
			_, err = exec(ctx, ext, `
				INSERT INTO style_signals (id, headline, markets, magnitude, published_at, collected_at, payload_json)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					magnitude = excluded.magnitude,
					collected_at = excluded.collected_at,
					payload_json = excluded.payload_json
			`, s.ID, s.Headline, strings.Join(s.Markets, ","), s.Magnitude, s.PublishedAt.UTC(), s.CollectedAt.UTC(), string(payload))
			if err != nil {
				return fmt.Errorf("failed to save style signal %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

func (r *signalRepo) ArtistSpikes(ctx context.Context, since time.Time) ([]core.ArtistSpike, error) {
	var payloads []string
	err := selectInto(ctx, r.ext, &payloads,
		`SELECT payload_json FROM artist_spikes WHERE collected_at >= ? ORDER BY spike_score DESC, id ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load artist spikes: %w", err)
	}
	spikes := make([]core.ArtistSpike, 0, len(payloads))
	for _, p := range payloads {
		var s core.ArtistSpike
		if err := json.Unmarshal([]byte(p), &s); err != nil {
			return nil, fmt.Errorf("failed to decode artist spike: %w", err)
		}
		spikes = append(spikes, s)
	}
	return spikes, nil
}

func (r *signalRepo) StyleSignals(ctx context.Context, since time.Time) ([]core.StyleSignal, error) {
	var payloads []string
	err := selectInto(ctx, r.ext, &payloads,
		`SELECT payload_json FROM style_signals WHERE collected_at >= ? ORDER BY magnitude DESC, id ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load style signals: %w", err)
	}
	signals := make([]core.StyleSignal, 0, len(payloads))
	for _, p := range payloads {
		var s core.StyleSignal
		if err := json.Unmarshal([]byte(p), &s); err != nil {
			return nil, fmt.Errorf("failed to decode style signal: %w", err)
		}
		signals = append(signals, s)
	}
	return signals, nil
}

func (r *signalRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := inTx(ctx, r.ext, func(ext sqlx.ExtContext) error {
		for _, table := range []string{"artist_spikes", "style_signals"} {
			res, err := exec(ctx, ext, `DELETE FROM `+table+` WHERE collected_at < ?`, cutoff.UTC())
			if err != nil {
				return fmt.Errorf("failed to delete old %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	return deleted, err
}

// pitchCardRepo implements PitchCardRepository
type pitchCardRepo struct {
	ext sqlx.ExtContext
}

func (r *pitchCardRepo) ReplaceAll(ctx context.Context, cards []core.PitchCard) error {
	return inTx(ctx, r.ext, func(ext sqlx.ExtContext) error {
		if _, err := exec(ctx, ext, `DELETE FROM pitch_cards`); err != nil {
			return fmt.Errorf("failed to clear pitch cards: %w", err)
		}
		for _, c := range cards {
			payload, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("failed to encode pitch card %s: %w", c.ID, err)
			}
			_, err = exec(ctx, ext, `
				INSERT INTO pitch_cards (id, market, confidence, conf_rank, generated_at, expires_at, payload_json)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, c.ID, c.Market, string(c.Confidence), c.Confidence.Rank(), c.GeneratedAt.UTC(), c.ExpiresAt.UTC(), string(payload))
			if err != nil {
				return fmt.Errorf("failed to save pitch card %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (r *pitchCardRepo) List(ctx context.Context, market string) ([]core.PitchCard, error) {
	query := `SELECT payload_json FROM pitch_cards`
	var args []any
	if market != "" {
		query += ` WHERE market = ?`
		args = append(args, strings.ToUpper(market))
	}
	query += ` ORDER BY market ASC, conf_rank DESC, id ASC`

	var payloads []string
	if err := selectInto(ctx, r.ext, &payloads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pitch cards: %w", err)
	}
	cards := make([]core.PitchCard, 0, len(payloads))
	for _, p := range payloads {
		var c core.PitchCard
		if err := json.Unmarshal([]byte(p), &c); err != nil {
			return nil, fmt.Errorf("failed to decode pitch card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// runRepo implements RunRepository
type runRepo struct {
	ext sqlx.ExtContext
}

func (r *runRepo) Save(ctx context.Context, run *core.RunSummary) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run %s: %w", run.RunID, err)
	}
	_, err = exec(ctx, r.ext, `
		INSERT INTO pipeline_runs (run_id, status, started_at, finished_at, payload_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			payload_json = excluded.payload_json
	`, run.RunID, string(run.Status), run.StartedAt.UTC(), run.FinishedAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

func (r *runRepo) Latest(ctx context.Context) (*core.RunSummary, error) {
	runs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

func (r *runRepo) List(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var payloads []string
	query := fmt.Sprintf(`SELECT payload_json FROM pipeline_runs ORDER BY started_at DESC, run_id DESC LIMIT %d`, limit)
	if err := selectInto(ctx, r.ext, &payloads, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	runs := make([]core.RunSummary, 0, len(payloads))
	for _, p := range payloads {
		var run core.RunSummary
		if err := json.Unmarshal([]byte(p), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
