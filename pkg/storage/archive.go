package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/analyzer/pkg/metrics"
	"github.com/perfwatch/analyzer/pkg/optimizer"
)

// Archive is the durable SQLite store behind the in-memory engine state.
// The ring store stays authoritative within a process; the archive
// serves restarts and offline analysis.
type Archive struct {
	db     *sql.DB
	dbPath string
}

// NewArchive opens (or creates) the archive database and runs the
// schema migration.
func NewArchive(dbPath string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Archive{db: db, dbPath: dbPath}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("Analysis archive opened")
	return a, nil
}

func (a *Archive) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp);

	CREATE TABLE IF NOT EXISTS analyses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		overall_score REAL NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_timestamp ON analyses(timestamp);

	CREATE TABLE IF NOT EXISTS optimizations (
		id TEXT PRIMARY KEY,
		recommendation_id TEXT NOT NULL,
		implemented_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		cost REAL NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_optimizations_implemented_at ON optimizations(implemented_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

// SaveSample archives one metric sample.
func (a *Archive) SaveSample(ctx context.Context, sample metrics.Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO samples (timestamp, payload) VALUES (?, ?)`,
		sample.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// SaveAnalysis archives one assembled analysis snapshot. The snapshot is
// stored as opaque JSON so the schema does not chase the aggregate.
func (a *Archive) SaveAnalysis(ctx context.Context, timestamp time.Time, overallScore float64, analysis interface{}) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO analyses (timestamp, overall_score, payload) VALUES (?, ?, ?)`,
		timestamp, overallScore, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// SaveOptimization archives one implemented optimization record.
func (a *Archive) SaveOptimization(ctx context.Context, record optimizer.ImplementedOptimization) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal optimization: %w", err)
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO optimizations (id, recommendation_id, implemented_at, status, cost, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.RecommendationID, record.ImplementedAt, string(record.Status), record.Cost, string(payload))
	if err != nil {
		return fmt.Errorf("failed to insert optimization: %w", err)
	}
	return nil
}

// LoadOptimizations returns archived optimization records, oldest first,
// so ROI reporting survives restarts.
func (a *Archive) LoadOptimizations(ctx context.Context) ([]optimizer.ImplementedOptimization, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT payload FROM optimizations ORDER BY implemented_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimizations: %w", err)
	}
	defer rows.Close()

	var records []optimizer.ImplementedOptimization
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan optimization: %w", err)
		}
		var record optimizer.ImplementedOptimization
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable optimization record")
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// LoadRecentSamples returns archived samples newer than the cutoff,
// oldest first, for seeding the ring store after a restart.
func (a *Archive) LoadRecentSamples(ctx context.Context, cutoff time.Time) ([]metrics.Sample, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT payload FROM samples WHERE timestamp >= ? ORDER BY timestamp ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []metrics.Sample
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		var sample metrics.Sample
		if err := json.Unmarshal([]byte(payload), &sample); err != nil {
			log.Warn().Err(err).Msg("Skipping undecodable sample record")
			continue
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return samples, nil
}

// Prune deletes samples and analyses older than the retention cutoff.
// Optimization history is append-only and never pruned.
func (a *Archive) Prune(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	res, err := a.db.ExecContext(ctx, `DELETE FROM samples WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune samples: %w", err)
	}
	samplesDeleted, _ := res.RowsAffected()

	res, err = a.db.ExecContext(ctx, `DELETE FROM analyses WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune analyses: %w", err)
	}
	analysesDeleted, _ := res.RowsAffected()

	if samplesDeleted > 0 || analysesDeleted > 0 {
		log.Debug().
			Int64("samples_deleted", samplesDeleted).
			Int64("analyses_deleted", analysesDeleted).
			Time("cutoff", cutoff).
			Msg("Archive retention applied")
	}
	return nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
