package orchestrator

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const statsSchema = `
	CREATE TABLE IF NOT EXISTS agent_stats (
		agent_id TEXT PRIMARY KEY,
		success_rate REAL NOT NULL,
		avg_response_ms REAL NOT NULL,
		total_queries INTEGER NOT NULL,
		error_count INTEGER NOT NULL,
		last_used INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
`

// SQLiteStore implements StatsStore on a sqlite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("stats database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(statsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts one row per agent in a single transaction
func (s *SQLiteStore) Save(stats map[string]PerformanceStats) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for id, st := range stats {
		var lastUsed int64
		if !st.LastUsed.IsZero() {
			lastUsed = st.LastUsed.UnixMilli()
		}
		if _, err := tx.Exec(`
			INSERT INTO agent_stats (agent_id, success_rate, avg_response_ms, total_queries, error_count, last_used, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(agent_id) DO UPDATE SET
				success_rate = excluded.success_rate,
				avg_response_ms = excluded.avg_response_ms,
				total_queries = excluded.total_queries,
				error_count = excluded.error_count,
				last_used = excluded.last_used,
				updated_at = excluded.updated_at`,
			id, st.SuccessRate, st.AverageResponseTimeMs, st.TotalQueries, st.ErrorCount, lastUsed, now,
		); err != nil {
			return fmt.Errorf("failed to save stats for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stats: %w", err)
	}
	return nil
}

// Load reads every stored row
func (s *SQLiteStore) Load() (map[string]PerformanceStats, error) {
	rows, err := s.db.Query(`
		SELECT agent_id, success_rate, avg_response_ms, total_queries, error_count, last_used
		FROM agent_stats`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]PerformanceStats)
	for rows.Next() {
		var (
			id       string
			st       PerformanceStats
			lastUsed int64
		)
		if err := rows.Scan(&id, &st.SuccessRate, &st.AverageResponseTimeMs, &st.TotalQueries, &st.ErrorCount, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		if lastUsed > 0 {
			st.LastUsed = time.UnixMilli(lastUsed)
		}
		stats[id] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stats rows: %w", err)
	}
	return stats, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
