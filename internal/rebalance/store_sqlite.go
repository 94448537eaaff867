package rebalance

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	_ "github.com/mattn/go-sqlite3"

	"auction_rebalancer/internal/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rebalance_snapshots (
	portfolio  TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	checksum   BLOB NOT NULL,
	version    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS bid_records (
	id          TEXT PRIMARY KEY,
	portfolio   TEXT NOT NULL,
	data        TEXT NOT NULL,
	checksum    BLOB NOT NULL,
	executed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bid_records_portfolio
	ON bid_records (portfolio, executed_at);
`

// SQLiteStore implements core.IRebalanceStore on sqlite. Writes run through a
// retry pipeline because sqlite returns SQLITE_BUSY under writer contention.
type SQLiteStore struct {
	db       *sql.DB
	pipeline failsafe.Executor[any]
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable WAL mode for crash recovery
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	retryPolicy := retrypolicy.NewBuilder[any]().
		WithBackoff(50*time.Millisecond, 1*time.Second).
		WithMaxRetries(3).
		Build()

	return &SQLiteStore{
		db:       db,
		pipeline: failsafe.With[any](retryPolicy),
	}, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *core.RebalanceSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	checksum := sha256.Sum256(data)

	return s.pipeline.Run(func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		query := `INSERT OR REPLACE INTO rebalance_snapshots
			(portfolio, data, checksum, version, updated_at) VALUES (?, ?, ?, ?, ?)`
		_, err = tx.ExecContext(ctx, query,
			snapshot.Portfolio, string(data), checksum[:], snapshot.Version, time.Now().UnixNano())
		if err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, portfolio string) (*core.RebalanceSnapshot, error) {
	query := `SELECT data, checksum FROM rebalance_snapshots WHERE portfolio = ?`
	var data string
	var storedChecksum []byte
	err := s.db.QueryRowContext(ctx, query, portfolio).Scan(&data, &storedChecksum)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	computed := sha256.Sum256([]byte(data))
	if !bytes.Equal(storedChecksum, computed[:]) {
		return nil, fmt.Errorf("checksum verification failed: data corruption detected")
	}

	var snapshot core.RebalanceSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *SQLiteStore) AppendBid(ctx context.Context, record *core.BidRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal bid record: %w", err)
	}
	checksum := sha256.Sum256(data)

	return s.pipeline.Run(func() error {
		query := `INSERT INTO bid_records (id, portfolio, data, checksum, executed_at)
			VALUES (?, ?, ?, ?, ?)`
		_, err := s.db.ExecContext(ctx, query,
			record.ID, record.Portfolio, string(data), checksum[:], record.ExecutedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("failed to write bid record: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) ListBids(ctx context.Context, portfolio string, limit int) ([]*core.BidRecord, error) {
	query := `SELECT data, checksum FROM bid_records WHERE portfolio = ? ORDER BY executed_at ASC`
	args := []any{portfolio}
	if limit > 0 {
		// Keep the most recent records while preserving chronological order.
		query = `SELECT data, checksum FROM (
			SELECT data, checksum, executed_at FROM bid_records
			WHERE portfolio = ? ORDER BY executed_at DESC LIMIT ?
		) ORDER BY executed_at ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bid records: %w", err)
	}
	defer rows.Close()

	var records []*core.BidRecord
	for rows.Next() {
		var data string
		var storedChecksum []byte
		if err := rows.Scan(&data, &storedChecksum); err != nil {
			return nil, fmt.Errorf("failed to scan bid record: %w", err)
		}
		computed := sha256.Sum256([]byte(data))
		if !bytes.Equal(storedChecksum, computed[:]) {
			return nil, fmt.Errorf("checksum verification failed: data corruption detected")
		}
		var record core.BidRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bid record: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
