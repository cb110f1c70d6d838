package ackstore

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists acks to SQLite, one row per (sync, substream).
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path.
// Use ":memory:" for a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each new connection to ":memory:" would see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS acks (
			sync_id TEXT NOT NULL,
			substream TEXT NOT NULL,
			checkpoint_id INTEGER NOT NULL,
			epoch INTEGER NOT NULL,
			arrival INTEGER NOT NULL,
			record_count INTEGER NOT NULL,
			acked_at TEXT NOT NULL,
			payload_size INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (sync_id, substream)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ack Ack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	data, err := ack.Marshal()
	if err != nil {
		return fmt.Errorf("encode ack: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO acks (sync_id, substream, checkpoint_id, epoch, arrival, record_count, acked_at, payload_size, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sync_id, substream) DO UPDATE SET
			checkpoint_id = excluded.checkpoint_id,
			epoch = excluded.epoch,
			arrival = excluded.arrival,
			record_count = excluded.record_count,
			acked_at = excluded.acked_at,
			payload_size = excluded.payload_size,
			data = excluded.data
		WHERE excluded.epoch > acks.epoch
			OR (excluded.epoch = acks.epoch AND excluded.arrival > acks.arrival)
	`, ack.SyncID, ack.Substream, int64(ack.CheckpointID), ack.Epoch, int64(ack.Arrival), int64(ack.RecordCount),
		ack.AckedAt.UTC().Format(time.RFC3339Nano), len(ack.Payload), data)
	if err != nil {
		return fmt.Errorf("save ack: %w", err)
	}
	return nil
}

// Latest implements Store.
func (s *SQLiteStore) Latest(syncID, substream string) (Ack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Ack{}, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM acks
		WHERE sync_id = ? AND substream = ?
	`, syncID, substream).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Ack{}, ErrNotFound
	}
	if err != nil {
		return Ack{}, fmt.Errorf("load ack: %w", err)
	}
	return Unmarshal(data)
}

// List implements Store.
func (s *SQLiteStore) List(syncID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT substream, checkpoint_id, epoch, arrival, record_count, acked_at, payload_size
		FROM acks
		WHERE sync_id = ?
		ORDER BY epoch, arrival
	`, syncID)
	if err != nil {
		return nil, fmt.Errorf("list acks: %w", err)
	}
	defer rows.Close()

	infos := make([]Info, 0)
	for rows.Next() {
		var (
			info                               Info
			checkpointID, arrival, recordCount int64
			ackedAt                            string
		)
		if err := rows.Scan(&info.Substream, &checkpointID, &info.Epoch, &arrival, &recordCount, &ackedAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan ack info: %w", err)
		}
		info.SyncID = syncID
		info.CheckpointID = uint64(checkpointID)
		info.Arrival = uint64(arrival)
		info.RecordCount = uint64(recordCount)
		info.AckedAt, _ = time.Parse(time.RFC3339Nano, ackedAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate acks: %w", err)
	}
	return infos, nil
}

// DeleteSync implements Store.
func (s *SQLiteStore) DeleteSync(syncID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM acks WHERE sync_id = ?`, syncID); err != nil {
		return fmt.Errorf("delete sync acks: %w", err)
	}
	return nil
}

// Close implements Store. Calling it more than once is safe.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
