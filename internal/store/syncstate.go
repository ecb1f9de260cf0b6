package store

import (
	"database/sql"
	"strconv"
	"time"
)

// Keys persisted in sync_state.
const (
	// KeyLastNativeCheck is the reconciliation watermark: native
	// messages at or below it are known to be merged already.
	KeyLastNativeCheck = "last_native_check"
	// KeyImportDone marks a completed initial import.
	KeyImportDone = "import_done"
)

// SetSyncValue persists a sync checkpoint value.
func (s *Store) SetSyncValue(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := s.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// SyncValue retrieves a sync checkpoint value, empty if unset.
func (s *Store) SyncValue(key string) (string, error) {
	row, err := s.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key)
	if err != nil {
		return "", err
	}
	var value string
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Watermark returns the persisted reconciliation watermark, zero if the
// job has never completed a pass.
func (s *Store) Watermark() (int64, error) {
	v, err := s.SyncValue(KeyLastNativeCheck)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// SetWatermark advances the reconciliation watermark.
func (s *Store) SetWatermark(ts int64) error {
	return s.SetSyncValue(KeyLastNativeCheck, strconv.FormatInt(ts, 10))
}
