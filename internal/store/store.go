// Package store is the app-owned transactional table set: conversations,
// messages, drafts, scheduled messages, blacklist and contacts. It is the
// only component that mutates those tables; background jobs and the UI
// share one connection through the reference-counted handle.
package store

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// ErrClosed is returned when an operation runs against a handle whose
// reference count is zero.
var ErrClosed = errors.New("store: not acquired")

// ErrIDCollision is returned when a freshly minted id collides twice in
// a row. With a 2^50 id space this is treated as practically unreachable
// and fatal.
var ErrIDCollision = errors.New("store: id collision after retry")

// Op describes a single-row change handed to the Mirror.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Mirror receives best-effort notifications after every committed
// user-visible write so the remote copy can be kept current. Calls must
// never fail the local write; implementations log and move on.
type Mirror interface {
	MirrorConversation(op Op, c *Conversation)
	MirrorMessage(op Op, m *Message)
	MirrorDraft(op Op, d *Draft)
	MirrorScheduled(op Op, sm *ScheduledMessage)
}

// Store is a reference-counted handle over the SQLite database. The
// underlying connection opens on the 0->1 Acquire transition and closes
// on the 1->0 Release transition, so independent callers can share one
// connection lifetime without knowing about each other.
type Store struct {
	path   string
	mirror Mirror

	mu   sync.Mutex
	db   *sql.DB
	refs int
}

// New creates a handle for the database at path. No connection is opened
// until the first Acquire.
func New(path string) *Store {
	return &Store{path: path}
}

// SetMirror installs the remote mirror hook. A nil mirror disables
// single-change mirroring (no account linked, or tests).
func (s *Store) SetMirror(m Mirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

// Acquire increments the reference count, opening the connection and
// applying migrations on the 0->1 transition.
func (s *Store) Acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		db, err := openDB(s.path)
		if err != nil {
			return err
		}
		if err := migrateDB(db); err != nil {
			_ = db.Close()
			return err
		}
		s.db = db
	}
	s.refs++
	return nil
}

// Release decrements the reference count, closing the connection on the
// 1->0 transition. Releasing an unacquired handle is an error.
func (s *Store) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return ErrClosed
	}
	s.refs--
	if s.refs == 0 {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 || s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// reset force-closes and reopens the connection after it reported itself
// unusable mid-operation. The reference count is preserved.
func (s *Store) reset() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return nil, ErrClosed
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	db, err := openDB(s.path)
	if err != nil {
		s.db = nil
		return nil, err
	}
	s.db = db
	return db, nil
}

// isConnErr reports whether err means the connection died underneath the
// caller, as opposed to a statement-level failure.
func isConnErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrConstraint &&
		(se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			se.ExtendedCode == sqlite3.ErrConstraintUnique)
}

// Exec runs a statement, retrying exactly once on a dead connection.
func (s *Store) Exec(query string, args ...any) (sql.Result, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	res, err := db.Exec(query, args...)
	if err != nil && isConnErr(err) {
		db, rerr := s.reset()
		if rerr != nil {
			return nil, err
		}
		return db.Exec(query, args...)
	}
	return res, err
}

// Query runs a query, retrying exactly once on a dead connection.
func (s *Store) Query(query string, args ...any) (*sql.Rows, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(query, args...)
	if err != nil && isConnErr(err) {
		db, rerr := s.reset()
		if rerr != nil {
			return nil, err
		}
		return db.Query(query, args...)
	}
	return rows, err
}

// QueryRow runs a single-row query. Connection errors surface at Scan
// and are not retried; every write path goes through Exec.
func (s *Store) QueryRow(query string, args ...any) (*sql.Row, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	return db.QueryRow(query, args...), nil
}

// Begin starts a transaction on the shared connection.
func (s *Store) Begin() (*sql.Tx, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.Begin()
	if err != nil && isConnErr(err) {
		db, rerr := s.reset()
		if rerr != nil {
			return nil, err
		}
		return db.Begin()
	}
	return tx, err
}

func (s *Store) mirrorHook() Mirror {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mirror
}

func (s *Store) mirrorConversation(op Op, c *Conversation) {
	if m := s.mirrorHook(); m != nil {
		m.MirrorConversation(op, c)
	}
}

func (s *Store) mirrorMessage(op Op, m *Message) {
	if h := s.mirrorHook(); h != nil {
		h.MirrorMessage(op, m)
	}
}

func (s *Store) mirrorDraft(op Op, d *Draft) {
	if m := s.mirrorHook(); m != nil {
		m.MirrorDraft(op, d)
	}
}

func (s *Store) mirrorScheduled(op Op, sm *ScheduledMessage) {
	if m := s.mirrorHook(); m != nil {
		m.MirrorScheduled(op, sm)
	}
}
