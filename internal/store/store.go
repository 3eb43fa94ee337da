// Package store is the local-first storage of parc-prep files and their logs.
//
// Every mutation runs in one gorm transaction together with the stats
// rollup update and the file's dirty marker, so readers never observe a log
// row without its stats, or the reverse. Writers on the same file are
// serialized in-process; writers on different files proceed independently.
package store

import (
	"sync"
	"time"

	"gorm.io/gorm"
)

// ChangeKind names a committed mutation
type ChangeKind string

const (
	ChangeFileInserted ChangeKind = "FILE_INSERTED"
	ChangeFileUpdated  ChangeKind = "FILE_UPDATED"
	ChangeLogInserted  ChangeKind = "LOG_INSERTED"
	ChangeLogUpdated   ChangeKind = "LOG_UPDATED"
	ChangeFileSynced   ChangeKind = "FILE_SYNCED"
	ChangeSyncFailed   ChangeKind = "FILE_SYNC_FAILED"
)

// ChangeEvent is emitted after a transaction commits
type ChangeEvent struct {
	Kind       ChangeKind `json:"type"`
	ParcPrepID string     `json:"parcPrepId"`
	LogID      string     `json:"logId,omitempty"`
	At         time.Time  `json:"at"`
}

// Notifier receives committed changes. Implementations must not block.
type Notifier interface {
	Notify(ChangeEvent)
}

// Store is the Local Store. It does not own the handle it is given.
type Store struct {
	db       *gorm.DB
	locks    *keyedMutex
	notifier Notifier

	// defaultMu serializes default changes across files; taken after the file lock
	defaultMu sync.Mutex
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithNotifier registers a change listener
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the time source used for defaulted timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over an opened handle
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		locks: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) notify(kind ChangeKind, parcPrepID, logID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ChangeEvent{Kind: kind, ParcPrepID: parcPrepID, LogID: logID, At: s.now()})
}

// keyedMutex hands out one mutex per file id. Files are never deleted, so
// the map only grows with the number of files on the device.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock blocks until key is free and returns the matching unlock
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
