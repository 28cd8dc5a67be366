// Package ledger implements the C8 de-duplication ledger: a process-local,
// mutex-guarded set of already-processed input paths, with optional
// Badger-backed disk persistence (spec §4.8).
package ledger

import (
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

var ledgerKeyPrefix = []byte("recompress:ledger:")

// Ledger is a thread-safe set of canonicalized input paths.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]struct{}
	db      *badger.DB
}

// New creates an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]struct{})}
}

// Open creates a ledger backed by a Badger database at dbPath, loading any
// previously persisted entries (§4.8's optional disk persistence).
func Open(dbPath string) (*Ledger, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	l := &Ledger{entries: make(map[string]struct{}), db: db}
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(ledgerKeyPrefix); it.ValidForPrefix(ledgerKeyPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			l.entries[string(key[len(ledgerKeyPrefix):])] = struct{}{}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close releases the underlying Badger database, if any.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// canonicalKey resolves symlinks for a stable ledger key, falling back to
// the display path (cleaned) when canonicalization fails.
func canonicalKey(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return resolved
}

// Mark records path as processed.
func (l *Ledger) Mark(path string) error {
	key := canonicalKey(path)

	l.mu.Lock()
	l.entries[key] = struct{}{}
	l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(append([]byte{}, ledgerKeyPrefix...), key...), nil)
	})
}

// Contains reports whether path has already been marked.
func (l *Ledger) Contains(path string) bool {
	key := canonicalKey(path)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// Clear removes all entries from the in-memory set (persistence, if any, is
// left untouched; Clear is a run-scoped reset, not a persisted wipe).
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]struct{})
}

// IsDuplicate reports whether path should be short-circuited:
// it is in the ledger and force is false (§4.8).
func (l *Ledger) IsDuplicate(path string, force bool) bool {
	if force {
		return false
	}
	return l.Contains(path)
}
