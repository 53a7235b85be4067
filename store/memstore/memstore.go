// Package memstore is an in-memory, mutex-protected reference ConfigStore,
// grounded on the teacher's db.LocalReplicator/db.LocalReader pattern of
// providing a same-process stand-in for what is normally a networked
// dependency. Used by tests and cmd/ncmd's dev mode.
package memstore

import (
	"context"
	"sync"

	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
)

// Store is a single-node CAS store backed by a mutex-protected slot. It
// never returns store.StatusAgain -- there is no contention source to
// retry against in a single process.
type Store struct {
	mu      sync.Mutex
	version ncconfig.Version
	bytes   []byte

	subsMu sync.Mutex
	subs   map[int]func([]byte)
	nextID int
}

var _ store.ConfigStore = (*Store)(nil)
var _ store.ChangeFeed = (*Store)(nil)

// New builds an empty store at ncconfig.EmptyVersion.
func New() *Store {
	return &Store{subs: make(map[int]func([]byte))}
}

// Seed pre-populates the store, for tests that want a non-empty starting
// point without going through UpdateConfig.
func (s *Store) Seed(version ncconfig.Version, bytes []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	s.bytes = bytes
}

func (s *Store) UpdateConfig(ctx context.Context, bytes []byte, baseVersion ncconfig.Version, cb func(store.Status, ncconfig.Version, []byte)) {
	s.mu.Lock()
	if s.version != baseVersion {
		curVersion, curBytes := s.version, s.bytes
		s.mu.Unlock()
		cb(store.StatusVersionMismatch, curVersion, curBytes)
		return
	}
	newVersion := baseVersion.Succ()
	s.version = newVersion
	s.bytes = bytes
	s.mu.Unlock()

	s.notify(bytes)
	cb(store.StatusOK, newVersion, bytes)
}

func (s *Store) ReadFromStore(ctx context.Context, consistent bool, cb func(store.Status, []byte)) {
	s.mu.Lock()
	bytes := s.bytes
	s.mu.Unlock()
	cb(store.StatusOK, bytes)
}

func (s *Store) Overwrite(ctx context.Context, nc ncconfig.NC, cb func(store.Status, ncconfig.Version, []byte)) {
	if nc.IsEmpty() && len(nc.Payload) == 0 {
		cb(store.StatusInvalidParam, ncconfig.EmptyVersion, nil)
		return
	}
	s.mu.Lock()
	s.version = nc.Version
	s.bytes = nc.Payload
	s.mu.Unlock()

	s.notify(nc.Payload)
	cb(store.StatusOK, nc.Version, nc.Payload)
}

func (s *Store) Subscribe(onChange func([]byte)) (func(), error) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = onChange
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}, nil
}

func (s *Store) notify(bytes []byte) {
	s.subsMu.Lock()
	subs := make([]func([]byte), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(bytes)
	}
}
