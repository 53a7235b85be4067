// Package pebblestore is a durable ConfigStore backed by
// cockroachdb/pebble, grounded on the teacher's db/meta_store_pebble.go
// (its Open/Close lifecycle and single sync.Mutex-guarded batch-write
// serialization point, since pebble has no multi-key transaction API of
// its own to lean on for the CAS check-and-set).
package pebblestore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
	"github.com/rs/zerolog/log"
)

var (
	keyVersion = []byte("/ncm/version")
	keyBytes   = []byte("/ncm/bytes")
)

// pebbleLogger adapts zerolog to pebble's internal Logger interface,
// matching the teacher's db.pebbleLogger.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{})  { log.Debug().Msgf("[pebble] "+format, args...) }
func (pebbleLogger) Errorf(format string, args ...interface{}) { log.Error().Msgf("[pebble] "+format, args...) }
func (pebbleLogger) Fatalf(format string, args ...interface{}) { log.Fatal().Msgf("[pebble] "+format, args...) }

// Store is a durable, single-node ConfigStore. All CAS operations take an
// in-process mutex before touching the db, since pebble commits are
// per-batch atomic but there is no cross-call transaction to hold a
// compare-and-swap window open across two separate Get/Set calls.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

var _ store.ConfigStore = (*Store)(nil)

// Open creates or reopens a pebble-backed store rooted at path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{Logger: pebbleLogger{}})
	if err != nil {
		return nil, fmt.Errorf("pebblestore: failed to open pebble db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying pebble handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) currentLocked() (ncconfig.Version, []byte) {
	vBytes, closer, err := s.db.Get(keyVersion)
	if err != nil {
		return ncconfig.EmptyVersion, nil
	}
	version := ncconfig.Version(binary.BigEndian.Uint64(vBytes))
	closer.Close()

	bytes, closer2, err := s.db.Get(keyBytes)
	if err != nil {
		return version, nil
	}
	out := append([]byte{}, bytes...)
	closer2.Close()
	return version, out
}

func (s *Store) writeLocked(version ncconfig.Version, bytes []byte) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	var vBuf [8]byte
	binary.BigEndian.PutUint64(vBuf[:], uint64(version))
	if err := batch.Set(keyVersion, vBuf[:], nil); err != nil {
		return err
	}
	if err := batch.Set(keyBytes, bytes, nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *Store) UpdateConfig(ctx context.Context, bytes []byte, baseVersion ncconfig.Version, cb func(store.Status, ncconfig.Version, []byte)) {
	s.mu.Lock()
	curVersion, curBytes := s.currentLocked()
	if curVersion != baseVersion {
		s.mu.Unlock()
		cb(store.StatusVersionMismatch, curVersion, curBytes)
		return
	}
	newVersion := baseVersion.Succ()
	if err := s.writeLocked(newVersion, bytes); err != nil {
		s.mu.Unlock()
		log.Error().Err(err).Msg("pebblestore: write failed")
		cb(store.StatusAgain, curVersion, curBytes)
		return
	}
	s.mu.Unlock()
	cb(store.StatusOK, newVersion, bytes)
}

func (s *Store) ReadFromStore(ctx context.Context, consistent bool, cb func(store.Status, []byte)) {
	s.mu.Lock()
	_, bytes := s.currentLocked()
	s.mu.Unlock()
	cb(store.StatusOK, bytes)
}

func (s *Store) Overwrite(ctx context.Context, nc ncconfig.NC, cb func(store.Status, ncconfig.Version, []byte)) {
	if nc.IsEmpty() && len(nc.Payload) == 0 {
		cb(store.StatusInvalidParam, ncconfig.EmptyVersion, nil)
		return
	}
	s.mu.Lock()
	err := s.writeLocked(nc.Version, nc.Payload)
	s.mu.Unlock()
	if err != nil {
		cb(store.StatusAgain, ncconfig.EmptyVersion, nil)
		return
	}
	cb(store.StatusOK, nc.Version, nc.Payload)
}
