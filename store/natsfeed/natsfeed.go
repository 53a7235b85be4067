// Package natsfeed wires nats-io/nats.go as a push-based change-notification
// feed, grounded on the teacher's publisher/sink/nats.go (connection
// options, reconnect policy). It wraps a store.ConfigStore so a single
// subject carries every externally-applied write, letting the NCM's
// heartbeat rely on a push rather than pure polling.
package natsfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
)

// Feed decorates an inner store.ConfigStore, publishing every
// successfully applied write to a NATS subject and exposing
// store.ChangeFeed by subscribing to that same subject.
type Feed struct {
	inner   store.ConfigStore
	nc      *nats.Conn
	subject string
}

var _ store.ConfigStore = (*Feed)(nil)
var _ store.ChangeFeed = (*Feed)(nil)

// Connect dials url and wraps inner, publishing/observing changes on
// subject.
func Connect(url, subject string, inner store.ConfigStore) (*Feed, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("natsfeed: failed to connect: %w", err)
	}
	return &Feed{inner: inner, nc: nc, subject: subject}, nil
}

// Close releases the NATS connection. The wrapped inner store is left
// open -- its lifecycle belongs to whoever constructed it.
func (f *Feed) Close() {
	f.nc.Close()
}

func (f *Feed) UpdateConfig(ctx context.Context, bytes []byte, baseVersion ncconfig.Version, cb func(store.Status, ncconfig.Version, []byte)) {
	f.inner.UpdateConfig(ctx, bytes, baseVersion, func(status store.Status, v ncconfig.Version, b []byte) {
		if status == store.StatusOK {
			if err := f.nc.Publish(f.subject, b); err != nil {
				// Best-effort: a missed publish only delays other
				// observers until their next heartbeat poll, it does
				// not compromise the store's own CAS outcome.
				_ = err
			}
		}
		cb(status, v, b)
	})
}

func (f *Feed) ReadFromStore(ctx context.Context, consistent bool, cb func(store.Status, []byte)) {
	f.inner.ReadFromStore(ctx, consistent, cb)
}

func (f *Feed) Overwrite(ctx context.Context, nc ncconfig.NC, cb func(store.Status, ncconfig.Version, []byte)) {
	f.inner.Overwrite(ctx, nc, func(status store.Status, v ncconfig.Version, b []byte) {
		if status == store.StatusOK {
			if err := f.nc.Publish(f.subject, b); err != nil {
				_ = err
			}
		}
		cb(status, v, b)
	})
}

// Subscribe registers onChange against the underlying NATS subject. The
// returned cancel unsubscribes.
func (f *Feed) Subscribe(onChange func([]byte)) (func(), error) {
	sub, err := f.nc.Subscribe(f.subject, func(msg *nats.Msg) {
		onChange(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("natsfeed: subscribe failed: %w", err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}
