// Package kafkafeed wires segmentio/kafka-go as a push-based
// change-notification feed, a sibling of store/natsfeed for deployments
// that already run a Kafka cluster instead of NATS. Grounded on the
// teacher's publisher/sink/kafka.go KafkaSink (writer config: batching,
// durability acks, auto-create topics), extended with a kafka.Reader
// consumer loop -- the teacher's sink is write-only (fan-out to
// downstream consumers), but a store.ChangeFeed also needs to consume
// its own notifications back.
package kafkafeed

import (
	"context"
	"fmt"

	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/store"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	defaultBatchSize  = 100
	defaultBatchBytes = 1 << 20 // 1MB, matches the teacher's DefaultKafkaBatchBytes
)

// Feed decorates an inner store.ConfigStore, publishing every
// successfully applied write to a Kafka topic and exposing
// store.ChangeFeed by consuming that same topic from a dedicated
// consumer group.
type Feed struct {
	inner   store.ConfigStore
	writer  *kafka.Writer
	brokers []string
	topic   string
	group   string
	cancel  context.CancelFunc
}

var _ store.ConfigStore = (*Feed)(nil)
var _ store.ChangeFeed = (*Feed)(nil)

// Config mirrors the teacher's KafkaConfig shape (publisher/sink/kafka.go),
// narrowed to what a ChangeFeed needs: no per-message key/partitioning
// scheme, since the feed carries one subject's worth of config payload,
// not sharded replication traffic.
type Config struct {
	Brokers    []string
	Topic      string
	GroupID    string
	BatchSize  int
	BatchBytes int64
}

// Connect dials brokers and wraps inner, publishing/observing changes on
// cfg.Topic via a dedicated consumer group (cfg.GroupID).
func Connect(cfg Config, inner store.ConfigStore) (*Feed, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafkafeed: requires at least one broker address")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = defaultBatchBytes
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Feed{inner: inner, writer: writer, brokers: cfg.Brokers, topic: cfg.Topic, group: cfg.GroupID}, nil
}

// Close releases the Kafka writer and stops any active Subscribe
// consumer loop. The wrapped inner store is left open -- its lifecycle
// belongs to whoever constructed it.
func (f *Feed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	if err := f.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("kafkafeed: close failed")
	}
}

func (f *Feed) publish(b []byte) {
	msg := kafka.Message{Topic: f.topic, Value: b}
	if err := f.writer.WriteMessages(context.Background(), msg); err != nil {
		// Best-effort: a missed publish only delays other observers
		// until their next heartbeat poll, it does not compromise the
		// store's own CAS outcome.
		log.Warn().Err(err).Msg("kafkafeed: publish failed")
	}
}

func (f *Feed) UpdateConfig(ctx context.Context, bytes []byte, baseVersion ncconfig.Version, cb func(store.Status, ncconfig.Version, []byte)) {
	f.inner.UpdateConfig(ctx, bytes, baseVersion, func(status store.Status, v ncconfig.Version, b []byte) {
		if status == store.StatusOK {
			f.publish(b)
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
			f.publish(b)
		}
		cb(status, v, b)
	})
}

// Subscribe starts a consumer-group reader over the feed's topic,
// invoking onChange with every message's value. The returned cancel
// stops the reader and waits for its goroutine to exit.
func (f *Feed) Subscribe(onChange func([]byte)) (func(), error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: f.brokers,
		Topic:   f.topic,
		GroupID: f.group,
	})

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Msg("kafkafeed: read failed")
				continue
			}
			onChange(msg.Value)
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}
