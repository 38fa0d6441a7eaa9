package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore implements Store using NATS JetStream KV.
type NATSStore struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	config NATSStoreConfig
	closed atomic.Bool
}

// NATSStoreConfig holds NATS KV store configuration.
type NATSStoreConfig struct {
	// Conn is the NATS connection to use.
	Conn *nats.Conn

	// Bucket is the KV bucket name.
	Bucket string

	// History is the number of revisions to keep per key.
	// Default: 1
	History int

	// MaxValueSize is the maximum value size in bytes.
	// Default: 64KB
	MaxValueSize int32

	// OpTimeout bounds every single KV round trip.
	// Default: 5s
	OpTimeout time.Duration
}

// DefaultNATSStoreConfig returns configuration with sensible defaults.
func DefaultNATSStoreConfig() NATSStoreConfig {
	return NATSStoreConfig{
		Bucket:       "assignments",
		History:      1,
		MaxValueSize: 64 * 1024,
		OpTimeout:    5 * time.Second,
	}
}

// NewNATSStore creates a new NATS JetStream KV store.
func NewNATSStore(cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	defaults := DefaultNATSStoreConfig()
	if cfg.Bucket == "" {
		cfg.Bucket = defaults.Bucket
	}
	if cfg.History <= 0 {
		cfg.History = defaults.History
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = defaults.MaxValueSize
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}

	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       cfg.Bucket,
		History:      uint8(cfg.History),
		MaxValueSize: cfg.MaxValueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	return &NATSStore{
		conn:   cfg.Conn,
		js:     js,
		kv:     kv,
		config: cfg,
	}, nil
}

// op validates key and returns a context bounded by OpTimeout.
func (s *NATSStore) op(key string) (context.Context, context.CancelFunc, error) {
	if err := ValidateKey(key); err != nil {
		return nil, nil, err
	}
	if s.closed.Load() {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.OpTimeout)
	return ctx, cancel, nil
}

// isMissing covers both never-written keys and delete markers.
func isMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// isWrongRevision reports a conditional delete that lost to another writer.
func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}

func (s *NATSStore) entry(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	entry, err := s.kv.Get(ctx, key)
	switch {
	case isMissing(err):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return entry, nil
}

// Get retrieves a value by key.
func (s *NATSStore) Get(key string) ([]byte, error) {
	ctx, cancel, err := s.op(key)
	if err != nil {
		return nil, err
	}
	defer cancel()

	entry, err := s.entry(ctx, key)
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

// Put stores a value. The bucket keeps only the latest revision.
func (s *NATSStore) Put(key string, value []byte) error {
	ctx, cancel, err := s.op(key)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := s.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Take removes a key and returns its value.
// The delete is conditional on the revision that was read, so when two
// callers race only the one whose delete lands first gets the value.
func (s *NATSStore) Take(key string) ([]byte, error) {
	ctx, cancel, err := s.op(key)
	if err != nil {
		return nil, err
	}
	defer cancel()

	entry, err := s.entry(ctx, key)
	if err != nil {
		return nil, err
	}

	err = s.kv.Delete(ctx, key, jetstream.LastRevision(entry.Revision()))
	switch {
	case isWrongRevision(err):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("kv delete %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *NATSStore) Delete(key string) error {
	ctx, cancel, err := s.op(key)
	if err != nil {
		return err
	}
	defer cancel()

	if err := s.kv.Delete(ctx, key); err != nil && !isMissing(err) {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys matching a pattern.
func (s *NATSStore) Keys(pattern string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*s.config.OpTimeout)
	defer cancel()

	lister, err := s.kv.ListKeys(ctx, jetstream.MetaOnly())
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	defer lister.Stop()

	var keys []string
	for key := range lister.Keys() {
		if MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// natsPattern converts a trailing-* pattern to a NATS subject wildcard.
func natsPattern(pattern string) string {
	if pattern == "*" {
		return ">"
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.TrimSuffix(pattern, "*") + ">"
	}
	return pattern
}

// Watch watches for changes to keys matching a pattern.
func (s *NATSStore) Watch(ctx context.Context, pattern string) (<-chan *KeyValue, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var watcher jetstream.KeyWatcher
	var err error

	subject := natsPattern(pattern)
	if subject == ">" {
		watcher, err = s.kv.WatchAll(ctx, jetstream.UpdatesOnly())
	} else {
		watcher, err = s.kv.Watch(ctx, subject, jetstream.UpdatesOnly())
	}
	if err != nil {
		return nil, fmt.Errorf("kv watch: %w", err)
	}

	ch := make(chan *KeyValue, 64)
	go s.watchLoop(ctx, watcher, ch, pattern)

	return ch, nil
}

// watchLoop forwards watch updates until ctx ends or the store closes.
func (s *NATSStore) watchLoop(ctx context.Context, watcher jetstream.KeyWatcher, ch chan *KeyValue, pattern string) {
	defer close(ch)
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			if entry == nil {
				continue // Initial sync complete marker
			}
			if !MatchPattern(pattern, entry.Key()) {
				continue
			}

			update := &KeyValue{
				Key:       entry.Key(),
				Value:     entry.Value(),
				Revision:  entry.Revision(),
				Operation: opFromNATS(entry.Operation()),
				Modified:  entry.Created(),
			}

			// Slow readers lose updates rather than stall the watcher.
			select {
			case ch <- update:
			default:
			}
		}

		if s.closed.Load() {
			return
		}
	}
}

func opFromNATS(op jetstream.KeyValueOp) Operation {
	if op == jetstream.KeyValueDelete || op == jetstream.KeyValuePurge {
		return OpDelete
	}
	return OpPut
}

// Close marks the store closed. The NATS connection belongs to the caller.
func (s *NATSStore) Close() error {
	s.closed.Store(true)
	return nil
}
