package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerGateway is a Gateway backed by BadgerDB, the durable engine for
// long-lived sessions. Badger gives us atomic replace semantics per key
// out of the box.
type BadgerGateway struct {
	db *badger.DB

	mu     sync.Mutex
	closed bool
}

// BadgerOptions configures a BadgerGateway.
type BadgerOptions struct {
	// Dir is the data directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM — useful in tests that want the
	// real Badger transaction semantics without disk I/O.
	InMemory bool

	// SyncWrites forces an fsync after each write.
	SyncWrites bool
}

// NewBadger opens a Badger-backed gateway at dir with default options.
func NewBadger(dir string) (*BadgerGateway, error) {
	return NewBadgerWithOptions(BadgerOptions{Dir: dir})
}

// NewBadgerWithOptions opens a Badger-backed gateway with explicit options.
func NewBadgerWithOptions(opts BadgerOptions) (*BadgerGateway, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	badgerOpts = badgerOpts.WithLogger(nil)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
		badgerOpts.Dir = ""
		badgerOpts.ValueDir = ""
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &BadgerGateway{db: db}, nil
}

func (g *BadgerGateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// Get returns the value for key, or (nil, nil) when missing.
func (g *BadgerGateway) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if g.isClosed() {
		return nil, ErrClosed
	}

	var value []byte
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key.
func (g *BadgerGateway) Set(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if g.isClosed() {
		return ErrClosed
	}

	err := g.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (g *BadgerGateway) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if g.isClosed() {
		return ErrClosed
	}

	err := g.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// List returns all keys with the given prefix.
func (g *BadgerGateway) List(_ context.Context, prefix string) ([]string, error) {
	if g.isClosed() {
		return nil, ErrClosed
	}

	var keys []string
	err := g.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", prefix, err)
	}
	return keys, nil
}

// Clear deletes every key with the given prefix.
func (g *BadgerGateway) Clear(ctx context.Context, prefix string) error {
	keys, err := g.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := g.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the underlying Badger database down. Close is idempotent.
func (g *BadgerGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.db.Close(); err != nil {
		return fmt.Errorf("closing badger: %w", err)
	}
	return nil
}
