// Package journal persists immutable operation records. Records are
// append-only: they are written once after a decision and never updated.
// The Journal decouples the decision path from storage latency with a
// bounded asynchronous writer.
package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/semcache/semcache/pkg/types"
)

// Common errors returned by record stores.
var (
	ErrClosed = errors.New("journal is closed")
)

// RecordStore is the durable backing for operation records.
type RecordStore interface {
	// Append persists one record. Records are never updated or deleted.
	Append(ctx context.Context, record types.OperationRecord) error

	// Query returns records with from <= Timestamp < to, ordered by
	// timestamp then operation ID.
	Query(ctx context.Context, from, to time.Time) ([]types.OperationRecord, error)

	// Close releases resources.
	Close() error
}

// Config controls the asynchronous writer.
type Config struct {
	// QueueSize bounds the number of records waiting to be written.
	// When full, new records are dropped and counted.
	QueueSize int

	// MaxRetries bounds write attempts per record.
	MaxRetries int

	// RetryBackoff is the base delay between attempts; it grows linearly.
	RetryBackoff time.Duration

	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    1024,
		MaxRetries:   3,
		RetryBackoff: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
}

// Validate checks configuration bounds.
func (c Config) Validate() error {
	var errs []string
	if c.QueueSize <= 0 {
		errs = append(errs, "queue size must be positive")
	}
	if c.MaxRetries < 0 {
		errs = append(errs, "max retries must be non-negative")
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, "write timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid journal config: %v", errs)
	}
	return nil
}

type item struct {
	record types.OperationRecord
	flush  chan struct{}
}

// Journal is the asynchronous record writer. A single worker drains the
// queue so records land in the store in arrival order. Recording never
// blocks the caller: when the queue is full the record is dropped and
// the drop counter incremented.
type Journal struct {
	store RecordStore
	cfg   Config

	queue chan item
	wg    sync.WaitGroup

	// mu guards closed and orders queue sends against close(queue):
	// senders hold the read lock, Close takes the write lock before
	// closing the channel.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64

	// OnDrop, if set, is called with the running drop count whenever a
	// record is discarded. Used for metrics.
	OnDrop func(total int64)
}

// New creates a journal over the given store and starts its writer.
func New(store RecordStore, cfg Config) (*Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	j := &Journal{
		store: store,
		cfg:   cfg,
		queue: make(chan item, cfg.QueueSize),
	}
	j.wg.Add(1)
	go j.run()
	return j, nil
}

// Record enqueues a record for persistence. It never blocks; on a full
// queue or a closed journal the record is dropped.
func (j *Journal) Record(record types.OperationRecord) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.drop()
		return
	}
	select {
	case j.queue <- item{record: record}:
	default:
		j.drop()
	}
}

// Flush blocks until every record enqueued before the call has been
// written (or abandoned after retries).
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	done := make(chan struct{})
	select {
	case j.queue <- item{flush: done}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, stops the writer, and closes the store.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	return j.store.Close()
}

// Dropped returns the number of records discarded due to backpressure.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Failed returns the number of records abandoned after exhausting retries.
func (j *Journal) Failed() int64 { return j.failed.Load() }

// Depth returns the current queue depth.
func (j *Journal) Depth() int { return len(j.queue) }

func (j *Journal) drop() {
	total := j.dropped.Add(1)
	if j.OnDrop != nil {
		j.OnDrop(total)
	}
}

func (j *Journal) run() {
	defer j.wg.Done()
	for it := range j.queue {
		if it.flush != nil {
			close(it.flush)
			continue
		}
		j.write(it.record)
	}
}

func (j *Journal) write(record types.OperationRecord) {
	for attempt := 0; attempt <= j.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * j.cfg.RetryBackoff)
		}
		ctx, cancel := context.WithTimeout(context.Background(), j.cfg.WriteTimeout)
		err := j.store.Append(ctx, record)
		cancel()
		if err == nil {
			return
		}
	}
	j.failed.Add(1)
}
