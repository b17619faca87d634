package scaling

import (
	"context"
	"database/sql"
	"sync"

	"github.com/fracturedsurvival/npcruntime/internal/apperr"
)

// Write is one queued statement for the batched writer.
type Write struct {
	Query string
	Args  []any
}

// BatchWriter coalesces many small writes into a single transaction,
// flushing automatically once the queue reaches FlushSize or on an explicit
// Flush call. A flush failure rolls the whole batch back; the writer does
// not retry automatically, leaving that decision to the caller (§9: no
// silent retry masking a persistent failure).
type BatchWriter struct {
	db        *sql.DB
	flushSize int

	mu    sync.Mutex
	queue []Write
}

// NewBatchWriter constructs a BatchWriter flushing every flushSize queued
// writes.
func NewBatchWriter(db *sql.DB, flushSize int) *BatchWriter {
	if flushSize <= 0 {
		flushSize = 100
	}
	return &BatchWriter{db: db, flushSize: flushSize}
}

// Enqueue adds a write to the pending batch, flushing immediately if the
// queue has reached its configured size.
func (b *BatchWriter) Enqueue(ctx context.Context, w Write) error {
	b.mu.Lock()
	b.queue = append(b.queue, w)
	full := len(b.queue) >= b.flushSize
	b.mu.Unlock()
	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Pending returns the number of writes currently queued.
func (b *BatchWriter) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Flush commits every queued write in a single transaction. On failure the
// transaction is rolled back and the queue is left untouched so the caller
// can inspect it or retry explicitly.
func (b *BatchWriter) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.queue
	b.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Integrityf(err, "scaling: begin batch flush")
	}
	for _, w := range pending {
		if _, err := tx.ExecContext(ctx, w.Query, w.Args...); err != nil {
			tx.Rollback()
			return apperr.Integrityf(err, "scaling: batch write failed, %d writes left queued", len(pending))
		}
	}
	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return apperr.Integrityf(err, "scaling: commit batch flush")
	}

	b.mu.Lock()
	b.queue = b.queue[len(pending):]
	b.mu.Unlock()
	return nil
}
