package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"vehicle-led-service/internal/logger"
)

const (
	DefaultBatchSize     = 100
	DefaultFlushInterval = time.Second

	closeFlushTimeout = 5 * time.Second
)

type flushFunc[T any] func(ctx context.Context, items []T) error

// batcher queues items and hands them to flush when the batch is full or the
// ticker fires. A full queue drops the item.
type batcher[T any] struct {
	size     int
	interval time.Duration
	queue    chan T
	batch    []T
	flush    flushFunc[T]
	logger   *logger.Logger
	dropped  atomic.Uint64
	written  atomic.Uint64
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

func newBatcher[T any](size int, interval time.Duration, flush flushFunc[T], l *logger.Logger) *batcher[T] {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &batcher[T]{
		size:     size,
		interval: interval,
		queue:    make(chan T, size*2),
		batch:    make([]T, 0, size),
		flush:    flush,
		logger:   l,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *batcher[T]) start() {
	b.wg.Add(1)
	go b.loop()
}

func (b *batcher[T]) add(item T) bool {
	select {
	case b.queue <- item:
		return true
	default:
		if b.dropped.Add(1)%100 == 1 {
			b.logger.Warnf("Batch queue full, %d records dropped", b.dropped.Load())
		}
		return false
	}
}

func (b *batcher[T]) loop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.drain()
			return

		case item := <-b.queue:
			b.batch = append(b.batch, item)
			if len(b.batch) >= b.size {
				b.write(b.ctx)
			}

		case <-ticker.C:
			b.write(b.ctx)
		}
	}
}

func (b *batcher[T]) drain() {
	for {
		select {
		case item := <-b.queue:
			b.batch = append(b.batch, item)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
			defer cancel()
			b.write(ctx)
			return
		}
	}
}

func (b *batcher[T]) write(ctx context.Context) {
	if len(b.batch) == 0 {
		return
	}
	if err := b.flush(ctx, b.batch); err != nil {
		b.logger.Warnf("Failed to write %d records: %v", len(b.batch), err)
	} else {
		b.written.Add(uint64(len(b.batch)))
		b.logger.Debugf("Flushed %d records", len(b.batch))
	}
	// A failed batch is discarded; telemetry is best effort.
	b.batch = b.batch[:0]
}

// close stops the loop after a final flush. It is safe to call twice.
func (b *batcher[T]) close() {
	b.once.Do(func() {
		b.cancel()
		b.wg.Wait()
	})
}

func (b *batcher[T]) Dropped() uint64 { return b.dropped.Load() }

func (b *batcher[T]) Written() uint64 { return b.written.Load() }
