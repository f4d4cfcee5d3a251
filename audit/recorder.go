package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config controls recorder buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Recorder appends events through an owned background goroutine and exposes
// the read queries synchronously. Record never returns an error; store
// failures go to the side-channel logger only.
type Recorder struct {
	cfg       Config
	store     Store
	sink      Sink
	log       *zap.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewRecorder starts the dispatch goroutine. A disabled config still returns
// a usable Recorder whose Record is a no-op, so callers need no nil checks
// on the query side.
func NewRecorder(cfg Config, store Store, sink Sink, log *zap.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Recorder{
		cfg:   cfg,
		store: store,
		sink:  sink,
		log:   log,
		ch:    make(chan Event, cfg.BufferSize),
		done:  make(chan struct{}),
	}

	if cfg.Enabled {
		r.wg.Add(1)
		go r.run()
	}

	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.ch:
			r.write(event)
		case <-r.done:
			for {
				select {
				case event := <-r.ch:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event Event) {
	ctx := context.Background()
	if r.store == nil {
		r.sink.Emit(ctx, event)
		return
	}
	if err := r.store.Insert(ctx, &event); err != nil {
		r.log.Warn("audit write failed",
			zap.String("action", string(event.Action)),
			zap.Error(err),
		)
	}
	r.sink.Emit(ctx, event)
}

// Record enqueues an event, filling ID and CreatedAt when unset. It never
// blocks the auth flow beyond ctx and never reports failure to the caller.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil || !r.cfg.Enabled || r.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if r.cfg.DropIfFull {
		select {
		case r.ch <- event:
		case <-r.done:
		default:
			r.dropped.Add(1)
		}
		return
	}

	select {
	case r.ch <- event:
	case <-ctx.Done():
	case <-r.done:
	}
}

// ErrNoStore is returned by the query methods when the recorder was built
// without a backing store.
var ErrNoStore = errors.New("audit: no store configured")

// ByUser lists a user's events newest-first; an empty action matches all.
func (r *Recorder) ByUser(ctx context.Context, userID string, action Action, limit, offset int) ([]Event, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.ByUser(ctx, userID, action, limit, offset)
}

// Suspicious lists flagged events newest-first.
func (r *Recorder) Suspicious(ctx context.Context, limit, offset int) ([]Event, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.store.Suspicious(ctx, limit, offset)
}

// FailedLogins lists FAILED_LOGIN events within the window, newest-first.
// An empty ip matches all addresses; windowHours defaults to 24.
func (r *Recorder) FailedLogins(ctx context.Context, ip string, windowHours int) ([]Event, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	if windowHours <= 0 {
		windowHours = 24
	}
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)
	return r.store.FailedLoginsSince(ctx, ip, since)
}

// MarkSuspicious flags the event and merges the reason into its metadata.
func (r *Recorder) MarkSuspicious(ctx context.Context, id, reason string) error {
	if r.store == nil {
		return ErrNoStore
	}
	return r.store.MarkSuspicious(ctx, id, reason)
}

// PurgeOlderThan bulk-deletes events older than the retention window and
// returns the number removed.
func (r *Recorder) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if r.store == nil {
		return 0, ErrNoStore
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	return r.store.DeleteOlderThan(ctx, cutoff)
}

// Dropped reports events discarded due to dispatcher backpressure.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close drains the queue and stops the dispatch goroutine.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}
