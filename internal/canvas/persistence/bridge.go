// Package persistence keeps the stored snapshot of a gift canvas in step with
// its in-memory item store.
//
// Changes are debounced on the trailing edge: every Observe re-arms a single
// timer, and only a timer that survives the quiet period starts a save. Saves
// for one gift never overlap. A timer firing while a save is still in flight
// queues exactly one follow-up save, which picks up whatever the latest
// collection is when the in-flight save returns.
package persistence

import (
	"context"
	"sync"
	"time"

	"giftletter/internal/canvas/itemstore"
	"giftletter/internal/canvas/model"
	"giftletter/pkg/logger"
	"giftletter/pkg/metrics"
)

const (
	DefaultDelay       = time.Second
	DefaultSaveTimeout = 10 * time.Second
)

// State of the save cycle: Idle -> Pending (timer armed) -> InFlight -> Idle.
type State int

const (
	Idle State = iota
	Pending
	InFlight
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	default:
		return "idle"
	}
}

type Saver interface {
	Save(ctx context.Context, giftID string, items []model.LetterItem) error
}

// StatusFunc is told about every status change. It is called without any
// bridge lock held.
type StatusFunc func(giftID string, st Status)

type Options struct {
	Delay       time.Duration
	SaveTimeout time.Duration
	OnStatus    StatusFunc
}

type Bridge struct {
	giftID   string
	saver    Saver
	delay    time.Duration
	timeout  time.Duration
	onStatus StatusFunc

	mu       sync.Mutex
	gen      uint64 // bumped on every re-arm; a timer with an older gen is cancelled
	timer    *time.Timer
	armed    bool
	inFlight bool
	flight   chan struct{} // closed when the current save cycle ends
	queued   bool
	dirty    bool // latest has not been handed to a successful save
	latest   []*model.LetterItem
	status   Status
	lastErr  error
	closed   bool
}

func NewBridge(giftID string, saver Saver, opts Options) *Bridge {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = DefaultSaveTimeout
	}
	return &Bridge{
		giftID:   giftID,
		saver:    saver,
		delay:    opts.Delay,
		timeout:  opts.SaveTimeout,
		onStatus: opts.OnStatus,
		status:   Status{Phase: PhaseSaved},
	}
}

// Observe is the item store observer: it records the new collection and
// restarts the quiet-period timer.
func (b *Bridge) Observe(items []*model.LetterItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.latest = items
	b.dirty = true
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
	}
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() { b.fire(gen) })
	b.armed = true
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Bridge) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.closed {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.armed = false
	if b.inFlight {
		b.queued = true
		b.mu.Unlock()
		return
	}
	snapshot, st := b.beginLocked()
	b.mu.Unlock()

	b.publish(st)
	b.run(snapshot)
}

// beginLocked moves the bridge to InFlight and takes the snapshot to write.
func (b *Bridge) beginLocked() ([]*model.LetterItem, Status) {
	b.inFlight = true
	b.flight = make(chan struct{})
	b.dirty = false
	b.status = Status{Phase: PhaseSaving, Pending: true, SavedAt: b.status.SavedAt}
	return b.latest, b.status
}

// run performs the save and any follow-up save queued while it was running.
func (b *Bridge) run(snapshot []*model.LetterItem) {
	for {
		err := b.save(snapshot)

		b.mu.Lock()
		b.lastErr = err
		if err != nil {
			b.dirty = true
			b.status = Status{Phase: PhaseFailed, Error: err.Error(), SavedAt: b.status.SavedAt}
		} else {
			b.status = Status{Phase: PhaseSaved, SavedAt: time.Now().UTC()}
		}
		if b.queued && !b.closed {
			b.queued = false
			b.dirty = false
			snapshot = b.latest
			b.status = Status{Phase: PhaseSaving, Pending: true, SavedAt: b.status.SavedAt}
			st := b.status
			b.mu.Unlock()
			b.publish(st)
			continue
		}
		b.queued = false
		b.inFlight = false
		close(b.flight)
		st := b.status
		b.mu.Unlock()

		b.publish(st)
		return
	}
}

func (b *Bridge) save(snapshot []*model.LetterItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	start := time.Now()
	err := b.saver.Save(ctx, b.giftID, itemstore.Values(snapshot))
	metrics.ObserveSave(err, time.Since(start))
	if err != nil {
		logger.Sugar.Errorf("Failed to save canvas state for gift %s: %v", b.giftID, err)
		return err
	}
	logger.Sugar.Debugf("Saved canvas state for gift %s (%d items)", b.giftID, len(snapshot))
	return nil
}

// Flush cancels a pending timer and writes the latest collection right away
// if it has not been saved yet, then waits until no save is in flight. It
// returns the error of the last save attempt.
func (b *Bridge) Flush(ctx context.Context) error {
	for {
		b.mu.Lock()
		if b.armed {
			b.timer.Stop()
			b.timer = nil
			b.armed = false
			b.gen++
		}
		if b.inFlight {
			if b.dirty {
				b.queued = true
			}
			done := b.flight
			b.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if b.dirty {
			snapshot, st := b.beginLocked()
			b.mu.Unlock()
			b.publish(st)
			b.run(snapshot)
			b.mu.Lock()
			err := b.lastErr
			b.mu.Unlock()
			return err
		}
		err := b.lastErr
		b.mu.Unlock()
		return err
	}
}

// Wait blocks until no save is in flight, without starting one.
func (b *Bridge) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		if !b.inFlight {
			b.mu.Unlock()
			return nil
		}
		done := b.flight
		b.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Clean reports whether the latest collection is stored and nothing is
// scheduled or running.
func (b *Bridge) Clean() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.dirty && b.stateLocked() == Idle
}

// Close stops the timer; later Observe calls are ignored. Call Flush first
// to keep unsaved changes.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.armed = false
	b.queued = false
}

func (b *Bridge) stateLocked() State {
	switch {
	case b.inFlight:
		return InFlight
	case b.armed:
		return Pending
	default:
		return Idle
	}
}

func (b *Bridge) publish(st Status) {
	if b.onStatus != nil {
		b.onStatus(b.giftID, st)
	}
}
