package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/storesync/internal/cart"
	"github.com/roach88/storesync/internal/catalog"
	"github.com/roach88/storesync/internal/checkout"
	"github.com/roach88/storesync/internal/clock"
	"github.com/roach88/storesync/internal/discount"
	"github.com/roach88/storesync/internal/identity"
	"github.com/roach88/storesync/internal/missions"
	"github.com/roach88/storesync/internal/modal"
	"github.com/roach88/storesync/internal/model"
	"github.com/roach88/storesync/internal/remote"
	"github.com/roach88/storesync/internal/store"
)

// Default timings.
const (
	DefaultWritebackDelay = 2 * time.Second
	DefaultSpinDuration   = 4 * time.Second
)

// Options configures an Engine. Local and Session are required; every
// remote collaborator is optional and a nil one makes the engine run
// offline for that concern.
type Options struct {
	Local   store.KV
	Session store.KV

	Profiles remote.ProfileStore
	Products remote.CatalogService
	Feed     remote.Feed
	Checkout *checkout.Service

	Catalog   *catalog.Catalog
	Scheduler clock.Scheduler
	Navigator modal.Navigator
	Picker    discount.Picker
	IDs       IDGenerator

	WritebackDelay time.Duration
	SpinDuration   time.Duration

	// Inline runs remote tasks synchronously on the calling goroutine.
	// Posted events still wait for Run or Drain.
	Inline bool
}

// Engine is the reconciliation engine. All exported methods are safe for
// concurrent use.
type Engine struct {
	opts     Options
	resolver *identity.Resolver
	sched    clock.Scheduler
	ids      IDGenerator
	catalog  *catalog.Catalog
	seq      *Clock
	queue    *eventQueue
	exec     executor
	ctx      context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	closed    bool
	gen       uint64
	ident     model.Identity
	synced    bool
	syncedCh  chan struct{}
	favorites []string
	ledger    *cart.Ledger
	wheel     *discount.Wheel
	spinTimer clock.Timer
	spinSeq   uint64
	tracker   *missions.Tracker
	// missionsLoaded is set once the tracker holds the identity's remote
	// mission rows. Until then nothing is upserted and claims are refused.
	missionsLoaded bool
	stock     *missions.Stock
	inventory []model.InventoryGrant
	modals    *modal.Controller
	writeback *clock.Debouncer
	subs      *scope

	rawProducts []model.Product
	products    []model.Product
	reviews     []model.Review
}

// New creates an engine holding a guest identity. Call Start to resolve
// the persisted identity.
func New(opts Options) *Engine {
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = clock.Real{}
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if opts.WritebackDelay <= 0 {
		opts.WritebackDelay = DefaultWritebackDelay
	}
	if opts.SpinDuration <= 0 {
		opts.SpinDuration = DefaultSpinDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:     opts,
		resolver: identity.NewResolver(opts.Session, opts.Local),
		sched:    opts.Scheduler,
		ids:      opts.IDs,
		catalog:  opts.Catalog,
		seq:      NewClock(),
		queue:    newEventQueue(),
		ctx:      ctx,
		cancel:   cancel,
		ident:    model.Guest(),
		syncedCh: make(chan struct{}),
		ledger:   cart.NewLedger(nil),
		wheel:    discount.NewWheel(opts.Picker),
		tracker:  missions.NewTracker(opts.Catalog),
		stock:    missions.NewStock(opts.Catalog),
		modals:   modal.NewController(opts.Navigator, modal.Location{Tab: "home"}),
		subs:     newScope(),
	}
	if opts.Inline {
		e.exec = inlineExecutor{ctx: ctx}
	} else {
		e.exec = &asyncExecutor{ctx: ctx}
	}
	e.writeback = clock.NewDebouncer(e.sched, opts.WritebackDelay, func() {
		e.post(e.currentGeneration(), EventWritebackDue, e.applyWriteback)
	})
	return e
}

// Start resolves the persisted identity, switches to it and fetches the
// product catalog.
func (e *Engine) Start(ctx context.Context) error {
	ident, src := e.resolver.Resolve(ctx)
	slog.Info("identity resolved", "user", ident.ID, "source", string(src))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.switchIdentity(ident)
	e.refreshCatalog()
	return nil
}

// Run applies posted events until ctx is cancelled or the engine is
// closed. Applying an event never fails the loop.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.processEvent(ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.isClosed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: closed")
				return nil
			}
		}
	}
}

// Drain applies every queued event, including events posted while
// draining, and returns how many were processed. It must not be used
// concurrently with Run.
func (e *Engine) Drain() int {
	n := 0
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.processEvent(ev)
		n++
	}
}

// Close tears down subscriptions and timers, cancels in-flight tasks and
// waits for them. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.teardownLocked()
	e.mu.Unlock()

	e.cancel()
	e.exec.Wait()
	e.queue.Close()
}

// WaitSynced blocks until the remote sync of the current identity is
// initialized or ctx ends. Guests are initialized immediately.
func (e *Engine) WaitSynced(ctx context.Context) error {
	e.mu.Lock()
	ch := e.syncedCh
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues an event for the given generation.
func (e *Engine) post(gen uint64, kind EventKind, apply func()) {
	ev := Event{Seq: e.seq.Next(), Kind: kind, Generation: gen, apply: apply}
	if !e.queue.Enqueue(ev) {
		slog.Debug("event dropped: queue closed", "kind", kind.String(), "seq", ev.Seq)
	}
}

// processEvent applies one event under the state mutex.
func (e *Engine) processEvent(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	if ev.Generation != 0 && ev.Generation != e.gen {
		slog.Debug("stale event dropped",
			"kind", ev.Kind.String(),
			"seq", ev.Seq,
			"generation", ev.Generation,
			"current", e.gen,
		)
		return
	}
	slog.Debug("applying event", "kind", ev.Kind.String(), "seq", ev.Seq)
	ev.apply()
}

func (e *Engine) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// teardownLocked stops everything bound to the current identity.
func (e *Engine) teardownLocked() {
	e.writeback.Stop()
	e.stopSpinLocked()
	e.subs.Close()
}

// stopSpinLocked cancels a pending spin resolution.
func (e *Engine) stopSpinLocked() {
	e.spinSeq++
	if e.spinTimer != nil {
		e.spinTimer.Stop()
		e.spinTimer = nil
	}
}

// registeredLocked reports whether remote operations are permitted.
func (e *Engine) registeredLocked() bool {
	return !e.ident.IsGuest()
}
