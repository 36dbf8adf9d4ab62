// Package feed delivers full-collection snapshots to subscribers whenever a
// collection changes.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-console/internal/models"
	"order-console/internal/store"
	"order-console/internal/util"

	"go.uber.org/zap"
)

// Snapshot is the complete membership of a collection at one point in time
type Snapshot struct {
	Collection string
	Documents  []store.Document
	// Seq counts deliveries on one subscription, starting at 1
	Seq uint64
}

// SnapshotFunc receives snapshots. Calls for one subscription never overlap.
type SnapshotFunc func(Snapshot)

// ChangeFeed is a live subscription source for named collections
type ChangeFeed interface {
	Subscribe(collection string, fn SnapshotFunc) (unsubscribe func())
}

// Lister reads the current contents of a collection
type Lister interface {
	List(ctx context.Context, collection string) ([]store.Document, error)
}

// ErrorHandler is the side channel for delivery failures
type ErrorHandler func(collection string, err error)

// Option configures a Feed
type Option func(*Feed)

// WithPollInterval re-reads subscribed collections periodically, for stores
// whose writers do not publish change notifications
func WithPollInterval(d time.Duration) Option {
	return func(f *Feed) { f.pollInterval = d }
}

// WithErrorHandler installs a delivery failure callback
func WithErrorHandler(h ErrorHandler) Option {
	return func(f *Feed) { f.onError = h }
}

// WithReadTimeout bounds each collection read
func WithReadTimeout(d time.Duration) Option {
	return func(f *Feed) { f.readTimeout = d }
}

// Feed implements ChangeFeed by re-reading a collection on every wake-up
type Feed struct {
	lister       Lister
	logger       *zap.Logger
	pollInterval time.Duration
	readTimeout  time.Duration
	onError      ErrorHandler

	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*subscription
}

// NewFeed creates a new change feed over the lister
func NewFeed(lister Lister, opts ...Option) *Feed {
	f := &Feed{
		lister:      lister,
		logger:      util.GetLogger(),
		readTimeout: 10 * time.Second,
		subs:        make(map[string]map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type subscription struct {
	id         uint64
	collection string
	fn         SnapshotFunc
	wake       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	seq        uint64
}

// Subscribe starts delivering snapshots of collection to fn, beginning with
// the current state. The returned func stops delivery and may be called any
// number of times. A callback already running when it is called is not waited for.
func (f *Feed) Subscribe(collection string, fn SnapshotFunc) func() {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		collection: collection,
		fn:         fn,
		wake:       make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
	sub.wake <- struct{}{}

	f.mu.Lock()
	f.nextID++
	sub.id = f.nextID
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[uint64]*subscription)
	}
	f.subs[collection][sub.id] = sub
	f.mu.Unlock()

	f.logger.Info("Feed subscription opened",
		zap.String("collection", collection),
		zap.Uint64("subscription", sub.id))

	go f.run(sub)

	return func() { f.unsubscribe(sub) }
}

func (f *Feed) unsubscribe(sub *subscription) {
	sub.once.Do(func() {
		sub.cancel()

		f.mu.Lock()
		delete(f.subs[sub.collection], sub.id)
		if len(f.subs[sub.collection]) == 0 {
			delete(f.subs, sub.collection)
		}
		f.mu.Unlock()

		f.logger.Info("Feed subscription closed",
			zap.String("collection", sub.collection),
			zap.Uint64("subscription", sub.id))
	})
}

// Wake schedules a fresh snapshot for every subscriber of collection.
// Wake-ups coalesce, so a burst of changes may produce a single snapshot.
func (f *Feed) Wake(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs[collection] {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// Notify lets the feed act as the store's in-process change notifier
func (f *Feed) Notify(_ context.Context, event *models.DocumentChangedEvent) error {
	f.Wake(event.Collection)
	return nil
}

// Close ends every open subscription
func (f *Feed) Close() {
	f.mu.Lock()
	var all []*subscription
	for _, byID := range f.subs {
		for _, sub := range byID {
			all = append(all, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range all {
		f.unsubscribe(sub)
	}
}

func (f *Feed) run(sub *subscription) {
	var tick <-chan time.Time
	if f.pollInterval > 0 {
		ticker := time.NewTicker(f.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-sub.ctx.Done():
			return
		case <-sub.wake:
		case <-tick:
		}

		docs, err := f.read(sub)
		if err != nil {
			if sub.ctx.Err() != nil {
				return
			}
			f.report(sub.collection, err)
			continue
		}

		if sub.ctx.Err() != nil {
			return
		}
		sub.seq++
		f.deliver(sub, Snapshot{Collection: sub.collection, Documents: docs, Seq: sub.seq})
	}
}

func (f *Feed) read(sub *subscription) ([]store.Document, error) {
	ctx := sub.ctx
	if f.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.readTimeout)
		defer cancel()
	}
	return f.lister.List(ctx, sub.collection)
}

// deliver invokes the subscriber; a panic is reported, never propagated
func (f *Feed) deliver(sub *subscription, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			f.report(sub.collection, fmt.Errorf("snapshot handler panicked: %v", r))
		}
	}()

	util.SnapshotsDeliveredTotal.WithLabelValues(sub.collection).Inc()
	sub.fn(snap)
}

func (f *Feed) report(collection string, err error) {
	util.FeedErrorsTotal.WithLabelValues(collection).Inc()
	f.logger.Error("Feed delivery failed",
		zap.String("collection", collection),
		zap.Error(err))
	if f.onError != nil {
		f.onError(collection, err)
	}
}
