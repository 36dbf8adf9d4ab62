// Package dashboard owns the live order and product subscriptions and the
// views derived from them.
package dashboard

import (
	"errors"
	"sync"
	"time"

	"order-console/internal/feed"
	"order-console/internal/models"
	"order-console/internal/normalize"
	"order-console/internal/util"
	"order-console/internal/views"

	"go.uber.org/zap"
)

// Lifecycle errors
var (
	ErrAlreadyStarted = errors.New("dashboard already started")
	ErrDisposed       = errors.New("dashboard disposed")
)

// Lifecycle is the subscription state of a Dashboard
type Lifecycle int

const (
	Unsubscribed Lifecycle = iota
	Subscribed
	Disposed
)

func (l Lifecycle) String() string {
	switch l {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribed:
		return "subscribed"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Collections names the two collections a Dashboard follows
type Collections struct {
	Orders   string
	Products string
}

// Dashboard keeps the derived views in step with the order and product feeds.
type Dashboard struct {
	feed        feed.ChangeFeed
	collections Collections
	logger      *zap.Logger

	lifeMu sync.Mutex
	unsubs []func()
	done   chan struct{}
	exited chan struct{}

	mailMu  sync.Mutex
	pending map[string]feed.Snapshot
	wake    chan struct{}

	// written only by the loop goroutine
	model model

	mu       sync.RWMutex
	state    Lifecycle
	views    models.Views
	seen     map[string]bool
	selected *models.Order
}

// NewDashboard creates a dashboard over the change feed
func NewDashboard(f feed.ChangeFeed, collections Collections) *Dashboard {
	return &Dashboard{
		feed:        f,
		collections: collections,
		logger:      util.GetLogger(),
		pending:     make(map[string]feed.Snapshot),
		wake:        make(chan struct{}, 1),
		views:       views.Build(nil, nil),
		seen:        make(map[string]bool),
	}
}

// Start opens the order and product subscriptions
func (d *Dashboard) Start() error {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	d.mu.Lock()
	switch d.state {
	case Subscribed:
		d.mu.Unlock()
		return ErrAlreadyStarted
	case Disposed:
		d.mu.Unlock()
		return ErrDisposed
	}
	d.state = Subscribed
	d.mu.Unlock()

	d.done = make(chan struct{})
	d.exited = make(chan struct{})
	go d.loop(d.done, d.exited)

	d.unsubs = []func(){
		d.feed.Subscribe(d.collections.Orders, d.enqueue),
		d.feed.Subscribe(d.collections.Products, d.enqueue),
	}

	d.logger.Info("Dashboard started",
		zap.String("orders", d.collections.Orders),
		zap.String("products", d.collections.Products))
	return nil
}

// Stop releases both subscriptions. Once Stop returns no snapshot, including
// one already in flight, changes the views. Calling Stop again is a no-op.
func (d *Dashboard) Stop() {
	d.lifeMu.Lock()
	defer d.lifeMu.Unlock()

	d.mu.Lock()
	prev := d.state
	d.state = Disposed
	d.mu.Unlock()

	if prev != Subscribed {
		return
	}

	close(d.done)
	for _, unsub := range d.unsubs {
		unsub()
	}
	d.unsubs = nil
	<-d.exited

	d.logger.Info("Dashboard stopped")
}

// State reports the lifecycle state
func (d *Dashboard) State() Lifecycle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Ready reports whether both collections have delivered a snapshot
func (d *Dashboard) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state == Subscribed && d.seen[d.collections.Orders] && d.seen[d.collections.Products]
}

// Views returns the current derived views. The slices are shared with other
// readers and must not be modified.
func (d *Dashboard) Views() models.Views {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.views
}

// Select marks an order as the one being inspected
func (d *Dashboard) Select(order models.Order) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = &order
}

// SelectByID selects the order with id from the current order list
func (d *Dashboard) SelectByID(id string) (models.Order, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.views.Orders {
		if o.ID == id {
			d.selected = &o
			return o, true
		}
	}
	return models.Order{}, false
}

// Clear drops the selection
func (d *Dashboard) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = nil
}

// Selected returns the inspected order, if any
func (d *Dashboard) Selected() (models.Order, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.selected == nil {
		return models.Order{}, false
	}
	return *d.selected, true
}

// enqueue is the feed callback; it only parks the snapshot and never blocks
func (d *Dashboard) enqueue(snap feed.Snapshot) {
	d.mailMu.Lock()
	select {
	case <-d.done:
		d.mailMu.Unlock()
		util.EventsDiscardedTotal.Inc()
		return
	default:
	}
	d.pending[snap.Collection] = snap
	d.mailMu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dashboard) loop(done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)
	for {
		select {
		case <-done:
			return
		case <-d.wake:
		}
		d.drain()
	}
}

// drain folds every parked snapshot into the model and publishes the result
func (d *Dashboard) drain() {
	d.mailMu.Lock()
	batch := d.pending
	d.pending = make(map[string]feed.Snapshot)
	d.mailMu.Unlock()

	if len(batch) == 0 {
		return
	}

	start := time.Now()
	next := d.model
	for _, name := range []string{d.collections.Orders, d.collections.Products} {
		if snap, ok := batch[name]; ok {
			next = reduce(next, d.collections, snap)
		}
	}

	d.mu.Lock()
	if d.state != Subscribed {
		d.mu.Unlock()
		util.EventsDiscardedTotal.Add(float64(len(batch)))
		return
	}
	d.model = next
	d.views = next.views
	for name := range batch {
		d.seen[name] = true
	}
	d.mu.Unlock()

	util.ViewRecomputationsTotal.Inc()
	util.ViewRecomputeLatency.Observe(time.Since(start).Seconds())
	publishGauges(next.views.Stats)
}

// model is the reducer state: the latest records of both collections and
// the views built from them
type model struct {
	orders   []models.Order
	products []models.Product
	views    models.Views
}

// reduce applies one snapshot and rebuilds every view from scratch
func reduce(prev model, collections Collections, snap feed.Snapshot) model {
	next := prev
	switch snap.Collection {
	case collections.Orders:
		next.orders = normalize.Orders(snap.Documents)
	case collections.Products:
		next.products = normalize.Products(snap.Documents)
	default:
		return prev
	}
	next.views = views.Build(next.orders, next.products)
	return next
}

func publishGauges(stats models.DashboardStats) {
	util.DashboardOrders.Set(float64(stats.OrderCount))
	util.DashboardPendingOrders.Set(float64(stats.PendingCount))
	util.DashboardCatalogSize.Set(float64(stats.CatalogSize))
	util.DashboardTotalSales.Set(stats.TotalSales.InexactFloat64())
}
