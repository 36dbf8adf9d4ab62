package feed

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"order-console/internal/models"
	"order-console/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLister struct {
	mu   sync.Mutex
	docs map[string][]store.Document
	err  error
}

func newMemLister() *memLister {
	return &memLister{docs: make(map[string][]store.Document)}
}

func (m *memLister) List(_ context.Context, collection string) ([]store.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]store.Document{}, m.docs[collection]...), nil
}

func (m *memLister) put(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[collection] = append(m.docs[collection], store.Document{Collection: collection, ID: id, Data: "{}"})
}

func (m *memLister) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type collector struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (c *collector) add(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func (c *collector) last() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snaps[len(c.snaps)-1]
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	l := newMemLister()
	l.put("orders", "a")
	f := NewFeed(l)
	defer f.Close()

	c := &collector{}
	unsub := f.Subscribe("orders", c.add)
	defer unsub()

	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
	snap := c.last()
	assert.Equal(t, "orders", snap.Collection)
	assert.Equal(t, uint64(1), snap.Seq)
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "a", snap.Documents[0].ID)
}

func TestNotifyDeliversFullCollection(t *testing.T) {
	l := newMemLister()
	f := NewFeed(l)
	defer f.Close()

	orders := &collector{}
	products := &collector{}
	defer f.Subscribe("orders", orders.add)()
	defer f.Subscribe("products", products.add)()

	require.Eventually(t, func() bool { return orders.count() == 1 && products.count() == 1 }, time.Second, 5*time.Millisecond)

	l.put("orders", "a")
	l.put("orders", "b")
	require.NoError(t, f.Notify(context.Background(), &models.DocumentChangedEvent{Collection: "orders", DocumentID: "b"}))

	require.Eventually(t, func() bool { return len(orders.last().Documents) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, products.count(), "other collections are not woken")
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	l := newMemLister()
	f := NewFeed(l)

	c := &collector{}
	unsub := f.Subscribe("orders", c.add)
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	unsub()
	unsub()
	f.Close()

	l.put("orders", "a")
	f.Wake("orders")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestReadFailureKeepsSubscriptionAlive(t *testing.T) {
	l := newMemLister()
	var reported atomic.Int32
	f := NewFeed(l, WithErrorHandler(func(collection string, err error) {
		assert.Equal(t, "orders", collection)
		reported.Add(1)
	}))
	defer f.Close()

	l.fail(errors.New("unavailable"))
	c := &collector{}
	defer f.Subscribe("orders", c.add)()

	require.Eventually(t, func() bool { return reported.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, c.count())

	l.fail(nil)
	l.put("orders", "a")
	f.Wake("orders")
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHandlerPanicIsContained(t *testing.T) {
	l := newMemLister()
	var reported atomic.Int32
	f := NewFeed(l, WithErrorHandler(func(string, error) { reported.Add(1) }))
	defer f.Close()

	var calls atomic.Int32
	defer f.Subscribe("orders", func(Snapshot) {
		calls.Add(1)
		panic("boom")
	})()

	require.Eventually(t, func() bool { return reported.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.Wake("orders")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPollIntervalRefreshes(t *testing.T) {
	l := newMemLister()
	f := NewFeed(l, WithPollInterval(10*time.Millisecond))
	defer f.Close()

	c := &collector{}
	defer f.Subscribe("products", c.add)()

	l.put("products", "p1")
	require.Eventually(t, func() bool { return c.count() > 0 && len(c.last().Documents) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCallbacksForOneSubscriptionDoNotOverlap(t *testing.T) {
	l := newMemLister()
	f := NewFeed(l)
	defer f.Close()

	var active, overlaps, calls atomic.Int32
	defer f.Subscribe("orders", func(Snapshot) {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		calls.Add(1)
	})()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	for i := 0; i < 50; i++ {
		f.Wake("orders")
	}
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), overlaps.Load())
}

type brokenPublisher struct{}

func (brokenPublisher) Notify(context.Context, *models.DocumentChangedEvent) error {
	return errors.New("publish failed")
}

func TestOwnWritesReachSubscriberWhenPublisherFails(t *testing.T) {
	st, err := store.NewStore(store.DriverSQLite, filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))

	f := NewFeed(st)
	defer f.Close()
	st.SetNotifier(store.Notifiers{f, brokenPublisher{}})

	c := &collector{}
	defer f.Subscribe("products", c.add)()
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, 5*time.Millisecond)

	_, err = st.Insert(context.Background(), "products", map[string]any{"name": "Barfi"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.last().Documents) == 1 }, time.Second, 5*time.Millisecond)
}

func TestPollRecoversLostNotification(t *testing.T) {
	st, err := store.NewStore(store.DriverSQLite, filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Migrate(context.Background()))
	st.SetNotifier(brokenPublisher{})

	f := NewFeed(st, WithPollInterval(20*time.Millisecond))
	defer f.Close()

	c := &collector{}
	defer f.Subscribe("orders", c.add)()
	require.Eventually(t, func() bool { return c.count() >= 1 }, time.Second, 5*time.Millisecond)

	_, err = st.Insert(context.Background(), "orders", map[string]any{"status": "Pending"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(c.last().Documents) == 1 }, 2*time.Second, 10*time.Millisecond)
}
