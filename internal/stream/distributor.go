// Package stream fans fuel level events out to live subscribers.
package stream

import (
	"sync"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
)

// DefaultBufferSize is the per-subscriber queue length used when none is given.
const DefaultBufferSize = 16

// Distributor is a replay-free multicast channel. Publish never blocks: a
// subscriber whose queue is full misses the event, other subscribers are
// unaffected.
type Distributor struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	closed     bool
	bufferSize int
	metrics    *observability.Metrics
}

// NewDistributor creates a Distributor with the given per-subscriber buffer.
func NewDistributor(bufferSize int, metrics *observability.Metrics) *Distributor {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Distributor{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
		metrics:    metrics,
	}
}

// Publish delivers the event to every current subscriber.
func (d *Distributor) Publish(event domain.FuelLevelEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}
	d.metrics.EventsPublished.Inc()

	for _, sub := range d.subs {
		select {
		case sub.ch <- event:
		default:
			d.metrics.EventsDropped.Inc()
		}
	}
}

// Subscribe registers a new live subscription. It only sees events published
// after this call returns.
func (d *Distributor) Subscribe() *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := &Subscription{
		ch:   make(chan domain.FuelLevelEvent, d.bufferSize),
		dist: d,
	}
	if d.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}

	d.nextID++
	sub.id = d.nextID
	d.subs[sub.id] = sub
	d.metrics.Subscribers.Set(float64(len(d.subs)))
	return sub
}

// Subscribers returns the number of live subscriptions.
func (d *Distributor) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close ends every subscription. Events already queued on a subscription are
// still delivered before its channel reports closed.
func (d *Distributor) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for id, sub := range d.subs {
		delete(d.subs, id)
		sub.closed = true
		close(sub.ch)
	}
	d.metrics.Subscribers.Set(0)
}

func (d *Distributor) unsubscribe(sub *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sub.closed {
		return
	}
	delete(d.subs, sub.id)
	sub.closed = true
	close(sub.ch)
	d.metrics.Subscribers.Set(float64(len(d.subs)))
}

// Subscription is a live handle on the event stream.
type Subscription struct {
	id     uint64
	ch     chan domain.FuelLevelEvent
	dist   *Distributor
	closed bool // guarded by dist.mu
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan domain.FuelLevelEvent {
	return s.ch
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.dist.unsubscribe(s)
}
