package stream_test

import (
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/stream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(tankID string, pct float64) domain.FuelLevelEvent {
	return domain.FuelLevelEvent{TankID: tankID, FuelLevelPercentage: pct, Status: domain.Classify(pct)}
}

func receive(t *testing.T, sub *stream.Subscription) domain.FuelLevelEvent {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.FuelLevelEvent{}
	}
}

func assertEmpty(t *testing.T, sub *stream.Subscription) {
	t.Helper()
	select {
	case e, ok := <-sub.C():
		if ok {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
	}
}

func TestDistributor_FanOut(t *testing.T) {
	d := stream.NewDistributor(4, observability.NewMetricsForTesting())

	a := d.Subscribe()
	b := d.Subscribe()
	defer a.Close()
	defer b.Close()

	d.Publish(event("T1", 50))

	assert.Equal(t, "T1", receive(t, a).TankID)
	assert.Equal(t, "T1", receive(t, b).TankID)
	assert.Equal(t, 2, d.Subscribers())
}

func TestDistributor_NoReplay(t *testing.T) {
	d := stream.NewDistributor(4, observability.NewMetricsForTesting())

	d.Publish(event("T1", 10))
	sub := d.Subscribe()
	defer sub.Close()

	assertEmpty(t, sub)

	d.Publish(event("T2", 20))
	assert.Equal(t, "T2", receive(t, sub).TankID)
}

func TestDistributor_PublishWithoutSubscribers(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	d := stream.NewDistributor(1, metrics)

	d.Publish(event("T1", 10))

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsPublished), 0)
}

func TestDistributor_SlowSubscriberDoesNotBlock(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	d := stream.NewDistributor(2, metrics)

	slow := d.Subscribe()
	defer slow.Close()

	done := make(chan struct{})
	go func() {
		for i := range 10 {
			d.Publish(event("T1", float64(i)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a subscriber that never reads")
	}

	// The queue keeps the two oldest events; the rest were dropped.
	assert.InDelta(t, 0, receive(t, slow).FuelLevelPercentage, 0)
	assert.InDelta(t, 1, receive(t, slow).FuelLevelPercentage, 0)
	assertEmpty(t, slow)
	assert.InDelta(t, 8, testutil.ToFloat64(metrics.EventsDropped), 0)
	assert.InDelta(t, 10, testutil.ToFloat64(metrics.EventsPublished), 0)
}

func TestSubscription_CloseStopsDelivery(t *testing.T) {
	d := stream.NewDistributor(4, observability.NewMetricsForTesting())

	a := d.Subscribe()
	b := d.Subscribe()
	defer b.Close()

	a.Close()
	a.Close() // idempotent

	_, ok := <-a.C()
	assert.False(t, ok)
	assert.Equal(t, 1, d.Subscribers())

	d.Publish(event("T1", 30))
	assert.Equal(t, "T1", receive(t, b).TankID)
}

func TestDistributor_Close(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	d := stream.NewDistributor(4, metrics)
	sub := d.Subscribe()

	d.Close()
	d.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Zero(t, d.Subscribers())
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.Subscribers), 0)

	sub.Close()
	d.Publish(event("T1", 30))

	late := d.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok, "subscriptions after Close start closed")
	late.Close()
}

func TestDistributor_CloseDeliversQueuedEvents(t *testing.T) {
	d := stream.NewDistributor(4, observability.NewMetricsForTesting())
	sub := d.Subscribe()

	d.Publish(event("T1", 30))
	d.Publish(event("T2", 60))
	d.Close()

	assert.Equal(t, "T1", receive(t, sub).TankID)
	assert.Equal(t, "T2", receive(t, sub).TankID)
	_, ok := <-sub.C()
	assert.False(t, ok)
}

func TestDistributor_ConcurrentUse(t *testing.T) {
	d := stream.NewDistributor(64, observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := range 50 {
				d.Publish(event("T1", float64(i*j)))
			}
		}()
		go func() {
			defer wg.Done()
			sub := d.Subscribe()
			for range 5 {
				select {
				case <-sub.C():
				case <-time.After(10 * time.Millisecond):
				}
			}
			sub.Close()
		}()
	}
	wg.Wait()

	assert.Zero(t, d.Subscribers())
}
