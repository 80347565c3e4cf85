package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	b := NewBus(4)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	dropped := b.Publish(PrizeAdded, PrizeData{Index: 2, PayoutAmount: 10, Weight: 5, Active: true})
	assert.Zero(t, dropped)

	for _, ch := range []<-chan Event{a, c} {
		ev := <-ch
		assert.Equal(t, PrizeAdded, ev.Kind)
		assert.Equal(t, 2, ev.Data.(PrizeData).Index)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe()
	defer cancel()

	assert.Zero(t, b.Publish(UnitPriceUpdated, UnitPriceData{Old: 1, New: 2}))
	assert.Equal(t, 1, b.Publish(UnitPriceUpdated, UnitPriceData{Old: 2, New: 3}))

	ev := <-ch
	assert.Equal(t, uint64(2), ev.Data.(UnitPriceData).New)
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := NewBus(1)
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, b.Subscribers())
	assert.Zero(t, b.Publish(DrawSettled, nil))
}

func TestBus_NilIsNoop(t *testing.T) {
	var b *Bus
	assert.Zero(t, b.Publish(TicketPurchased, nil))
}
