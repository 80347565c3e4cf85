// Package events fans ledger notifications out to subscribers.
package events

import (
	"sync"
	"time"
)

type Kind string

const (
	TicketPurchased  Kind = "TicketPurchased"
	DrawSettled      Kind = "DrawSettled"
	PrizeAdded       Kind = "PrizeAdded"
	PrizeUpdated     Kind = "PrizeUpdated"
	PrizePoolUpdated Kind = "PrizePoolUpdated"
	RevenueWithdrawn Kind = "RevenueWithdrawn"
	UnitPriceUpdated Kind = "UnitPriceUpdated"
)

// Event is one notification. Data holds a kind-specific payload.
type Event struct {
	Kind Kind      `json:"kind"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

type TicketPurchasedData struct {
	PurchaseID   string `json:"purchaseId"`
	Player       string `json:"player"`
	TicketCount  uint64 `json:"ticketCount"`
	PaidAmount   uint64 `json:"paidAmount"`
	TotalPayout  uint64 `json:"totalPayout"`
	FirstHistory int    `json:"firstHistoryIndex"`
}

type DrawSettledData struct {
	PurchaseID   string `json:"purchaseId"`
	HistoryIndex int    `json:"historyIndex"`
	Player       string `json:"player"`
	PrizeIndex   *int   `json:"prizeIndex"`
	PayoutAmount uint64 `json:"payoutAmount"`
	Roll         uint64 `json:"roll"`
}

type PrizeData struct {
	Index        int    `json:"index"`
	PayoutAmount uint64 `json:"payoutAmount"`
	Weight       uint64 `json:"weight"`
	Active       bool   `json:"active"`
}

type PrizePoolData struct {
	Deposited  uint64 `json:"deposited"`
	TokenFloat uint64 `json:"tokenFloat"`
}

type RevenueData struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type UnitPriceData struct {
	Old uint64 `json:"old"`
	New uint64 `json:"new"`
}

// Bus delivers events to subscribers without blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
	now    func() time.Time
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[int]chan Event), buffer: buffer, now: time.Now}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish stamps and delivers an event. It returns the number of
// subscribers that dropped it.
func (b *Bus) Publish(kind Kind, data any) int {
	if b == nil {
		return 0
	}
	ev := Event{Kind: kind, Time: b.now().UTC(), Data: data}
	b.mu.RLock()
	defer b.mu.RUnlock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
