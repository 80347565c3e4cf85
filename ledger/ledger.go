// Package ledger keeps the two balances of the draw ledger: payment-currency
// revenue collected from ticket sales and the prize-token float that funds
// payouts.
package ledger

import (
	"errors"
	"fmt"
	"math/bits"
)

var (
	ErrInvalidTicketCount    = errors.New("must buy at least 1 ticket")
	ErrPaymentMismatch       = errors.New("incorrect payment amount")
	ErrInsufficientPrizePool = errors.New("insufficient prize pool")
	ErrInsufficientFloat     = errors.New("insufficient token float")
	ErrInvalidPrice          = errors.New("price must be greater than 0")
	ErrInvalidAmount         = errors.New("amount must be greater than 0")
	ErrOverflow              = errors.New("amount overflows")
)

// State is the accounting state. The zero value is not usable: UnitPrice must be set.
type State struct {
	UnitPrice        uint64 `json:"unitPrice"`
	TotalTicketsSold uint64 `json:"totalTicketsSold"`
	RevenueBalance   uint64 `json:"revenueBalance"`
	TokenFloat       uint64 `json:"tokenFloat"`
}

// Ledger applies accounting rules to a State. It is a plain value holder;
// callers serialize access.
type Ledger struct {
	state State
}

// New returns a ledger with the given unit price.
func New(unitPrice uint64) (*Ledger, error) {
	if unitPrice == 0 {
		return nil, ErrInvalidPrice
	}
	return &Ledger{state: State{UnitPrice: unitPrice}}, nil
}

// FromState restores a ledger from a persisted state.
func FromState(s State) (*Ledger, error) {
	if s.UnitPrice == 0 {
		return nil, ErrInvalidPrice
	}
	return &Ledger{state: s}, nil
}

func (l *Ledger) State() State {
	return l.state
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{state: l.state}
}

// Cost returns unitPrice * count.
func (l *Ledger) Cost(count uint64) (uint64, error) {
	hi, lo := bits.Mul64(l.state.UnitPrice, count)
	if hi != 0 {
		return 0, fmt.Errorf("cost of %d tickets: %w", count, ErrOverflow)
	}
	return lo, nil
}

// RecordPurchase validates count and payment and books the sale.
func (l *Ledger) RecordPurchase(count, paid uint64) error {
	if count == 0 {
		return ErrInvalidTicketCount
	}
	cost, err := l.Cost(count)
	if err != nil {
		return err
	}
	if paid != cost {
		return fmt.Errorf("paid %d, want %d: %w", paid, cost, ErrPaymentMismatch)
	}
	tickets, c1 := bits.Add64(l.state.TotalTicketsSold, count, 0)
	revenue, c2 := bits.Add64(l.state.RevenueBalance, paid, 0)
	if c1 != 0 || c2 != 0 {
		return fmt.Errorf("record purchase: %w", ErrOverflow)
	}
	l.state.TotalTicketsSold = tickets
	l.state.RevenueBalance = revenue
	return nil
}

// CheckSolvency fails unless the float covers floor, the largest payout a
// single draw can produce.
func (l *Ledger) CheckSolvency(floor uint64) error {
	if l.state.TokenFloat < floor {
		return fmt.Errorf("float %d below %d: %w", l.state.TokenFloat, floor, ErrInsufficientPrizePool)
	}
	return nil
}

// TrySettle debits payout from the float. A zero payout is a recorded loss and always succeeds.
func (l *Ledger) TrySettle(payout uint64) error {
	if payout > l.state.TokenFloat {
		return fmt.Errorf("payout %d exceeds float %d: %w", payout, l.state.TokenFloat, ErrInsufficientFloat)
	}
	l.state.TokenFloat -= payout
	return nil
}

// Deposit adds amount to the float.
func (l *Ledger) Deposit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	sum, carry := bits.Add64(l.state.TokenFloat, amount, 0)
	if carry != 0 {
		return fmt.Errorf("deposit %d: %w", amount, ErrOverflow)
	}
	l.state.TokenFloat = sum
	return nil
}

// WithdrawRevenue zeroes the revenue balance and returns what it held.
func (l *Ledger) WithdrawRevenue() uint64 {
	amount := l.state.RevenueBalance
	l.state.RevenueBalance = 0
	return amount
}

func (l *Ledger) SetUnitPrice(price uint64) error {
	if price == 0 {
		return ErrInvalidPrice
	}
	l.state.UnitPrice = price
	return nil
}
