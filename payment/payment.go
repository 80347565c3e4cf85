// Package payment is the payment-currency side of the draw ledger: tickets
// are paid from a purchaser's wallet and revenue is withdrawn to the admin's.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownDebit      = errors.New("no open debit for reference")
)

// Wallet debits and credits payment currency. ref identifies the ledger
// operation the movement belongs to. Rollback reverses the debit made under
// ref; it is a refund, not a payout.
type Wallet interface {
	Debit(ctx context.Context, account string, amount uint64, ref string) error
	Credit(ctx context.Context, account string, amount uint64, ref string) error
	Rollback(ctx context.Context, ref string) error
}

type debit struct {
	account string
	amount  uint64
}

// Memory is an in-process wallet.
type Memory struct {
	mu       sync.Mutex
	balances map[string]uint64
	debits   map[string]debit
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]uint64),
		debits:   make(map[string]debit),
	}
}

func (m *Memory) Fund(account string, amount uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
}

func (m *Memory) Balance(account string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

func (m *Memory) Debit(_ context.Context, account string, amount uint64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[account] < amount {
		return fmt.Errorf("debit %s for %s: %w", account, ref, ErrInsufficientFunds)
	}
	m.balances[account] -= amount
	m.debits[ref] = debit{account: account, amount: amount}
	return nil
}

func (m *Memory) Credit(_ context.Context, account string, amount uint64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] += amount
	return nil
}

// Rollback returns the debit made under ref to its account, once.
func (m *Memory) Rollback(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.debits[ref]
	if !ok {
		return fmt.Errorf("rollback %s: %w", ref, ErrUnknownDebit)
	}
	delete(m.debits, ref)
	m.balances[d.account] += d.amount
	return nil
}
