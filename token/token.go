// Package token is the prize-token collaborator of the draw ledger: the
// fungible asset payouts are made in.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

var (
	ErrInsufficientBalance   = errors.New("transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("transfer amount exceeds allowance")
	ErrZeroAccount           = errors.New("empty account")
	ErrUnauthorized          = errors.New("caller is not the token owner")
	ErrSupplyOverflow        = errors.New("supply overflow")
)

// Token is what the draw ledger needs from the prize token.
type Token interface {
	BalanceOf(ctx context.Context, account string) (uint64, error)
	// Transfer moves amount from the from account, which must be the caller, to to.
	Transfer(ctx context.Context, from, to string, amount uint64) error
	// TransferFrom moves amount from from to to on spender's allowance.
	TransferFrom(ctx context.Context, spender, from, to string, amount uint64) error
}

// Issuer is the owner-side surface of a token the process hosts itself.
// Remote tokens are administered where they live.
type Issuer interface {
	Approve(ctx context.Context, owner, spender string, amount uint64) error
	Mint(ctx context.Context, caller, to string, amount uint64) error
	Burn(ctx context.Context, caller, from string, amount uint64) error
}

// Memory is an in-process token with balances, allowances and owner-gated
// mint and burn.
type Memory struct {
	mu         sync.Mutex
	owner      string
	supply     uint64
	balances   map[string]uint64
	allowances map[string]map[string]uint64
}

var _ Issuer = (*Memory)(nil)

// NewMemory creates a token whose whole initial supply belongs to owner.
func NewMemory(owner string, supply uint64) *Memory {
	m := &Memory{
		owner:      owner,
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
	}
	if supply > 0 {
		m.balances[owner] = supply
		m.supply = supply
	}
	return m
}

func (m *Memory) TotalSupply() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supply
}

func (m *Memory) BalanceOf(_ context.Context, account string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account], nil
}

func (m *Memory) Transfer(_ context.Context, from, to string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.moveLocked(from, to, amount)
}

func (m *Memory) Approve(_ context.Context, owner, spender string, amount uint64) error {
	if owner == "" || spender == "" {
		return ErrZeroAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allowances[owner] == nil {
		m.allowances[owner] = make(map[string]uint64)
	}
	m.allowances[owner][spender] = amount
	return nil
}

func (m *Memory) Allowance(owner, spender string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[owner][spender]
}

func (m *Memory) TransferFrom(_ context.Context, spender, from, to string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	allowed := m.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("%s spending %d of %s: %w", spender, amount, from, ErrInsufficientAllowance)
	}
	if err := m.moveLocked(from, to, amount); err != nil {
		return err
	}
	m.allowances[from][spender] = allowed - amount
	return nil
}

// Mint creates amount new tokens for to. Only the owner may mint.
func (m *Memory) Mint(_ context.Context, caller, to string, amount uint64) error {
	if to == "" {
		return ErrZeroAccount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrUnauthorized
	}
	supply, c1 := bits.Add64(m.supply, amount, 0)
	bal, c2 := bits.Add64(m.balances[to], amount, 0)
	if c1 != 0 || c2 != 0 {
		return fmt.Errorf("mint %d: %w", amount, ErrSupplyOverflow)
	}
	m.supply = supply
	m.balances[to] = bal
	return nil
}

// Burn destroys amount of from's tokens. Only the owner may burn.
func (m *Memory) Burn(_ context.Context, caller, from string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.owner {
		return ErrUnauthorized
	}
	if m.balances[from] < amount {
		return ErrInsufficientBalance
	}
	m.balances[from] -= amount
	m.supply -= amount
	return nil
}

func (m *Memory) moveLocked(from, to string, amount uint64) error {
	if from == "" || to == "" {
		return ErrZeroAccount
	}
	if m.balances[from] < amount {
		return fmt.Errorf("%s has %d, needs %d: %w", from, m.balances[from], amount, ErrInsufficientBalance)
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}
