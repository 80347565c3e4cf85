package lottery

import (
	"context"
	"fmt"

	"github.com/Ashenafi-pixel/prize-draw-ledger/draw"
	"github.com/Ashenafi-pixel/prize-draw-ledger/ledger"
	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
)

func (s *Service) Admin() string   { return s.admin }
func (s *Service) Account() string { return s.account }

func (s *Service) PrizeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Len()
}

func (s *Service) Prize(index int) (prize.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Get(index)
}

func (s *Service) Prizes() []prize.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Records()
}

// PlayerStats returns zero stats for identities that never bought.
func (s *Service) PlayerStats(player string) PlayerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.players[player]
}

func (s *Service) HistoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Service) History(index int) (DrawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.history) {
		return DrawRecord{}, fmt.Errorf("history %d: %w", index, prize.ErrIndexOutOfRange)
	}
	return s.history[index], nil
}

// HistoryPage returns up to limit records starting at offset. An offset past
// the end yields an empty page.
func (s *Service) HistoryPage(offset, limit int) []DrawRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.history) || limit <= 0 {
		return []DrawRecord{}
	}
	end := min(offset+limit, len(s.history))
	return append([]DrawRecord(nil), s.history[offset:end]...)
}

// State returns the accounting state in one consistent read.
func (s *Service) State() ledger.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.State()
}

// Summary is the accounting state plus table and history sizes, read together.
type Summary struct {
	ledger.State
	PrizeCount   int `json:"prizeCount"`
	HistoryCount int `json:"historyCount"`
}

func (s *Service) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{State: s.ledger.State(), PrizeCount: s.table.Len(), HistoryCount: len(s.history)}
}

func (s *Service) TokenFloat() uint64       { return s.State().TokenFloat }
func (s *Service) RevenueBalance() uint64   { return s.State().RevenueBalance }
func (s *Service) UnitPrice() uint64        { return s.State().UnitPrice }
func (s *Service) TotalTicketsSold() uint64 { return s.State().TotalTicketsSold }

// TokenBalance asks the token for the ledger account's balance. It can differ
// from TokenFloat when tokens reach the account outside DepositTokens.
func (s *Service) TokenBalance(ctx context.Context) (uint64, error) {
	return s.token.BalanceOf(ctx, s.account)
}

// FloatAndBalance reads the booked float and the account's token balance
// with writers held off, so the pair is not skewed by a purchase in between.
func (s *Service) FloatAndBalance(ctx context.Context) (float, balance uint64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balance, err = s.token.BalanceOf(ctx, s.account)
	return s.ledger.State().TokenFloat, balance, err
}

// Snapshot returns a deep copy of the whole state, history included.
func (s *Service) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(true)
}

// Simulate runs the draw the next ticket of player would get right now
// without changing any state.
func (s *Service) Simulate(player string) draw.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, _ := s.engine.Draw(draw.Context{
		PrevHash:  s.prevHash,
		Timestamp: uint64(s.clock().Unix()),
		Player:    player,
		Nonce:     s.nonce + 1,
	}, s.table)
	return out
}
