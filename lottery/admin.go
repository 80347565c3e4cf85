package lottery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Ashenafi-pixel/prize-draw-ledger/events"
)

// AddPrize appends an active prize and returns its index. The weight sum is
// not checked; see draw.Pick for how oversubscribed tables resolve.
func (s *Service) AddPrize(ctx context.Context, caller string, payout, weight uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	idx := s.table.Add(payout, weight)
	s.persistLocked(ctx)
	s.publish(events.PrizeAdded, events.PrizeData{Index: idx, PayoutAmount: payout, Weight: weight, Active: true})
	s.log.WithFields(logrus.Fields{"index": idx, "payout": payout, "weight": weight}).Info("prize added")
	return idx, nil
}

// UpdatePrize replaces the prize at index. Prizes are never removed; set
// active to false to take one out of the draw.
func (s *Service) UpdatePrize(ctx context.Context, caller string, index int, payout, weight uint64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}
	if err := s.table.Update(index, payout, weight, active); err != nil {
		return err
	}
	s.persistLocked(ctx)
	s.publish(events.PrizeUpdated, events.PrizeData{Index: index, PayoutAmount: payout, Weight: weight, Active: active})
	s.log.WithFields(logrus.Fields{"index": index, "payout": payout, "weight": weight, "active": active}).Info("prize updated")
	return nil
}

// DepositTokens pulls amount from the admin's token balance into the ledger
// account and adds it to the float. The admin must have approved the ledger
// account as spender.
func (s *Service) DepositTokens(ctx context.Context, caller string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}
	work := s.ledger.Clone()
	if err := work.Deposit(amount); err != nil {
		return err
	}
	if err := s.token.TransferFrom(ctx, s.account, caller, s.account, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	s.ledger = work
	s.persistLocked(ctx)
	s.observeBalancesLocked()
	float := work.State().TokenFloat
	s.publish(events.PrizePoolUpdated, events.PrizePoolData{Deposited: amount, TokenFloat: float})
	s.log.WithFields(logrus.Fields{"amount": amount, "float": float}).Info("tokens deposited")
	return nil
}

// WithdrawRevenue pays the whole revenue balance to the admin and zeroes it.
// With no revenue it does nothing and returns 0. Without a wallet, ticket
// payments were only booked, never collected, so the withdrawal clears the
// booked balance and credits nothing.
func (s *Service) WithdrawRevenue(ctx context.Context, caller string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	amount := s.ledger.State().RevenueBalance
	if amount == 0 {
		return 0, nil
	}
	if s.wallet != nil {
		if err := s.wallet.Credit(ctx, s.admin, amount, "withdraw-"+uuid.NewString()); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		}
	}
	s.ledger.WithdrawRevenue()
	s.persistLocked(ctx)
	s.observeBalancesLocked()
	s.publish(events.RevenueWithdrawn, events.RevenueData{To: s.admin, Amount: amount})
	s.log.WithFields(logrus.Fields{"amount": amount, "credited": s.wallet != nil}).Info("revenue withdrawn")
	return amount, nil
}

func (s *Service) SetUnitPrice(ctx context.Context, caller string, price uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.authorize(caller); err != nil {
		return err
	}
	old := s.ledger.State().UnitPrice
	if err := s.ledger.SetUnitPrice(price); err != nil {
		return err
	}
	s.persistLocked(ctx)
	s.publish(events.UnitPriceUpdated, events.UnitPriceData{Old: old, New: price})
	s.log.WithFields(logrus.Fields{"old": old, "new": price}).Info("unit price updated")
	return nil
}
