package lottery

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Ashenafi-pixel/prize-draw-ledger/draw"
	"github.com/Ashenafi-pixel/prize-draw-ledger/events"
	"github.com/Ashenafi-pixel/prize-draw-ledger/ledger"
)

// Receipt describes a completed purchase.
type Receipt struct {
	PurchaseID        string       `json:"purchaseId"`
	Player            string       `json:"player"`
	TicketCount       uint64       `json:"ticketCount"`
	PaidAmount        uint64       `json:"paidAmount"`
	TotalPayout       uint64       `json:"totalPayout"`
	FirstHistoryIndex int          `json:"firstHistoryIndex"`
	Draws             []DrawRecord `json:"draws"`
}

// BuyTickets buys count tickets for player, paying paid in payment currency,
// and draws once per ticket.
//
// The batch is computed on a working copy: validation, the solvency floor and
// every draw and float debit happen before anything leaves the process. Then
// the payment is debited and the batch's total payout is transferred to the
// player in one token transfer. The working copy is published only when both
// succeed; a failed transfer rolls the payment debit back. Either every
// ticket of the call is recorded or none is.
func (s *Service) BuyTickets(ctx context.Context, player string, count, paid uint64) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.buyLocked(ctx, player, count, paid)
	if err != nil {
		s.metrics.Purchase(false, count, paid)
		s.log.WithFields(logrus.Fields{
			"player": player,
			"count":  count,
			"paid":   paid,
		}).WithError(err).Info("purchase rejected")
		return nil, err
	}
	s.metrics.Purchase(true, count, paid)
	for _, d := range rec.Draws {
		s.metrics.Draw(d.PrizeIndex != nil, d.PayoutAmount)
	}
	s.observeBalancesLocked()
	s.log.WithFields(logrus.Fields{
		"purchase": rec.PurchaseID,
		"player":   player,
		"count":    count,
		"payout":   rec.TotalPayout,
	}).Info("tickets purchased")
	return rec, nil
}

func (s *Service) buyLocked(ctx context.Context, player string, count, paid uint64) (*Receipt, error) {
	work := s.ledger.Clone()
	if err := work.RecordPurchase(count, paid); err != nil {
		return nil, err
	}
	if player == "" {
		return nil, ErrInvalidPlayer
	}
	if s.maxTickets > 0 && count > s.maxTickets {
		return nil, fmt.Errorf("%d tickets, limit %d: %w", count, s.maxTickets, ErrTooManyTickets)
	}
	if err := work.CheckSolvency(s.table.MaxActivePayout()); err != nil {
		return nil, err
	}

	purchaseID := uuid.NewString()
	ts := uint64(s.clock().Unix())
	stats := s.players[player]
	prev := s.prevHash
	nonce := s.nonce
	draws := make([]DrawRecord, 0, min(count, 1024))
	var total uint64

	for i := uint64(0); i < count; i++ {
		nonce++
		out, digest := s.engine.Draw(draw.Context{
			PrevHash:  prev,
			Timestamp: ts,
			Player:    player,
			Nonce:     nonce,
		}, s.table)
		prev = digest

		if err := work.TrySettle(out.PayoutAmount); err != nil {
			return nil, err
		}
		// bounded by the float, so total cannot wrap
		total += out.PayoutAmount

		winnings, carry := bits.Add64(stats.TotalWinnings, out.PayoutAmount, 0)
		if carry != 0 {
			return nil, fmt.Errorf("winnings of %s: %w", player, ledger.ErrOverflow)
		}
		stats.TicketsBought++
		stats.TotalWinnings = winnings

		rec := DrawRecord{
			Player:       player,
			PayoutAmount: out.PayoutAmount,
			Timestamp:    ts,
			PurchaseID:   purchaseID,
			Nonce:        nonce,
			Roll:         out.Roll,
		}
		if out.Won {
			idx := out.Index
			rec.PrizeIndex = &idx
		}
		draws = append(draws, rec)
	}

	debited := false
	if s.wallet != nil && paid > 0 {
		if err := s.wallet.Debit(ctx, player, paid, purchaseID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
		}
		debited = true
	}
	if total > 0 {
		if err := s.token.Transfer(ctx, s.account, player, total); err != nil {
			if debited {
				if rerr := s.wallet.Rollback(ctx, purchaseID); rerr != nil {
					s.log.WithFields(logrus.Fields{
						"purchase": purchaseID,
						"player":   player,
						"amount":   paid,
					}).WithError(rerr).Error("refund after failed transfer")
				}
			}
			return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}

	first := len(s.history)
	s.ledger = work
	s.players[player] = stats
	s.history = append(s.history, draws...)
	s.nonce = nonce
	s.prevHash = prev
	s.persistLocked(ctx)

	receipt := &Receipt{
		PurchaseID:        purchaseID,
		Player:            player,
		TicketCount:       count,
		PaidAmount:        paid,
		TotalPayout:       total,
		FirstHistoryIndex: first,
		Draws:             draws,
	}
	s.publish(events.TicketPurchased, events.TicketPurchasedData{
		PurchaseID:   purchaseID,
		Player:       player,
		TicketCount:  count,
		PaidAmount:   paid,
		TotalPayout:  total,
		FirstHistory: first,
	})
	for i, d := range draws {
		s.publish(events.DrawSettled, events.DrawSettledData{
			PurchaseID:   purchaseID,
			HistoryIndex: first + i,
			Player:       player,
			PrizeIndex:   d.PrizeIndex,
			PayoutAmount: d.PayoutAmount,
			Roll:         d.Roll,
		})
	}
	return receipt, nil
}
