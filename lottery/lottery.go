// Package lottery runs the ticketed prize draw: purchases, draws and
// settlement against the prize table, admin mutations, and the read API.
//
// All writers hold one lock for the whole of their cycle, external token and
// wallet calls included, so no purchase observes another's half-applied state.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ashenafi-pixel/prize-draw-ledger/draw"
	"github.com/Ashenafi-pixel/prize-draw-ledger/events"
	"github.com/Ashenafi-pixel/prize-draw-ledger/ledger"
	"github.com/Ashenafi-pixel/prize-draw-ledger/metrics"
	"github.com/Ashenafi-pixel/prize-draw-ledger/payment"
	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
	"github.com/Ashenafi-pixel/prize-draw-ledger/token"
)

var (
	ErrUnauthorized   = errors.New("caller is not the admin")
	ErrInvalidPlayer  = errors.New("player identity required")
	ErrTooManyTickets = errors.New("too many tickets in one purchase")
	ErrTransferFailed = errors.New("token transfer failed")
	ErrPaymentFailed  = errors.New("payment failed")
	ErrInvalidConfig  = errors.New("invalid lottery configuration")
)

// PlayerStats is the per-identity purchase tally.
type PlayerStats struct {
	TicketsBought uint64 `json:"ticketsBought"`
	TotalWinnings uint64 `json:"totalWinnings"`
}

// DrawRecord is one history entry, written once per ticket.
// PrizeIndex is nil when the ticket did not win.
type DrawRecord struct {
	Player       string `json:"player"`
	PayoutAmount uint64 `json:"payoutAmount"`
	PrizeIndex   *int   `json:"prizeIndex"`
	Timestamp    uint64 `json:"timestamp"`
	PurchaseID   string `json:"purchaseId"`
	Nonce        uint64 `json:"nonce"`
	Roll         uint64 `json:"roll"`
}

// Snapshot is the full persisted state of a Service.
type Snapshot struct {
	Ledger   ledger.State           `json:"ledger"`
	Prizes   []prize.Record         `json:"prizes"`
	Players  map[string]PlayerStats `json:"players"`
	History  []DrawRecord           `json:"history"`
	Nonce    uint64                 `json:"nonce"`
	PrevHash string                 `json:"prevHash"`

	// HistoryCount is the history length the snapshot was taken at.
	HistoryCount int `json:"historyCount"`
}

// Store persists snapshots. Load returns nil and no error when nothing was
// saved yet.
//
// Save receives the snapshot without History and the records not yet
// confirmed by an earlier Save. They are the last len(pending) records of a
// history snap.HistoryCount long; a store writes them at those indices,
// replacing whatever it holds there. A failed Save must leave the stored
// history as it was, and the same records come back on the next call.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot, pending []DrawRecord) error
}

type Options struct {
	// Admin is the single identity allowed to run admin operations.
	Admin string
	// Account is the ledger's own identity on the prize token.
	Account string
	// UnitPrice and Prizes seed a fresh ledger; ignored when Store has state.
	UnitPrice uint64
	Prizes    *prize.Table
	// Seed derives the initial context hash.
	Seed string
	// MaxTickets caps a single purchase. Zero means no cap.
	MaxTickets uint64

	Token   token.Token
	Wallet  payment.Wallet
	Store   Store
	Bus     *events.Bus
	Metrics *metrics.Metrics
	Entropy draw.Entropy
	Clock   func() time.Time
	Logger  logrus.FieldLogger
}

// Service owns the ledger state.
type Service struct {
	mu sync.RWMutex

	admin      string
	account    string
	maxTickets uint64

	table    *prize.Table
	ledger   *ledger.Ledger
	players  map[string]PlayerStats
	history  []DrawRecord
	nonce    uint64
	prevHash draw.Hash
	// saved is how much of history the store has confirmed.
	saved int

	engine  *draw.Engine
	token   token.Token
	wallet  payment.Wallet
	store   Store
	bus     *events.Bus
	metrics *metrics.Metrics
	clock   func() time.Time
	log     logrus.FieldLogger
}

// New builds a Service, restoring state from opts.Store when it has any.
// A fresh ledger books the account's current token balance as its float.
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.Admin == "" || opts.Account == "" {
		return nil, fmt.Errorf("%w: admin and account are required", ErrInvalidConfig)
	}
	if opts.Token == nil {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidConfig)
	}
	s := &Service{
		admin:      opts.Admin,
		account:    opts.Account,
		maxTickets: opts.MaxTickets,
		players:    make(map[string]PlayerStats),
		engine:     draw.NewEngine(opts.Entropy),
		token:      opts.Token,
		wallet:     opts.Wallet,
		store:      opts.Store,
		bus:        opts.Bus,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	var snap *Snapshot
	if s.store != nil {
		var err error
		if snap, err = s.store.Load(ctx); err != nil {
			return nil, fmt.Errorf("load ledger: %w", err)
		}
	}
	if snap != nil {
		if err := s.restore(snap, opts.Seed); err != nil {
			return nil, err
		}
		if len(s.history) != snap.HistoryCount {
			s.log.WithFields(logrus.Fields{
				"stored":   len(s.history),
				"snapshot": snap.HistoryCount,
			}).Warn("stored history length differs from snapshot")
		}
		s.log.WithFields(logrus.Fields{
			"history": len(s.history),
			"prizes":  s.table.Len(),
			"float":   s.ledger.State().TokenFloat,
		}).Info("ledger restored")
	} else {
		l, err := ledger.New(opts.UnitPrice)
		if err != nil {
			return nil, err
		}
		s.ledger = l
		s.table = opts.Prizes
		if s.table == nil {
			s.table = prize.DefaultTable()
		} else {
			s.table = s.table.Clone()
		}
		s.prevHash = draw.SeedHash(opts.Seed)
		bal, err := s.token.BalanceOf(ctx, s.account)
		if err != nil {
			return nil, fmt.Errorf("read token balance: %w", err)
		}
		if bal > 0 {
			if err := s.ledger.Deposit(bal); err != nil {
				return nil, err
			}
		}
		s.persistLocked(ctx)
	}
	s.metrics.Balances(s.ledger.State().TokenFloat, s.ledger.State().RevenueBalance)
	return s, nil
}

func (s *Service) restore(snap *Snapshot, seed string) error {
	l, err := ledger.FromState(snap.Ledger)
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	s.ledger = l
	s.table = prize.NewTable(snap.Prizes)
	for k, v := range snap.Players {
		s.players[k] = v
	}
	s.history = append([]DrawRecord(nil), snap.History...)
	s.saved = len(s.history)
	s.nonce = snap.Nonce
	if snap.PrevHash == "" {
		s.prevHash = draw.SeedHash(seed)
		return nil
	}
	if s.prevHash, err = draw.ParseHash(snap.PrevHash); err != nil {
		return fmt.Errorf("restore context hash: %w", err)
	}
	return nil
}

func (s *Service) authorize(caller string) error {
	if caller != s.admin {
		return ErrUnauthorized
	}
	return nil
}

// snapshotLocked copies the state. History is included only when withHistory is set.
func (s *Service) snapshotLocked(withHistory bool) *Snapshot {
	snap := &Snapshot{
		Ledger:       s.ledger.State(),
		Prizes:       s.table.Records(),
		Players:      make(map[string]PlayerStats, len(s.players)),
		Nonce:        s.nonce,
		PrevHash:     s.prevHash.String(),
		HistoryCount: len(s.history),
	}
	for k, v := range s.players {
		snap.Players[k] = v
	}
	if withHistory {
		snap.History = append([]DrawRecord(nil), s.history...)
	}
	return snap
}

// persistLocked saves after a committed change. Failures are logged; the
// in-memory state stays authoritative and draws the store has not confirmed
// are sent again with the next save.
func (s *Service) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	pending := s.history[s.saved:]
	if err := s.store.Save(ctx, s.snapshotLocked(false), pending); err != nil {
		s.log.WithError(err).WithField("pending", len(pending)).Error("persist ledger")
		return
	}
	s.saved = len(s.history)
}

// PendingDraws is the number of draws not yet confirmed by the store.
func (s *Service) PendingDraws() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history) - s.saved
}

func (s *Service) publish(kind events.Kind, data any) {
	if dropped := s.bus.Publish(kind, data); dropped > 0 {
		s.log.WithFields(logrus.Fields{"event": kind, "dropped": dropped}).Warn("slow event subscribers")
	}
}

func (s *Service) observeBalancesLocked() {
	st := s.ledger.State()
	s.metrics.Balances(st.TokenFloat, st.RevenueBalance)
}
