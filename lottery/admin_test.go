package lottery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashenafi-pixel/prize-draw-ledger/events"
	"github.com/Ashenafi-pixel/prize-draw-ledger/ledger"
	"github.com/Ashenafi-pixel/prize-draw-ledger/prize"
	"github.com/Ashenafi-pixel/prize-draw-ledger/token"
)

func TestAdminOps_RejectNonAdmin(t *testing.T) {
	h := newHarness(t, nil, 100_000, nil)
	ctx := context.Background()
	h.wallet.Fund("alice", 1000)
	_, err := h.svc.BuyTickets(ctx, "alice", 2, 2*price)
	require.NoError(t, err)
	require.NoError(t, h.tok.Transfer(ctx, admin, "mallory", 500))
	require.NoError(t, h.tok.Approve(ctx, "mallory", account, 500))

	before := h.svc.Snapshot()
	saves := h.store.saves

	_, err = h.svc.AddPrize(ctx, "mallory", 1, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, h.svc.UpdatePrize(ctx, "mallory", 0, 1, 1, true), ErrUnauthorized)
	assert.ErrorIs(t, h.svc.DepositTokens(ctx, "mallory", 500), ErrUnauthorized)
	_, err = h.svc.WithdrawRevenue(ctx, "mallory")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, h.svc.SetUnitPrice(ctx, "mallory", 1), ErrUnauthorized)

	assert.Equal(t, before, h.svc.Snapshot())
	assert.Equal(t, saves, h.store.saves)
	assert.Zero(t, h.wallet.Balance("mallory"))
	assert.Equal(t, uint64(500), h.balance("mallory"))
}

func TestAddPrize_AppendsActiveRecord(t *testing.T) {
	h := newHarness(t, nil, 0, nil)
	ctx := context.Background()
	sub, cancel := h.bus.Subscribe()
	defer cancel()

	idx, err := h.svc.AddPrize(ctx, admin, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, idx)
	assert.Equal(t, 6, h.svc.PrizeCount())

	rec, err := h.svc.Prize(idx)
	require.NoError(t, err)
	assert.Equal(t, prize.Record{PayoutAmount: 42, Weight: 7, Active: true}, rec)

	ev := <-sub
	assert.Equal(t, events.PrizeAdded, ev.Kind)
	assert.Equal(t, idx, ev.Data.(events.PrizeData).Index)
}

func TestAddPrize_AcceptsOversubscribedTable(t *testing.T) {
	h := newSingle(t, 100, 6000, 100, scripted(9999))
	ctx := context.Background()
	_, err := h.svc.AddPrize(ctx, admin, 50, 6000)
	require.NoError(t, err)
	_, err = h.svc.AddPrize(ctx, admin, 10, 500)
	require.NoError(t, err)
	h.wallet.Fund("alice", 100)

	rec, err := h.svc.BuyTickets(ctx, "alice", 1, price)
	require.NoError(t, err)
	require.NotNil(t, rec.Draws[0].PrizeIndex)
	assert.Equal(t, 1, *rec.Draws[0].PrizeIndex)
	assert.Equal(t, uint64(50), rec.TotalPayout)
}

func TestUpdatePrize(t *testing.T) {
	h := newHarness(t, nil, 0, nil)
	ctx := context.Background()

	require.NoError(t, h.svc.UpdatePrize(ctx, admin, 2, 9, 99, false))
	rec, err := h.svc.Prize(2)
	require.NoError(t, err)
	assert.Equal(t, prize.Record{PayoutAmount: 9, Weight: 99, Active: false}, rec)

	err = h.svc.UpdatePrize(ctx, admin, 5, 1, 1, true)
	assert.ErrorIs(t, err, prize.ErrIndexOutOfRange)
	assert.Equal(t, 5, h.svc.PrizeCount())
}

func TestDeactivatedPrizeNeverWins(t *testing.T) {
	table := prize.NewTable([]prize.Record{
		{PayoutAmount: 100, Weight: 5000, Active: false},
		{PayoutAmount: 7, Weight: 5000, Active: true},
	})
	h := newHarness(t, table, 1000, scripted(0, 4999, 5000, 9999))
	h.wallet.Fund("alice", 100)

	rec, err := h.svc.BuyTickets(context.Background(), "alice", 4, 4*price)
	require.NoError(t, err)
	for i, d := range rec.Draws[:2] {
		require.NotNil(t, d.PrizeIndex, i)
		assert.Equal(t, 1, *d.PrizeIndex)
	}
	for _, d := range rec.Draws[2:] {
		assert.Nil(t, d.PrizeIndex)
	}
}

func TestReads_IndexOutOfRange(t *testing.T) {
	h := newHarness(t, nil, 100_000, nil)
	_, err := h.svc.Prize(h.svc.PrizeCount())
	assert.ErrorIs(t, err, prize.ErrIndexOutOfRange)
	_, err = h.svc.Prize(-1)
	assert.ErrorIs(t, err, prize.ErrIndexOutOfRange)

	_, err = h.svc.History(0)
	assert.ErrorIs(t, err, prize.ErrIndexOutOfRange)

	h.wallet.Fund("alice", 100)
	_, err = h.svc.BuyTickets(context.Background(), "alice", 3, 3*price)
	require.NoError(t, err)
	_, err = h.svc.History(2)
	assert.NoError(t, err)
	_, err = h.svc.History(h.svc.HistoryCount())
	assert.ErrorIs(t, err, prize.ErrIndexOutOfRange)
}

func TestHistoryPage(t *testing.T) {
	h := newHarness(t, nil, 100_000, nil)
	h.wallet.Fund("alice", 100)
	_, err := h.svc.BuyTickets(context.Background(), "alice", 5, 5*price)
	require.NoError(t, err)

	page := h.svc.HistoryPage(1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].Nonce)
	assert.Equal(t, uint64(3), page[1].Nonce)

	assert.Len(t, h.svc.HistoryPage(4, 10), 1)
	assert.Empty(t, h.svc.HistoryPage(5, 10))
	assert.Empty(t, h.svc.HistoryPage(0, 0))
	assert.Len(t, h.svc.HistoryPage(-3, 2), 2)
}

func TestDepositTokens(t *testing.T) {
	h := newHarness(t, nil, 0, nil)
	ctx := context.Background()

	assert.ErrorIs(t, h.svc.DepositTokens(ctx, admin, 0), ledger.ErrInvalidAmount)

	err := h.svc.DepositTokens(ctx, admin, 500)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Zero(t, h.svc.TokenFloat())

	sub, cancel := h.bus.Subscribe()
	defer cancel()
	require.NoError(t, h.tok.Approve(ctx, admin, account, 500))
	require.NoError(t, h.svc.DepositTokens(ctx, admin, 500))
	assert.Equal(t, uint64(500), h.svc.TokenFloat())
	assert.Equal(t, uint64(500), h.balance(account))

	bal, err := h.svc.TokenBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)

	ev := <-sub
	assert.Equal(t, events.PrizePoolUpdated, ev.Kind)
	assert.Equal(t, events.PrizePoolData{Deposited: 500, TokenFloat: 500}, ev.Data)
}

func TestWithdrawRevenue(t *testing.T) {
	h := newHarness(t, nil, 100_000, nil)
	ctx := context.Background()

	amount, err := h.svc.WithdrawRevenue(ctx, admin)
	require.NoError(t, err)
	assert.Zero(t, amount)

	h.wallet.Fund("alice", 100)
	_, err = h.svc.BuyTickets(ctx, "alice", 4, 4*price)
	require.NoError(t, err)
	require.Equal(t, uint64(40), h.svc.RevenueBalance())

	amount, err = h.svc.WithdrawRevenue(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), amount)
	assert.Zero(t, h.svc.RevenueBalance())
	assert.Equal(t, uint64(40), h.wallet.Balance(admin))
	assert.Equal(t, uint64(4), h.svc.TotalTicketsSold())
}

func TestWithdrawRevenue_WithoutWalletClearsBookedRevenue(t *testing.T) {
	ctx := context.Background()
	tok := token.NewMemory(admin, 1_000_000)
	require.NoError(t, tok.Transfer(ctx, admin, account, 100_000))
	svc, err := New(ctx, Options{
		Admin:     admin,
		Account:   account,
		UnitPrice: price,
		Token:     tok,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	_, err = svc.BuyTickets(ctx, "alice", 2, 2*price)
	require.NoError(t, err)

	amount, err := svc.WithdrawRevenue(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(2*price), amount)
	assert.Zero(t, svc.RevenueBalance())
	assert.Equal(t, uint64(2), svc.TotalTicketsSold())
}

func TestSetUnitPrice(t *testing.T) {
	h := newHarness(t, nil, 100_000, nil)
	ctx := context.Background()

	assert.ErrorIs(t, h.svc.SetUnitPrice(ctx, admin, 0), ledger.ErrInvalidPrice)
	assert.Equal(t, uint64(price), h.svc.UnitPrice())

	require.NoError(t, h.svc.SetUnitPrice(ctx, admin, 3))
	h.wallet.Fund("alice", 100)
	_, err := h.svc.BuyTickets(ctx, "alice", 2, 2*price)
	assert.ErrorIs(t, err, ledger.ErrPaymentMismatch)
	_, err = h.svc.BuyTickets(ctx, "alice", 2, 6)
	assert.NoError(t, err)
}
