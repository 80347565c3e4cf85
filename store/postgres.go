package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Ashenafi-pixel/prize-draw-ledger/lottery"
)

// Schema creates the tables Postgres needs. Amounts are NUMERIC(20,0) so the
// full uint64 range fits.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
	ledger_id  TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS draw_records (
	ledger_id     TEXT NOT NULL,
	idx           BIGINT NOT NULL,
	purchase_id   TEXT NOT NULL,
	player        TEXT NOT NULL,
	payout_amount NUMERIC(20,0) NOT NULL,
	prize_index   INTEGER,
	drawn_at      NUMERIC(20,0) NOT NULL,
	nonce         NUMERIC(20,0) NOT NULL,
	roll          INTEGER NOT NULL,
	PRIMARY KEY (ledger_id, idx)
);
`

// Postgres keeps the snapshot as JSONB and the history as one row per draw.
// Several ledgers can share the tables; rows are keyed by ledgerID.
type Postgres struct {
	db       *sql.DB
	ledgerID string
}

func NewPostgres(db *sql.DB, ledgerID string) *Postgres {
	return &Postgres{db: db, ledgerID: ledgerID}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, Schema)
	return err
}

func (p *Postgres) Load(ctx context.Context) (*lottery.Snapshot, error) {
	var state []byte
	err := p.db.QueryRowContext(ctx, "SELECT state FROM ledger_snapshots WHERE ledger_id = $1", p.ledgerID).Scan(&state)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap lottery.Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT purchase_id, player, payout_amount::text, prize_index, drawn_at::text, nonce::text, roll
		FROM draw_records WHERE ledger_id = $1 ORDER BY idx`, p.ledgerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d                 lottery.DrawRecord
			payout, ts, nonce string
			prizeIndex        sql.NullInt32
		)
		if err := rows.Scan(&d.PurchaseID, &d.Player, &payout, &prizeIndex, &ts, &nonce, &d.Roll); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if d.PayoutAmount, err = strconv.ParseUint(payout, 10, 64); err != nil {
			return nil, fmt.Errorf("history payout %q: %w", payout, err)
		}
		if d.Timestamp, err = strconv.ParseUint(ts, 10, 64); err != nil {
			return nil, fmt.Errorf("history timestamp %q: %w", ts, err)
		}
		if d.Nonce, err = strconv.ParseUint(nonce, 10, 64); err != nil {
			return nil, fmt.Errorf("history nonce %q: %w", nonce, err)
		}
		if prizeIndex.Valid {
			idx := int(prizeIndex.Int32)
			d.PrizeIndex = &idx
		}
		snap.History = append(snap.History, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return &snap, nil
}

// Save upserts the snapshot and the pending draws at their history indices,
// in one transaction.
func (p *Postgres) Save(ctx context.Context, snap *lottery.Snapshot, pending []lottery.DrawRecord) error {
	start := int64(snap.HistoryCount - len(pending))
	if start < 0 {
		return fmt.Errorf("%d draws pending, snapshot counts %d: %w", len(pending), snap.HistoryCount, ErrHistoryGap)
	}
	state := *snap
	state.History = nil
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_snapshots (ledger_id, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (ledger_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		p.ledgerID, string(data)); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	for i, d := range pending {
		var prizeIndex sql.NullInt32
		if d.PrizeIndex != nil {
			prizeIndex = sql.NullInt32{Int32: int32(*d.PrizeIndex), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO draw_records (ledger_id, idx, purchase_id, player, payout_amount, prize_index, drawn_at, nonce, roll)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric, $8::numeric, $9)
			ON CONFLICT (ledger_id, idx) DO UPDATE SET
				purchase_id = EXCLUDED.purchase_id, player = EXCLUDED.player,
				payout_amount = EXCLUDED.payout_amount, prize_index = EXCLUDED.prize_index,
				drawn_at = EXCLUDED.drawn_at, nonce = EXCLUDED.nonce, roll = EXCLUDED.roll`,
			p.ledgerID, start+int64(i), d.PurchaseID, d.Player,
			strconv.FormatUint(d.PayoutAmount, 10), prizeIndex,
			strconv.FormatUint(d.Timestamp, 10), strconv.FormatUint(d.Nonce, 10), int64(d.Roll)); err != nil {
			return fmt.Errorf("save draw %d: %w", start+int64(i), err)
		}
	}
	return tx.Commit()
}
