package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_DebitCredit(t *testing.T) {
	ctx := context.Background()
	w := NewMemory()
	w.Fund("alice", 30)

	require.NoError(t, w.Debit(ctx, "alice", 20, "p1"))
	assert.Equal(t, uint64(10), w.Balance("alice"))
	assert.ErrorIs(t, w.Debit(ctx, "alice", 11, "p2"), ErrInsufficientFunds)

	require.NoError(t, w.Credit(ctx, "admin", 20, "w1"))
	assert.Equal(t, uint64(20), w.Balance("admin"))
}

func TestMemory_Rollback(t *testing.T) {
	ctx := context.Background()
	w := NewMemory()
	w.Fund("alice", 30)
	require.NoError(t, w.Debit(ctx, "alice", 20, "p1"))

	require.NoError(t, w.Rollback(ctx, "p1"))
	assert.Equal(t, uint64(30), w.Balance("alice"))
	assert.ErrorIs(t, w.Rollback(ctx, "p1"), ErrUnknownDebit)
	assert.ErrorIs(t, w.Rollback(ctx, "never"), ErrUnknownDebit)
}

func TestPlatformClient(t *testing.T) {
	type call struct {
		Path    string
		Auth    string
		Payload map[string]any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		_ = json.NewDecoder(r.Body).Decode(&p)
		calls = append(calls, call{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Payload: p})
		if p["account"] == "broke" {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient balance"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewPlatformClient(srv.URL, "svc", "")

	require.NoError(t, c.Debit(ctx, "alice", 30, "purchase-1"))
	require.NoError(t, c.Credit(ctx, "admin", 30, "withdraw-1"))
	err := c.Debit(ctx, "broke", 1, "purchase-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	require.NoError(t, c.Rollback(ctx, "purchase-1"))

	require.Len(t, calls, 4)
	assert.Equal(t, "/api/balance/bet", calls[0].Path)
	assert.Equal(t, "/api/balance/win", calls[1].Path)
	assert.Equal(t, "Bearer svc", calls[0].Auth)
	assert.Equal(t, "ETH", calls[0].Payload["currency"])
	assert.Equal(t, float64(30), calls[0].Payload["amount"])
	assert.Equal(t, "purchase-1", calls[0].Payload["reference"])
	assert.Equal(t, "/api/balance/rollback", calls[3].Path)
	assert.Equal(t, "purchase-1", calls[3].Payload["betId"])
	assert.Equal(t, "Bearer svc", calls[3].Auth)
}
