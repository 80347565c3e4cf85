package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PlatformClient moves payment currency through the platform balance API
// using a service token.
type PlatformClient struct {
	baseURL  string
	token    string
	currency string
	http     *http.Client
}

func NewPlatformClient(baseURL, serviceToken, currency string) *PlatformClient {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if currency == "" {
		currency = "ETH"
	}
	return &PlatformClient{
		baseURL:  baseURL,
		token:    serviceToken,
		currency: currency,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *PlatformClient) authHeader() string {
	return "Bearer " + c.token
}

// Debit charges account for a ticket purchase (POST /api/balance/bet).
func (c *PlatformClient) Debit(ctx context.Context, account string, amount uint64, ref string) error {
	return c.post(ctx, "/api/balance/bet", account, amount, ref)
}

// Credit pays account (POST /api/balance/win).
func (c *PlatformClient) Credit(ctx context.Context, account string, amount uint64, ref string) error {
	return c.post(ctx, "/api/balance/win", account, amount, ref)
}

// Rollback refunds the debit made under ref (POST /api/balance/rollback).
// The platform books it against the original bet, not as a win.
func (c *PlatformClient) Rollback(ctx context.Context, ref string) error {
	return c.send(ctx, "/api/balance/rollback", map[string]interface{}{
		"betId":    ref,
		"currency": c.currency,
	})
}

func (c *PlatformClient) post(ctx context.Context, path, account string, amount uint64, ref string) error {
	return c.send(ctx, path, map[string]interface{}{
		"account":   account,
		"currency":  c.currency,
		"amount":    amount,
		"reference": ref,
	})
}

func (c *PlatformClient) send(ctx context.Context, path string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader())
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	var data struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(respBody, &data)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform %s: status %d: %s", path, resp.StatusCode, data.Error)
	}
	return nil
}
