package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// OperatorClient talks to a token ledger hosted by an operator over its
// signed action API. Every call is a GET with the action and its parameters
// in the query string and an HMAC-SHA256 signature over the sorted values.
type OperatorClient struct {
	endpoint string
	secret   string
	http     *http.Client
}

// Response is the operator's reply envelope. Code 0 means success.
type Response struct {
	Code       int             `json:"code"`
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Balance    string          `json:"balance,omitempty"`
	Body       json.RawMessage `json:"-"`
	StatusCode int             `json:"-"`
}

// OperatorError is returned when the operator answers with a non-zero code.
type OperatorError struct {
	Action  string
	Code    int
	Status  string
	Message string
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("operator %s: code %d (%s): %s", e.Action, e.Code, e.Status, e.Message)
}

func NewOperatorClient(endpoint, secret string) *OperatorClient {
	return &OperatorClient{
		endpoint: endpoint,
		secret:   secret,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *OperatorClient) call(ctx context.Context, params map[string]string) (*Response, error) {
	values := url.Values{}
	for k, v := range params {
		if v != "" {
			values.Set(k, v)
		}
	}
	if c.secret != "" {
		values.Set("signature", Sign(c.secret, values))
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	u.RawQuery = values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("operator %s: decode response: %w", params["action"], err)
	}
	var parsed Response
	_ = json.Unmarshal(body, &parsed)
	parsed.Body = body
	parsed.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK || parsed.Code != 0 {
		return &parsed, &OperatorError{
			Action:  params["action"],
			Code:    parsed.Code,
			Status:  parsed.Status,
			Message: parsed.Message,
		}
	}
	return &parsed, nil
}

// Sign computes the request signature: HMAC-SHA256 over the concatenated
// values sorted by key, excluding action and signature.
func Sign(secret string, v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		if k == "action" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf := make([]byte, 0, 256)
	for _, k := range keys {
		buf = append(buf, v.Get(k)...)
	}
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(buf)
	return hex.EncodeToString(m.Sum(nil))
}

func (c *OperatorClient) BalanceOf(ctx context.Context, account string) (uint64, error) {
	resp, err := c.call(ctx, map[string]string{
		"action":  "balance",
		"account": account,
	})
	if err != nil {
		return 0, err
	}
	bal, err := strconv.ParseUint(resp.Balance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("operator balance: bad amount %q: %w", resp.Balance, err)
	}
	return bal, nil
}

func (c *OperatorClient) Transfer(ctx context.Context, from, to string, amount uint64) error {
	_, err := c.call(ctx, map[string]string{
		"action": "transfer",
		"from":   from,
		"to":     to,
		"amount": formatAmount(amount),
	})
	return err
}

func (c *OperatorClient) TransferFrom(ctx context.Context, spender, from, to string, amount uint64) error {
	_, err := c.call(ctx, map[string]string{
		"action":  "transfer_from",
		"spender": spender,
		"from":    from,
		"to":      to,
		"amount":  formatAmount(amount),
	})
	return err
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
