package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to a Razorpay-compatible REST API with basic auth.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	currency  string
	http      *http.Client
}

func NewClient(baseURL, keyID, keySecret, currency string) *Client {
	return &Client{
		baseURL:   baseURL,
		keyID:     keyID,
		keySecret: keySecret,
		currency:  currency,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CreateIntent(ctx context.Context, amountPaise int64) (Intent, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":          amountPaise,
		"currency":        c.currency,
		"payment_capture": 1,
	})
	if err != nil {
		return Intent{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Intent{}, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("create intent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intent{}, fmt.Errorf("create intent: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}

	return Intent{ID: out.ID, AmountPaise: amountPaise, Currency: c.currency, KeyID: c.keyID}, nil
}

// VerifySignature recomputes HMAC-SHA256(secret, "<intentID>|<paymentID>") and
// compares it to the callback signature in constant time.
func (c *Client) VerifySignature(intentID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	fmt.Fprintf(mac, "%s|%s", intentID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) FetchPaidAmount(ctx context.Context, paymentID string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch payment: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode payment: %w", err)
	}
	return out.Amount, nil
}
