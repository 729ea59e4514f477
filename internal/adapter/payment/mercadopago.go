package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/julpar/coope-buffet/internal/logging"
)

// Client talks to the Mercado-Pago checkout API: preference creation before
// redirecting the customer, and payment lookup when a webhook arrives.
type Client struct {
	base  string
	token string
	http  *http.Client
	log   *slog.Logger
}

func NewClient(apiBase, accessToken string) *Client {
	return &Client{
		base:  apiBase,
		token: accessToken,
		http:  &http.Client{Timeout: 10 * time.Second},
		log:   logging.New("mercadopago"),
	}
}

type PreferenceItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency_id"`
}

type PreferenceInput struct {
	ExternalReference string // order short code
	Items             []PreferenceItem
	SuccessURL        string
	FailureURL        string
	PendingURL        string
	NotificationURL   string
}

type Preference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

// Payment is the subset of the provider's payment resource the order flow
// needs: approval status and the external reference it was created with.
type Payment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

func (c *Client) CreatePreference(ctx context.Context, in PreferenceInput) (*Preference, error) {
	items := make([]PreferenceItem, len(in.Items))
	copy(items, in.Items)
	for i := range items {
		if items[i].Currency == "" {
			items[i].Currency = "ARS"
		}
	}
	body := map[string]any{
		"items":              items,
		"external_reference": in.ExternalReference,
		"back_urls": map[string]string{
			"success": in.SuccessURL,
			"failure": in.FailureURL,
			"pending": in.PendingURL,
		},
		"auto_return":      "approved",
		"notification_url": in.NotificationURL,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode preference: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/checkout/preferences", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Error("create preference failed", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("create preference: provider returned %d", resp.StatusCode)
	}

	var pref Preference
	if err := json.NewDecoder(resp.Body).Decode(&pref); err != nil {
		return nil, fmt.Errorf("decode preference: %w", err)
	}
	return &pref, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/v1/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.log.Error("get payment failed", "status", resp.StatusCode, "body", string(msg))
		return nil, fmt.Errorf("get payment: provider returned %d", resp.StatusCode)
	}

	var p Payment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &p, nil
}
