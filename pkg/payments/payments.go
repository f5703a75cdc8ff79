// Package payments creates payment intents with the payment processor.
package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultURL is the payment processor's API base.
const DefaultURL = "https://api.stripe.com"

// ErrInvalidPayment is returned when an intent request fails validation.
var ErrInvalidPayment = errors.New("invalid payment")

// Config configures the payment client.
type Config struct {
	// URL is the processor API base. Defaults to DefaultURL.
	URL string `toml:"url"`

	// SecretKey authenticates requests (HTTP basic auth username).
	SecretKey string `toml:"secret_key"`
}

// Enabled reports whether a secret key is configured.
func (c Config) Enabled() bool {
	return c.SecretKey != ""
}

// Intent is the reshaped payment intent returned to the browser.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// ProviderError is a non-success answer from the payment processor.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("payment processor returned %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// Client creates payment intents.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a Client. SecretKey is required.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	if config.SecretKey == "" {
		return nil, errors.New("payment secret key is required")
	}
	if config.URL == "" {
		config.URL = DefaultURL
	}
	config.URL = strings.TrimRight(config.URL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{config: config, httpClient: httpClient}, nil
}

// ValidateIntent checks an amount (in minor currency units) and an ISO
// currency code, returning the normalized currency.
func ValidateIntent(amount int64, currency string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPayment)
	}
	for _, r := range currency {
		if r < 'a' || r > 'z' {
			return "", fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPayment)
		}
	}
	return currency, nil
}

// CreatePaymentIntent creates an intent for amount minor units of currency.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	currency, err := ValidateIntent(amount, currency)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.config.SecretKey, "")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, ProviderError{
			StatusCode: httpResp.StatusCode,
			Type:       gjson.GetBytes(body, "error.type").String(),
			Message:    gjson.GetBytes(body, "error.message").String(),
		}
	}

	intent := gjson.ParseBytes(body)
	secret := intent.Get("client_secret").String()
	if secret == "" {
		return nil, errors.New("payment intent has no client secret")
	}

	return &Intent{
		ID:           intent.Get("id").String(),
		ClientSecret: secret,
		Amount:       intent.Get("amount").Int(),
		Currency:     intent.Get("currency").String(),
	}, nil
}
