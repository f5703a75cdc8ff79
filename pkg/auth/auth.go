// Package auth registers users with the external auth provider.
package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const minPasswordLen = 8

// ErrInvalidRegistration is returned when a registration request fails validation.
var ErrInvalidRegistration = errors.New("invalid registration")

// Config points the Registrar at the auth provider.
type Config struct {
	// URL is the provider's base URL (e.g., "https://<project>.supabase.co")
	URL string `toml:"url"`

	// APIKey is sent as both the apikey header and the bearer token.
	APIKey string `toml:"api_key"`
}

// Enabled reports whether the provider is configured.
func (c Config) Enabled() bool {
	return c.URL != "" || c.APIKey != ""
}

// Registration is a sign-up request.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Validate checks the registration before it is sent upstream.
func (r Registration) Validate() error {
	email := strings.TrimSpace(r.Email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return fmt.Errorf("%w: email is invalid", ErrInvalidRegistration)
	}
	if len(r.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRegistration, minPasswordLen)
	}
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidRegistration)
	}
	return nil
}

// User is the provider's view of a newly registered user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProviderError is a non-success answer from the auth provider.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e ProviderError) Error() string {
	return fmt.Sprintf("auth provider returned %d: %s", e.StatusCode, e.Message)
}

// Registrar signs users up with the auth provider.
type Registrar struct {
	config     Config
	httpClient *http.Client
}

// NewRegistrar creates a Registrar. Both URL and APIKey are required.
func NewRegistrar(config Config, httpClient *http.Client) (*Registrar, error) {
	if config.URL == "" {
		return nil, errors.New("auth provider url is required")
	}
	if config.APIKey == "" {
		return nil, errors.New("auth provider api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Registrar{
		config:     Config{URL: strings.TrimRight(config.URL, "/"), APIKey: config.APIKey},
		httpClient: httpClient,
	}, nil
}

// Register validates reg and creates the user upstream.
func (r *Registrar) Register(ctx context.Context, reg Registration) (*User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	body, err := signupBody(reg)
	if err != nil {
		return nil, fmt.Errorf("build signup body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.URL+"/auth/v1/signup", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apikey", r.config.APIKey)
	httpReq.Header.Set("Authorization", "Bearer "+r.config.APIKey)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, ProviderError{StatusCode: httpResp.StatusCode, Message: providerMessage(respBody)}
	}

	// Depending on email confirmation settings the user is either the
	// top-level object or nested under "user".
	user := gjson.GetBytes(respBody, "user")
	if !user.Exists() {
		user = gjson.ParseBytes(respBody)
	}

	return &User{
		ID:    user.Get("id").String(),
		Email: user.Get("email").String(),
	}, nil
}

func signupBody(reg Registration) ([]byte, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "email", strings.TrimSpace(reg.Email))
	if err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "password", reg.Password); err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "data.username", strings.TrimSpace(reg.Username))
}

func providerMessage(body []byte) string {
	for _, path := range []string{"msg", "error_description", "message", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	if len(body) == 0 {
		return "no response body"
	}
	return string(body)
}
