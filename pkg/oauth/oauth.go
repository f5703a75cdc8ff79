// Package oauth builds the authorization redirects that connect a user's
// social accounts. Completing the token exchange happens elsewhere.
package oauth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	// ErrUnknownPlatform is returned for a platform quill does not support.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrNotConfigured is returned for a supported platform without credentials.
	ErrNotConfigured = errors.New("platform not configured")
)

// Credentials are one platform's OAuth client credentials.
type Credentials struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Config configures the Connector.
type Config struct {
	// RedirectBaseURL is the public base URL callbacks are sent to
	// (e.g., "https://quill.example.com").
	RedirectBaseURL string `toml:"redirect_base_url"`

	// Platforms maps platform names to their credentials.
	Platforms map[string]Credentials `toml:"platforms"`
}

// Authorization is a started authorization: the URL to redirect the user to
// and the values a callback needs to verify it.
type Authorization struct {
	Platform string
	URL      string
	State    string

	// Verifier is the PKCE code verifier, empty when the platform does not use PKCE.
	Verifier string
}

// Connector starts OAuth authorizations.
type Connector struct {
	redirectBase string
	platforms    map[string]Credentials
}

func NewConnector(config Config) *Connector {
	creds := make(map[string]Credentials, len(config.Platforms))
	for name, c := range config.Platforms {
		creds[strings.ToLower(name)] = c
	}

	return &Connector{
		redirectBase: strings.TrimRight(config.RedirectBaseURL, "/"),
		platforms:    creds,
	}
}

// Configured returns the names of platforms that have a client ID.
func (c *Connector) Configured() []string {
	var names []string
	for _, name := range Platforms() {
		if c.platforms[name].ClientID != "" {
			names = append(names, name)
		}
	}
	return names
}

// RedirectURL is where the platform sends the user back to.
func (c *Connector) RedirectURL(platform string) string {
	return c.redirectBase + "/api/connect/" + platform + "/callback"
}

// AuthURL starts an authorization with platform.
func (c *Connector) AuthURL(platform string) (*Authorization, error) {
	p, ok := Lookup(platform)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}

	creds := c.platforms[p.Name]
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, p.Name)
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     p.Endpoint,
		RedirectURL:  c.RedirectURL(p.Name),
		Scopes:       p.scopes(),
	}

	auth := &Authorization{
		Platform: p.Name,
		State:    uuid.NewString(),
	}

	opts := append([]oauth2.AuthCodeOption{}, p.Options...)
	if p.ClientIDParam != "" {
		opts = append(opts, oauth2.SetAuthURLParam(p.ClientIDParam, creds.ClientID))
	}
	if p.PKCE {
		auth.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(auth.Verifier))
	}

	auth.URL = cfg.AuthCodeURL(auth.State, opts...)
	return auth, nil
}
