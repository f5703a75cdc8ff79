package oauth

import (
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Platform describes how to start an authorization with one social network.
type Platform struct {
	Name     string
	Endpoint oauth2.Endpoint
	Scopes   []string

	// ScopeSeparator joins Scopes into a single scope parameter when the
	// provider does not accept space separated scopes.
	ScopeSeparator string

	// ClientIDParam, when set, repeats the client ID under this parameter
	// name for providers that do not read client_id.
	ClientIDParam string

	// PKCE adds an S256 code challenge to the authorization URL.
	PKCE bool

	// Options are extra authorization URL parameters.
	Options []oauth2.AuthCodeOption
}

var platforms = map[string]Platform{
	"twitter": {
		Name: "twitter",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://twitter.com/i/oauth2/authorize",
			TokenURL:  "https://api.twitter.com/2/oauth2/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		PKCE:   true,
	},
	"facebook": {
		Name:           "facebook",
		Endpoint:       endpoints.Facebook,
		Scopes:         []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"},
		ScopeSeparator: ",",
	},
	"instagram": {
		Name: "instagram",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.instagram.com/oauth/authorize",
			TokenURL: "https://api.instagram.com/oauth/access_token",
		},
		Scopes:         []string{"instagram_business_basic", "instagram_business_content_publish"},
		ScopeSeparator: ",",
	},
	"linkedin": {
		Name:     "linkedin",
		Endpoint: endpoints.LinkedIn,
		Scopes:   []string{"openid", "profile", "w_member_social"},
	},
	"tiktok": {
		Name: "tiktok",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://www.tiktok.com/v2/auth/authorize/",
			TokenURL: "https://open.tiktokapis.com/v2/oauth/token/",
		},
		Scopes:         []string{"user.info.basic", "video.upload"},
		ScopeSeparator: ",",
		ClientIDParam:  "client_key",
	},
	"youtube": {
		Name:     "youtube",
		Endpoint: endpoints.Google,
		Scopes: []string{
			"https://www.googleapis.com/auth/youtube.upload",
			"https://www.googleapis.com/auth/youtube.readonly",
		},
		Options: []oauth2.AuthCodeOption{
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"),
		},
	},
}

// Platforms returns the supported platform names.
func Platforms() []string {
	return []string{"twitter", "facebook", "instagram", "linkedin", "tiktok", "youtube"}
}

// Lookup returns the platform registered under name.
func Lookup(name string) (Platform, bool) {
	p, ok := platforms[strings.ToLower(name)]
	return p, ok
}

func (p Platform) scopes() []string {
	if p.ScopeSeparator == "" {
		return p.Scopes
	}
	return []string{strings.Join(p.Scopes, p.ScopeSeparator)}
}
