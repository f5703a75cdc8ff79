package api

// Config is the API server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// SecureCookies marks OAuth state cookies as Secure. Enable behind TLS.
	SecureCookies bool
}
