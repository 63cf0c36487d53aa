package config

// APIConfig configures the HTTP API.
type APIConfig struct {
	// Addr is the listen address; empty disables the API.
	Addr string `json:"addr"`
	// Token protects write endpoints with a bearer token when set.
	Token string `json:"token"`
}
