package main

import "time"

// Config holds server configuration loaded from environment variables
type Config struct {
	Port         int    `envconfig:"PORT" default:"8080"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	RedisURL     string `envconfig:"REDIS_URL" required:"true"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"quorum.db"`

	VendorClientID         string   `envconfig:"VENDOR_CLIENT_ID" required:"true"`
	VendorAuthorizationURL string   `envconfig:"VENDOR_AUTHORIZATION_URL" required:"true"`
	VendorTokenURL         string   `envconfig:"VENDOR_TOKEN_URL" required:"true"`
	VendorDeviceAuthURL    string   `envconfig:"VENDOR_DEVICE_AUTHORIZATION_URL" required:"true"`
	OAuthScopes            []string `envconfig:"OAUTH_SCOPES" default:"org:create_api_key,user:profile"`
	ProviderType           string   `envconfig:"PROVIDER_TYPE" default:"anthropic"`

	StateTTL        time.Duration `envconfig:"STATE_TTL" default:"10m"`
	ExpiryMargin    time.Duration `envconfig:"EXPIRY_MARGIN" default:"5m"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"10m"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}
