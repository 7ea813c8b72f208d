package gateway

import (
	"fmt"
	"os"

	"mdmdispatch/internal/config"
)

// Config holds APNs credentials and settings. All credential fields are
// required; Validate runs at startup and a failure is fatal.
type Config struct {
	TeamID      string // Apple developer team ID
	KeyID       string // APNs auth key ID
	AuthKeyPath string // path to the PKCS#8 .p8 signing key
	Topic       string // APNs topic (the MDM push topic)
	Production  bool   // production vs development APNs host
}

// LoadConfigFromEnv loads APNs configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		TeamID:      config.GetEnv("APNS_TEAM_ID", ""),
		KeyID:       config.GetEnv("APNS_KEY_ID", ""),
		AuthKeyPath: config.GetEnv("APNS_AUTH_KEY_PATH", ""),
		Topic:       config.GetEnv("APNS_TOPIC", ""),
		Production:  config.GetBoolEnv("APNS_PRODUCTION", false),
	}
}

// Validate checks that all required settings are present and the signing key
// is readable.
func (c Config) Validate() error {
	if c.TeamID == "" {
		return fmt.Errorf("APNs team ID (APNS_TEAM_ID) is not configured")
	}
	if c.KeyID == "" {
		return fmt.Errorf("APNs key ID (APNS_KEY_ID) is not configured")
	}
	if c.Topic == "" {
		return fmt.Errorf("APNs topic (APNS_TOPIC) is not configured")
	}
	if c.AuthKeyPath == "" {
		return fmt.Errorf("APNs auth key path (APNS_AUTH_KEY_PATH) is not configured")
	}
	info, err := os.Stat(c.AuthKeyPath)
	if err != nil {
		return fmt.Errorf("APNs auth key not readable at %s: %w", c.AuthKeyPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("APNs auth key path %s is a directory", c.AuthKeyPath)
	}
	return nil
}
