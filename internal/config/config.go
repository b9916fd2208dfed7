// Package config holds runtime settings shared by the nostrchat binaries.
package config

// Config holds runtime settings for the local store.
//
// Fields:
//   - DatabasePath: filesystem path of the SQLite database.
//   - OwnerPubkey: the user's public key (hex); contact and message
//     operations are scoped to it.
type Config struct {
	DatabasePath string
	OwnerPubkey  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "nostrchat.db"
	c.OwnerPubkey = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON if a config file is present. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	return cfg
}
