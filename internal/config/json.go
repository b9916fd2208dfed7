package config

import (
	"encoding/json"
	"os"
)

// EnvConfigFile names the environment variable pointing at the optional
// JSON config file.
const EnvConfigFile = "NOSTRCHAT_CONFIG"

// JsonConfig is a DTO used exclusively for JSON unmarshalling. After
// parsing, values are copied into the runtime Config.
type JsonConfig struct {
	DatabasePath string `json:"database_path"`
	OwnerPubkey  string `json:"owner_pubkey"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// EnvConfigFile. No file, no overlay. Read or unmarshal errors panic;
// a broken config file should stop startup loudly.
func parseJson(cfg *Config) {
	jsonConfigFile := os.Getenv(EnvConfigFile)
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.OwnerPubkey != "" {
		cfg.OwnerPubkey = jc.OwnerPubkey
	}
}
