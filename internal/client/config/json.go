package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cardgpt/internal/flagx"
	"github.com/dmitrijs2005/cardgpt/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Absent keys leave
// the earlier layers untouched.
type JsonConfig struct {
	ServerURL      string          `json:"server_url"`
	AuthMechanism  string          `json:"auth_mechanism"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	RevealInterval *timex.Duration `json:"reveal_interval"`
	PreviewLimit   int             `json:"preview_limit"`
	DBPath         string          `json:"db_path"`
	LogFile        *string         `json:"log_file"`
}

// parseJson overlays cfg with the file named by -c/-config. Without the
// flag it does nothing; an unreadable or malformed file panics.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.AuthMechanism != "" {
		cfg.AuthMechanism = jc.AuthMechanism
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RevealInterval != nil {
		cfg.RevealInterval = jc.RevealInterval.Duration
	}
	if jc.PreviewLimit != 0 {
		cfg.PreviewLimit = jc.PreviewLimit
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.LogFile != nil {
		cfg.LogFile = *jc.LogFile
	}
}
