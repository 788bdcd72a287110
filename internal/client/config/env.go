package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cardgpt/internal/flagx"
	"github.com/joho/godotenv"
)

const (
	envServerURL      = "CARDGPT_SERVER_URL"
	envAuthMechanism  = "CARDGPT_AUTH_MECHANISM"
	envRequestTimeout = "CARDGPT_REQUEST_TIMEOUT"
	envRevealInterval = "CARDGPT_REVEAL_INTERVAL"
	envPreviewLimit   = "CARDGPT_PREVIEW_LIMIT"
	envDBPath         = "CARDGPT_DB_PATH"
	envLogFile        = "CARDGPT_LOG_FILE"

	defaultEnvFile = ".env"
)

// loadEnvFile seeds the process environment from a .env file. Variables
// already set win over the file. An explicit -e path must exist; the
// default ./.env is optional.
func loadEnvFile() {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return
		}
		panic(err)
	}
}

// parseEnv overlays cfg with CARDGPT_* variables. Empty variables are
// treated as unset. Durations use time.ParseDuration syntax.
func parseEnv(cfg *Config) {
	loadEnvFile()

	if v := os.Getenv(envServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(envAuthMechanism); v != "" {
		cfg.AuthMechanism = v
	}
	if v := os.Getenv(envRequestTimeout); v != "" {
		cfg.RequestTimeout = mustDuration(envRequestTimeout, v)
	}
	if v := os.Getenv(envRevealInterval); v != "" {
		cfg.RevealInterval = mustDuration(envRevealInterval, v)
	}
	if v := os.Getenv(envPreviewLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(envPreviewLimit + ": " + err.Error())
		}
		cfg.PreviewLimit = n
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogFile); v != "" {
		cfg.LogFile = v
	}
}

func mustDuration(name, v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(name + ": " + err.Error())
	}
	return d
}
