package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	MechanismCookie = "cookie"
	MechanismToken  = "token"
)

// Config holds runtime settings for the cardgpt CLI.
type Config struct {
	ServerURL      string
	AuthMechanism  string
	RequestTimeout time.Duration
	RevealInterval time.Duration
	PreviewLimit   int
	DBPath         string
	LogFile        string
}

// LoadDefaults populates c with defaults that talk to a local backend.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:5000"
	c.AuthMechanism = MechanismCookie
	c.RequestTimeout = 20 * time.Second
	c.RevealInterval = 300 * time.Millisecond
	c.PreviewLimit = 8
	c.DBPath = "cardgpt.db"
	c.LogFile = ""
}

// Validate reports the first setting the client cannot run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server url is required")
	}
	if c.AuthMechanism != MechanismCookie && c.AuthMechanism != MechanismToken {
		return fmt.Errorf("auth mechanism must be %q or %q, got %q", MechanismCookie, MechanismToken, c.AuthMechanism)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.RevealInterval <= 0 {
		return errors.New("reveal interval must be positive")
	}
	if c.PreviewLimit <= 0 {
		return errors.New("preview limit must be positive")
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	return nil
}

// LoadConfig applies defaults, then environment, JSON and flags in that
// order. Malformed input panics, as it does for the flag package.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
