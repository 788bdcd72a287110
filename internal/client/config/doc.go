// Package config loads runtime settings for the cardgpt CLI.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed CARDGPT_, optionally seeded from a
//     .env file (-e/-env, or ./.env when present).
//  3. An optional JSON file selected with -c or -config.
//  4. Command-line flags.
//
// Flags
//
//	-a string   backend base URL
//	-m string   auth mechanism: cookie or token
//	-t int      request timeout in seconds
//	-d string   path of the local credential database
//	-l string   log file; empty logs warnings to stderr
//
// # JSON schema
//
// Intervals use timex.Duration, so they may be strings like "300ms" or
// integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:5000",
//	  "auth_mechanism": "token",
//	  "request_timeout": "20s",
//	  "reveal_interval": "300ms",
//	  "preview_limit": 8,
//	  "db_path": "cardgpt.db",
//	  "log_file": "cardgpt.log"
//	}
package config
