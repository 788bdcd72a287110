// Package common contains shared constants and helpers used across
// cardgpt components.
package common

// AuthorizationHeaderName carries the bearer token on outbound requests in
// token mode.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName tags every outbound request so client and server logs
// can be correlated.
const RequestIDHeaderName = "X-Request-ID"
