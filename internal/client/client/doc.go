// Package client contains client-side building blocks for cardgpt.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the card service backend: Login/Register/Profile/Logout, Generate
//     and GenerateAndSave, SaveCards/ListCards/DeleteCard, Community and
//     artifact downloads.
//  2. A concrete HTTP/JSON implementation (see HTTPClient) that carries the
//     credential either as a bearer token or as session cookies, tags every
//     request with an X-Request-ID and maps HTTP statuses and transport
//     failures to the error taxonomy below.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations)
//     wiring an SQLite database with embedded goose migrations. The database
//     only holds the credential medium.
//
// # Error Handling
//
// Failures are *APIError values whose Kind is one of the sentinels
// ErrNetwork, ErrUnauthorized, ErrValidation, ErrServer and
// ErrMalformedResponse; match them with errors.Is. Message extracts the
// server-supplied text for display.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation; a canceled call is reported as a
// wrapped context.Canceled, not as ErrNetwork.
package client
