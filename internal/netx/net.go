// Package netx classifies transport-level failures of outbound HTTP calls.
package netx

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
)

// IsNetworkError reports whether err means no usable response arrived:
// dial and DNS failures, resets, and timeouts (including the http.Client
// timeout and context deadlines).
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsCanceled reports whether err stems from an explicit context cancellation
// rather than a timeout.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
