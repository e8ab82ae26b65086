// CLAUDE:SUMMARY HTTP hardening middleware for the unveil server: security headers, body limits, HEAD handling, per-client rate limiting.
// Package shield provides the HTTP middleware stack placed in front of the
// unveil API.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.Stack(shield.DefaultOptions()) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
	"time"
)

// Options configures Stack.
type Options struct {
	Headers HeaderConfig
	// MaxBody caps request bodies in bytes. Zero disables the limit.
	MaxBody int64
	// RateLimit is the number of requests a client may make per Window.
	// Zero disables rate limiting.
	RateLimit int
	Window    time.Duration
	// Exclude lists path prefixes that bypass rate limiting.
	Exclude []string
}

// DefaultOptions returns the stack used by the unveil server.
func DefaultOptions() Options {
	return Options{
		Headers:   DefaultHeaders(),
		MaxBody:   64 * 1024,
		RateLimit: 600,
		Window:    time.Minute,
		Exclude:   []string{"/health"},
	}
}

// Stack returns the middleware for opts, ordered:
// HeadToGet, SecurityHeaders, MaxBody, rate limiter.
func Stack(opts Options) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(opts.Headers),
	}
	if opts.MaxBody > 0 {
		stack = append(stack, MaxBody(opts.MaxBody))
	}
	if opts.RateLimit > 0 {
		stack = append(stack, NewRateLimiter(opts.RateLimit, opts.Window, opts.Exclude...).Middleware)
	}
	return stack
}
