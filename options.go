package ldap

import (
	"log/slog"
	"time"
)

// Option represents a functional option for configuring an LDAP client.
type Option func(*LDAP)

// WithLogger sets a custom structured logger for LDAP operations.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	client, err := New(&config, adminDN, password, WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(l *LDAP) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithTimeout sets the read timeout of every operation.
func WithTimeout(timeout time.Duration) Option {
	return func(l *LDAP) {
		if timeout > 0 {
			l.config.ReadTimeout = timeout
			l.config.BindTimeout = timeout
			l.config.SearchTimeout = timeout
			l.config.AddTimeout = timeout
		}
	}
}

// WithReadTimeout sets the default read timeout used by operations that
// have no timeout of their own.
func WithReadTimeout(timeout time.Duration) Option {
	return func(l *LDAP) {
		if timeout > 0 {
			l.config.ReadTimeout = timeout
		}
	}
}

// WithDialer replaces the dialer used to open connections.
func WithDialer(d Dialer) Option {
	return func(l *LDAP) {
		if d != nil {
			l.config.Dialer = d
		}
	}
}

// WithMaxMessageSize caps the declared length of a response message.
func WithMaxMessageSize(n int) Option {
	return func(l *LDAP) {
		if n > 0 {
			l.config.MaxMessageSize = n
		}
	}
}

// WithSlowOperationThreshold sets the duration above which operations are
// logged as slow.
func WithSlowOperationThreshold(d time.Duration) Option {
	return func(l *LDAP) {
		if d > 0 {
			l.config.SlowOperationThreshold = d
		}
	}
}
