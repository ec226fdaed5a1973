package ldap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/netresearch/raw-ldap-go/internal/ber"
)

// Dialer opens the TCP connection to the directory server. *net.Dialer
// satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Default settings applied to zero Config fields.
const (
	DefaultDialTimeout            = 5 * time.Second
	DefaultReadTimeout            = 5 * time.Second
	DefaultWriteTimeout           = 5 * time.Second
	DefaultSlowOperationThreshold = time.Second
)

// Config contains the configuration for LDAP connections
type Config struct {
	// Server is a host name, "host:port", or an ldap:// URL.
	Server string
	// Port overrides the port; 0 means the one in Server, else 389.
	Port   int
	BaseDN string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// ReadTimeout bounds each read unless an operation timeout is set.
	ReadTimeout   time.Duration
	BindTimeout   time.Duration
	SearchTimeout time.Duration
	AddTimeout    time.Duration

	// MaxMessageSize caps the declared length of a response (default 10 MiB).
	MaxMessageSize         int
	SlowOperationThreshold time.Duration

	Logger *slog.Logger
	Dialer Dialer
}

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.BindTimeout <= 0 {
		c.BindTimeout = c.ReadTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = c.ReadTimeout
	}
	if c.AddTimeout <= 0 {
		c.AddTimeout = c.ReadTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = ber.DefaultMaxLength
	}
	if c.SlowOperationThreshold <= 0 {
		c.SlowOperationThreshold = DefaultSlowOperationThreshold
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{Timeout: c.DialTimeout}
	}
}

// hostPort resolves Server and Port into a host and a port.
func (c *Config) hostPort() (string, int, error) {
	server := c.Server
	if strings.Contains(server, "://") {
		u, err := url.Parse(server)
		if err != nil {
			return "", 0, fmt.Errorf("invalid server URL: %w", err)
		}
		if u.Scheme != "ldap" {
			return "", 0, fmt.Errorf("unsupported scheme %q: only ldap:// is supported", u.Scheme)
		}
		server = u.Host
	}

	host, port := server, 0
	if h, p, err := net.SplitHostPort(server); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, n
	}
	if c.Port != 0 {
		port = c.Port
	}
	if port == 0 {
		port = DefaultPort
	}
	if host == "" {
		return "", 0, errors.New("server host cannot be empty")
	}
	return host, port, nil
}

// LDAP is a directory client bound as one administrative identity. It keeps
// a single Conn, connecting and binding on first use and again after the
// connection has been torn down by a transport failure.
type LDAP struct {
	config      *Config
	user        string
	password    string
	logger      *slog.Logger
	perfMonitor *PerformanceMonitor

	host string
	port int

	mu   sync.Mutex
	conn *Conn
}

// New creates a new LDAP client with the given configuration and optional
// functional options. No connection is opened until the first operation.
func New(config *Config, username, password string, opts ...Option) (*LDAP, error) {
	start := time.Now()

	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	cfg := *config

	logger := slog.Default()
	if cfg.Logger != nil {
		logger = cfg.Logger
	}

	client := &LDAP{
		config:   &cfg,
		user:     username,
		password: password,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.config.Logger = client.logger
	client.config.applyDefaults()

	fail := func(err error) (*LDAP, error) {
		client.logger.Error("ldap_client_initialization_failed",
			slog.String("server", cfg.Server),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	if cfg.Server == "" {
		return fail(errors.New("server cannot be empty"))
	}
	if cfg.BaseDN == "" {
		return fail(errors.New("base DN cannot be empty"))
	}
	if _, err := ValidateDN(cfg.BaseDN); err != nil {
		return fail(fmt.Errorf("base DN: %w", err))
	}
	if username == "" {
		return fail(errors.New("username cannot be empty"))
	}
	if password == "" {
		return fail(errors.New("password cannot be empty"))
	}

	host, port, err := client.config.hostPort()
	if err != nil {
		return fail(err)
	}
	client.host, client.port = host, port
	client.perfMonitor = NewPerformanceMonitor(client.config.SlowOperationThreshold, client.logger)

	client.logger.Info("ldap_client_initialized",
		slog.String("server", net.JoinHostPort(host, strconv.Itoa(port))),
		slog.String("base_dn", cfg.BaseDN),
		slog.String("bind_dn", username),
		slog.String("password", maskSensitiveData(password)))
	return client, nil
}

// GetConnection returns a bound connection, connecting and binding first if
// the previous one was closed or torn down.
func (l *LDAP) GetConnection(ctx context.Context) (*Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		l.conn = NewConn(l.config)
	}

	switch l.conn.State() {
	case StateBound:
		return l.conn, nil
	case StateDisconnected:
		if err := l.conn.Connect(ctx, l.host, l.port); err != nil {
			return nil, err
		}
	}
	if err := l.conn.Bind(ctx, l.user, l.password); err != nil {
		return nil, err
	}
	return l.conn, nil
}

// Close unbinds and closes the connection, if any.
func (l *LDAP) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil || l.conn.State() == StateDisconnected {
		return nil
	}
	err := l.conn.Unbind()
	l.logger.Info("ldap_client_closed", slog.String("server", l.conn.Server()))
	return err
}

// Stats returns a snapshot of the operation statistics.
func (l *LDAP) Stats() PerformanceStats {
	return l.perfMonitor.GetStats()
}
