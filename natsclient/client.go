// Package natsclient manages the NATS connection and exposes JetStream
// Key-Value buckets as the module's document store.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/errors"
	"github.com/birminghamurbanobservatory/sensor-deployment-manager-sub000/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client manages a NATS connection and its JetStream context.
type Client struct {
	url    string
	logger *slog.Logger

	conn *nats.Conn
	js   jetstream.JetStream

	status atomic.Value // ConnectionStatus

	// Connection options
	clientName    string
	username      string
	password      string
	token         string
	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration

	// Callbacks
	onStatusChange func(ConnectionStatus)

	mu     sync.RWMutex
	closed atomic.Bool
}

// ClientOption configures a Client
type ClientOption func(*Client) error

// WithName sets the client connection name
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithCredentials sets the connection auth. A token takes precedence
// over a username and password pair.
func WithCredentials(username, password, token string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		c.token = token
		return nil
	}
}

// WithReconnect overrides the reconnection policy. maxReconnects of -1
// reconnects forever.
func WithReconnect(maxReconnects int, wait time.Duration) ClientOption {
	return func(c *Client) error {
		if wait <= 0 {
			return errors.New("reconnect wait must be positive")
		}
		c.maxReconnects = maxReconnects
		c.reconnectWait = wait
		return nil
	}
}

// WithTimeout sets the connect and request timeout
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		c.timeout = d
		return nil
	}
}

// WithStatusCallback registers a callback invoked on every connection
// status transition. Used to feed the health monitor.
func WithStatusCallback(fn func(ConnectionStatus)) ClientOption {
	return func(c *Client) error {
		c.onStatusChange = fn
		return nil
	}
}

// NewClient creates a new NATS client with optional configuration
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:           url,
		logger:        slog.Default().With("component", "natsclient"),
		maxReconnects: -1, // reconnect forever
		reconnectWait: 2 * time.Second,
		timeout:       5 * time.Second,
		drainTimeout:  30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("natsclient: apply option: %w", err)
		}
	}

	c.status.Store(StatusDisconnected)
	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
	if c.onStatusChange != nil {
		c.onStatusChange(status)
	}
}

// Connect establishes the NATS connection, retrying with backoff until
// the server is reachable or ctx is cancelled. Once connected, the
// underlying nats.Conn handles reconnection itself; this retry covers
// only initial establishment.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("natsclient: client is closed")
	}
	c.setStatus(StatusConnecting)

	natsOpts := []nats.Option{
		nats.Name(c.clientName),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("nats disconnected", "error", err)
			}
			c.setStatus(StatusReconnecting)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			c.setStatus(StatusConnected)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusClosed)
		}),
	}
	if c.token != "" {
		natsOpts = append(natsOpts, nats.Token(c.token))
	} else if c.username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(c.username, c.password))
	}

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  10,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}, func() error {
		conn, err := nats.Connect(c.url, natsOpts...)
		if err != nil {
			c.logger.Warn("nats connect attempt failed", "url", c.url, "error", err)
			return err
		}

		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return retry.NonRetryable(fmt.Errorf("create jetstream context: %w", err))
		}

		c.mu.Lock()
		c.conn = conn
		c.js = js
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("natsclient: connect to %s: %w", c.url, err)
	}

	c.setStatus(StatusConnected)
	c.logger.Info("nats connected", "url", c.url)
	return nil
}

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.js
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// EnsureBucket creates or binds the named KV bucket. History depth
// controls how many revisions JetStream retains per key; context
// documents are immutable once closed so a shallow history suffices.
func (c *Client) EnsureBucket(ctx context.Context, name string, history uint8) (jetstream.KeyValue, error) {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()
	if js == nil {
		return nil, errors.New("natsclient: not connected")
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  name,
		History: history,
	})
	if err != nil {
		return nil, fmt.Errorf("natsclient: ensure bucket %s: %w", name, err)
	}
	return kv, nil
}

// Request sends a request and waits for a single reply.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn := c.Conn()
	if conn == nil {
		return nil, errors.New("natsclient: not connected")
	}
	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("natsclient: request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Respond subscribes to subject and serves each request with handler.
// The handler's return value is published as the reply.
func (c *Client) Respond(subject string, handler func(ctx context.Context, data []byte) []byte) (*nats.Subscription, error) {
	conn := c.Conn()
	if conn == nil {
		return nil, errors.New("natsclient: not connected")
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		reply := handler(ctx, msg.Data)
		if msg.Reply != "" {
			if err := msg.Respond(reply); err != nil {
				c.logger.Warn("reply publish failed", "subject", subject, "error", err)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("natsclient: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// Close drains and closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.js = nil
	c.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		if err := conn.Drain(); err != nil {
			conn.Close()
			return fmt.Errorf("natsclient: drain: %w", err)
		}
	}
	c.setStatus(StatusClosed)
	return nil
}
