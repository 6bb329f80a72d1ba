// Package hermes connects Tasklens to the Hermes NATS bus: task lifecycle
// events in, index and search events out.
package hermes

import (
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject namespace shared with the task service.
const DefaultSubjectPrefix = "swarm"

// Client wraps a NATS connection for Hermes integration.
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// NewClient connects to NATS at url. Connection failures at startup are
// retried in the background.
func NewClient(url string, logger *slog.Logger) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.Name("tasklens"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	return &Client{conn: nc, js: js, logger: logger}, nil
}

// Close drains pending messages and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}

// IsConnected returns true if the NATS connection is active.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
