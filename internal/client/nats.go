// Package client holds outbound integrations: the NATS connection and the
// notification event publisher.
package client

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	apperrors "github.com/harborline/be-procurement-requests/internal/errors"
)

// NATSClient is a thin wrapper over a NATS connection with context-aware
// publishing.
type NATSClient struct {
	conn *nats.Conn
}

// ConnectNATS dials the NATS server. The connection reconnects indefinitely
// in the background; publishing while disconnected buffers until flush.
func ConnectNATS(url, name string) (*NATSClient, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to connect to NATS")
	}
	return &NATSClient{conn: conn}, nil
}

// Publish sends one message and flushes it within the context deadline.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to publish NATS message")
	}
	return c.conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
