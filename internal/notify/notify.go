// Package notify publishes import lifecycle events so downstream consumers
// (reporting, CRM sync) can react without polling the history API.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/caseflow-systems/caseflow-import/internal/logging"
)

// ImportCompleted is published after each completed processing run.
type ImportCompleted struct {
	ImportID   string    `json:"import_id"`
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	FinishedAt time.Time `json:"finished_at"`
}

// Notifier is the publishing port. A nil *NATSNotifier is a valid no-op.
type Notifier interface {
	ImportCompleted(ctx context.Context, event ImportCompleted) error
}

// NATSNotifier publishes events to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *logging.Logger
}

func NewNATSNotifier(url, subject string, logger *logging.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("caseflow-importd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", logging.Error(err))
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSNotifier{conn: conn, subject: subject, logger: logger}, nil
}

func (n *NATSNotifier) ImportCompleted(ctx context.Context, event ImportCompleted) error {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish import event: %w", err)
	}
	return nil
}

func (n *NATSNotifier) Close() {
	if n == nil {
		return
	}
	n.conn.Drain()
}
