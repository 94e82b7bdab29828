package events

import (
	"encoding/json"
	"fmt"
	"time"

	"bridge-relay/internal/bridge"
	"bridge-relay/internal/metrics"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher pushes engine events to NATS. Publishing is best-effort: a
// broken connection degrades observability, never a lifecycle operation.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Logger
}

// NewPublisher connects to NATS. An empty URL returns a nil publisher,
// which every method tolerates.
func NewPublisher(url, subjectPrefix string, timeout time.Duration, logger *logrus.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.NATSConnectionStatus.Set(0)
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			metrics.NATSConnectionStatus.Set(1)
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	metrics.NATSConnectionStatus.Set(1)
	return &Publisher{conn: conn, prefix: subjectPrefix, logger: logger}, nil
}

// Publish sends one event as JSON on "<prefix>.<event type>".
func (p *Publisher) Publish(ev bridge.Event) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.WithError(err).WithField("type", ev.Type).Error("Failed to marshal event")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, ev.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
		return
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type)).Inc()
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.WithError(err).Warn("Failed to drain NATS connection")
	}
}
