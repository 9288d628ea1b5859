package live

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/skyward/flighttrack/internal/tracker"
	"github.com/skyward/flighttrack/pkg/logger"
)

// DefaultTransitionSubject is the NATS subject squawk transitions publish to
const DefaultTransitionSubject = "flighttrack.squawk.transitions"

// NATSPublisher publishes enriched squawk transitions to a NATS subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *logger.Logger
}

// NewNATSPublisher connects to a NATS server. An empty subject falls back to
// DefaultTransitionSubject.
func NewNATSPublisher(url, subject string, log *logger.Logger) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultTransitionSubject
	}
	conn, err := nats.Connect(url,
		nats.Name("flighttrack"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("Connected to NATS",
		logger.String("url", url),
		logger.String("subject", subject))

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  log.Named("nats"),
	}, nil
}

// PublishTransition sends one transition as JSON
func (p *NATSPublisher) PublishTransition(rec tracker.TransitionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode transition: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish transition: %w", err)
	}
	return nil
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Drain()
	}
}
