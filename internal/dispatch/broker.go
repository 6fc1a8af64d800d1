package dispatch

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Kind is one of the six subject payload kinds spec.md §4.7 enumerates.
type Kind string

const (
	KindJourneyUpdate       Kind = "journey-updates"
	KindJourneyRemoval      Kind = "journey-removals"
	KindServerUpdate        Kind = "server-updates"
	KindServerRemoval       Kind = "server-removals"
	KindDispatchPostUpdate  Kind = "dispatch-post-updates"
	KindDispatchPostRemoval Kind = "dispatch-post-removals"
)

// Subject builds the canonical broker subject
// "sit-events.<kind>.v1.<server-id>[.<object-id>]" per spec.md §4.7/§5.
func Subject(kind Kind, serverID string, objectID string) string {
	if objectID == "" {
		return fmt.Sprintf("sit-events.%s.v1.%s", kind, serverID)
	}
	return fmt.Sprintf("sit-events.%s.v1.%s.%s", kind, serverID, objectID)
}

// Broker publishes frame payloads to the subject-addressed NATS bus. The
// connect-with-reconnect-options shape is carried from the teacher's
// internal/db/sqlite.go connection-opening style, adapted from a SQL DSN to
// a broker URL.
type Broker struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// DialBroker connects to a NATS server with indefinite reconnect attempts,
// matching spec.md §9's "connection reconnects in the background" policy.
func DialBroker(url string, reconnectWait, maxReconnectWait time.Duration, log zerolog.Logger) (*Broker, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
		nats.ReconnectJitter(0, maxReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("broker disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("broker reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dispatch: connecting to broker: %w", err)
	}
	return &Broker{conn: conn, log: log}, nil
}

// Close closes the broker connection.
func (b *Broker) Close() {
	b.conn.Close()
}

// Publish sends payload on the canonical subject for kind/server/object. A
// publish error is logged and swallowed: per spec.md §9, broker outages
// drop messages rather than fail the tick. A nil Broker is a no-op, so
// callers (and tests) may run with the broker surface disabled.
func (b *Broker) Publish(kind Kind, serverID, objectID string, payload []byte) {
	if b == nil {
		return
	}
	subject := Subject(kind, serverID, objectID)
	if err := b.conn.Publish(subject, payload); err != nil {
		b.log.Warn().Err(err).Str("subject", subject).Msg("dropping broker publish")
	}
}
