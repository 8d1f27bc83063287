// Package events publishes an optional ingest notification to NATS after a
// record is durably inserted into the Store. Nothing in §4 requires this —
// AUDITOR's core contract is satisfied by the Store alone — but it gives a
// downstream consumer (a dashboard, a billing pipeline) a way to react to
// new records without polling, the same role NATS plays for the teacher's
// events/DLQ backends.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/metrics"
)

// Config configures the optional NATS publisher.
type Config struct {
	// URL is the NATS server URL. Empty disables publishing entirely.
	URL string

	// SubjectPrefix namespaces published subjects: "<prefix>.ingest".
	SubjectPrefix string
}

// Publisher publishes ingest notifications. It satisfies
// internal/apiserver.EventPublisher.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// New connects to NATS per cfg. It returns (nil, nil) when cfg.URL is
// empty, the signal that publishing is disabled — apiserver.Options.Events
// being nil skips the call entirely.
func New(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("auditor"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				klog.ErrorS(err, "nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			klog.InfoS("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "auditor"
	}

	return &Publisher{conn: conn, subject: prefix + ".ingest"}, nil
}

// PublishIngest publishes recordID to the ingest subject. Failures are
// logged and counted, never returned: a notification is a convenience, not
// part of the ingest contract, and must not make an otherwise-successful
// insert look like a failure to the caller.
func (p *Publisher) PublishIngest(recordID string) {
	if p == nil {
		return
	}
	if err := p.conn.Publish(p.subject, []byte(recordID)); err != nil {
		metrics.EventsPublishErrorsTotal.Inc()
		klog.ErrorS(err, "failed to publish ingest notification", "record_id", recordID)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(p.subject).Inc()
}

// Close drains and closes the underlying NATS connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		klog.ErrorS(err, "nats drain failed")
	}
}

// Connected reports whether the publisher has an active NATS connection,
// for readiness reporting.
func (p *Publisher) Connected(ctx context.Context) bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}
