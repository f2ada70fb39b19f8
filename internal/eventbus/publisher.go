package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

// ErrBrokerUnavailable wraps transient NATS failures after retries are
// exhausted by context cancellation.
var ErrBrokerUnavailable = errors.New("event bus unavailable")

// StreamName holds every triage subject durably so publishes never block on
// consumer availability.
const StreamName = "TRIAGE"

// Subject layout: per-tenant topics, FIFO guaranteed per subject
const (
	subjectIngest = "triage.ingest.%s"
	subjectReview = "triage.review.%s"
	subjectAlert  = "triage.alert.%s"
)

// Backoff for broker outages: base 1s, factor 2, cap 60s
const (
	backoffBase = 1 * time.Second
	backoffCap  = 60 * time.Second
)

// Publisher publishes triage events to NATS JetStream
type Publisher struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	onRetry func() // metrics hook, may be nil
}

// NewPublisher connects to NATS and ensures the TRIAGE stream exists
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if err := ensureStream(js); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("Triage publisher connected to NATS at %s", natsURL)

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"triage.>"},
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	log.Printf("Created JetStream stream %s", StreamName)
	return nil
}

// OnRetry registers a hook invoked once per publish retry
func (p *Publisher) OnRetry(fn func()) {
	p.onRetry = fn
}

// PublishIngest enqueues a finding for triage on the tenant's ingest topic
func (p *Publisher) PublishIngest(ctx context.Context, event *models.IngestEvent) error {
	return p.publish(ctx, fmt.Sprintf(subjectIngest, event.TenantID), event)
}

// PublishReviewPending notifies external consumers that a finding awaits
// human review.
func (p *Publisher) PublishReviewPending(ctx context.Context, event *models.ReviewPendingEvent) error {
	return p.publish(ctx, fmt.Sprintf(subjectReview, event.TenantID), event)
}

// PublishAlert raises a severity alert for a tenant
func (p *Publisher) PublishAlert(ctx context.Context, event *models.AlertEvent) error {
	return p.publish(ctx, fmt.Sprintf(subjectAlert, event.TenantID), event)
}

// publish marshals and publishes with exponential backoff. It returns only
// when the broker acknowledged the message or the context was cancelled:
// findings accumulate upstream during an outage, they are never dropped.
func (p *Publisher) publish(ctx context.Context, subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	backoff := backoffBase
	for {
		_, err := p.js.Publish(subject, data, nats.Context(ctx))
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %v", ErrBrokerUnavailable, subject, err)
		}

		log.Printf("Publish to %s failed: %v (retrying in %s)", subject, err, backoff)
		if p.onRetry != nil {
			p.onRetry()
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrBrokerUnavailable, subject, err)
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Printf("Triage publisher disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
