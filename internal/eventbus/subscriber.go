package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/WilBtc/sentinel-triage/internal/engine"
	"github.com/WilBtc/sentinel-triage/internal/models"
)

// IngestHandler processes one ingest event. Returning an error makes the
// partition worker retry the same message with backoff, pausing that
// partition; handlers must therefore be idempotent.
type IngestHandler func(event *models.IngestEvent) error

type ingestMsg struct {
	event *models.IngestEvent
	msg   *nats.Msg
}

// Subscriber consumes the ingest topics of all tenants through one durable
// JetStream consumer and fans messages out to a fixed set of partition
// workers, hash-partitioned by tenant. A tenant's findings always land on
// the same partition and are processed strictly in stream order; unrelated
// tenants proceed in parallel. Messages are acked only after the handler
// finishes, so a crash mid-processing results in redelivery, not loss.
type Subscriber struct {
	conn         *nats.Conn
	js           nats.JetStreamContext
	subscription *nats.Subscription
	handler      IngestHandler

	partitions []chan ingestMsg
	wg         sync.WaitGroup
	done       chan struct{}

	// Handler-failure backoff, per partition
	retryBase time.Duration
	retryCap  time.Duration
}

// NewSubscriber connects to NATS for ingest consumption
func NewSubscriber(natsURL string, partitions int, handler IngestHandler) (*Subscriber, error) {
	if partitions < 1 {
		partitions = 1
	}

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

	channels := make([]chan ingestMsg, partitions)
	for i := range channels {
		channels[i] = make(chan ingestMsg, 64)
	}

	log.Printf("Triage subscriber connected to NATS at %s (%d partitions)", natsURL, partitions)

	return &Subscriber{
		conn:       conn,
		js:         js,
		handler:    handler,
		partitions: channels,
		done:       make(chan struct{}),
		retryBase:  1 * time.Second,
		retryCap:   60 * time.Second,
	}, nil
}

// Start launches the partition workers and begins consuming triage.ingest.>
// with a durable consumer and explicit acks.
func (s *Subscriber) Start() error {
	for i, ch := range s.partitions {
		s.wg.Add(1)
		go s.runPartition(i, ch)
	}

	log.Printf("Subscribing to triage.ingest.> (durable: triage-router)")

	sub, err := s.js.Subscribe("triage.ingest.>", s.dispatch,
		nats.Durable("triage-router"),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.MaxAckPending(1024),
		nats.AckWait(5*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to ingest topics: %w", err)
	}

	s.subscription = sub
	log.Printf("Subscribed to ingest topics")

	return nil
}

// dispatch routes one delivery to its tenant's partition. Dispatch order
// follows stream order, so per-tenant FIFO survives the fan-out. A full
// partition channel blocks the dispatcher, which is deliberate backpressure
// against the broker.
func (s *Subscriber) dispatch(msg *nats.Msg) {
	var event models.IngestEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("Failed to unmarshal ingest event on %s: %v (dropping poison message)", msg.Subject, err)
		msg.Ack()
		return
	}

	partition := engine.PartitionFor(event.TenantID, len(s.partitions))

	select {
	case s.partitions[partition] <- ingestMsg{event: &event, msg: msg}:
	case <-s.done:
		// Shutting down: leave unacked for redelivery
	}
}

func (s *Subscriber) runPartition(id int, ch chan ingestMsg) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case item := <-ch:
			s.processWithRetry(id, item)
		}
	}
}

// processWithRetry runs the handler until it succeeds, retrying the same
// message in place with backoff. A failure (finding store outage) therefore
// pauses the whole partition: the findings queued behind it wait, and the
// tenant's stream order survives through to decision creation. Shutdown
// leaves the message unacked for redelivery after restart.
func (s *Subscriber) processWithRetry(id int, item ingestMsg) {
	backoff := s.retryBase

	for {
		err := s.handler(item.event)
		if err == nil {
			item.msg.Ack()
			return
		}

		log.Printf("[Partition %d] Handler failed for %s/%s: %v (retrying in %s)",
			id, item.event.TenantID, item.event.FindingID, err, backoff)

		// Keep the delivery pending so JetStream does not redeliver the
		// message out of order behind the queued ones
		item.msg.InProgress()

		select {
		case <-s.done:
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.retryCap {
			backoff = s.retryCap
		}
	}
}

// Close stops the workers, drains the subscription and closes the connection
func (s *Subscriber) Close() {
	close(s.done)
	s.wg.Wait()

	if s.subscription != nil {
		s.subscription.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
		log.Printf("Triage subscriber disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS
func (s *Subscriber) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}
