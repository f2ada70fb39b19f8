package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/WilBtc/sentinel-triage/internal/classifier"
	"github.com/WilBtc/sentinel-triage/internal/config"
	"github.com/WilBtc/sentinel-triage/internal/engine"
	"github.com/WilBtc/sentinel-triage/internal/eventbus"
	"github.com/WilBtc/sentinel-triage/internal/findingstore"
	"github.com/WilBtc/sentinel-triage/internal/metrics"
	"github.com/WilBtc/sentinel-triage/internal/reconciler"
	"github.com/WilBtc/sentinel-triage/internal/router"
	"github.com/WilBtc/sentinel-triage/internal/sla"
	"github.com/WilBtc/sentinel-triage/internal/slastore"
	"github.com/WilBtc/sentinel-triage/internal/store"
)

// Orchestrator manages the triage service lifecycle and coordinates the
// router, the SLA tracker and the feedback reconciler.
//
// Lifecycle:
//  1. Start() - Connects stores and broker, wires the pipeline
//  2. Run()   - Starts ingest consumption and background tasks, blocks until cancelled
//  3. Stop()  - Gracefully closes all connections and resources
//
// Degradation policy:
//   - NATS failure: no ingest, no notifications (service non-functional)
//   - Postgres failure: no decisions can be recorded (service non-functional)
//   - Redis failure: SLA deadlines cannot survive restarts (service non-functional)
//   - Gemini failure or no API key: rule-based classifier serves every finding
type Orchestrator struct {
	config *config.Config
	policy *config.Policy

	// Persistent stores
	store    *store.Store
	slaStore *slastore.Client

	// External collaborators
	findings *findingstore.Client
	gemini   *classifier.GeminiClassifier

	// Pipeline components
	publisher  *eventbus.Publisher
	subscriber *eventbus.Subscriber
	router     *router.Router
	tracker    *sla.Tracker
	reconciler *reconciler.Reconciler
}

// NewOrchestrator creates an Orchestrator; nothing runs until Start()
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{config: cfg}
}

// Start connects every dependency and wires the pipeline. The context
// passed here bounds the lifetime of all in-flight triage work.
func (o *Orchestrator) Start(ctx context.Context) error {
	log.Printf("Starting Triage Orchestrator...")

	policy, err := config.LoadPolicy(o.config.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	o.policy = policy

	st, err := store.New(ctx, o.config.PostgresURL)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres (required): %w", err)
	}
	o.store = st

	slaStore, err := slastore.NewClient(o.config.RedisAddr, o.config.RedisPassword, o.config.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis (required): %w", err)
	}
	o.slaStore = slaStore

	o.findings = findingstore.NewClient(o.config.FindingStoreURL)
	log.Printf("Finding store client ready: %s", o.config.FindingStoreURL)

	publisher, err := eventbus.NewPublisher(o.config.NatsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS (required): %w", err)
	}
	publisher.OnRetry(metrics.PublishRetries.Inc)
	o.publisher = publisher

	o.initializeRouter(ctx)

	subscriber, err := eventbus.NewSubscriber(o.config.NatsURL, o.config.Partitions, o.router.Process)
	if err != nil {
		return fmt.Errorf("failed to create NATS subscriber: %w", err)
	}
	o.subscriber = subscriber

	o.tracker = sla.NewTracker(o.slaStore, o.findings, o.publisher, o.config.SLASweepInterval)
	o.reconciler = reconciler.New(o.store, o.findings, o.slaStore, o.config.ReconcileInterval)

	log.Printf("Triage Orchestrator started successfully")
	return nil
}

// initializeRouter builds the decision engine and the router. Gemini is
// optional: without an API key the deterministic rule classifier serves
// alone, which keeps the pipeline fully functional offline.
func (o *Orchestrator) initializeRouter(ctx context.Context) {
	rules := classifier.NewRuleClassifier()

	var primary classifier.Classifier
	if o.config.GeminiAPIKey != "" {
		gemini, err := classifier.NewGeminiClassifier(ctx, o.config.GeminiAPIKey, o.config.GeminiModel)
		if err != nil {
			log.Printf("Warning: failed to initialize Gemini classifier: %v", err)
			log.Printf("All findings will be classified by rules")
		} else {
			o.gemini = gemini
			primary = gemini
		}
	} else {
		log.Printf("No GEMINI_API_KEY configured, using rule-based classifier only")
	}

	strategy := classifier.NewFallbackClassifier(primary, rules, o.config.ReasoningTimeout)
	strategy.OnFallback(metrics.FallbackActivations.Inc)
	triageEngine := engine.NewEngine(strategy)

	o.router = router.New(ctx, o.config, o.policy,
		o.findings, o.store, o.store, o.slaStore, o.publisher, triageEngine)
}

// Run starts ingest consumption and the background tasks, blocking until
// the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.subscriber.Start(); err != nil {
		return fmt.Errorf("failed to start ingest subscriber: %w", err)
	}
	log.Printf("Ingest subscriber started - consuming findings")

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return o.tracker.Run(groupCtx)
	})
	group.Go(func() error {
		return o.reconciler.Run(groupCtx)
	})

	return ignoreCanceled(group.Wait())
}

// ignoreCanceled maps cooperative-cancellation errors, possibly wrapped by
// the background tasks, to nil so a clean shutdown does not surface as a
// failure.
func ignoreCanceled(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop gracefully closes all connections and resources
func (o *Orchestrator) Stop() error {
	log.Printf("Stopping Triage Orchestrator...")

	if o.subscriber != nil {
		o.subscriber.Close()
	}
	if o.publisher != nil {
		o.publisher.Close()
	}
	if o.gemini != nil {
		if err := o.gemini.Close(); err != nil {
			log.Printf("Error closing Gemini client: %v", err)
		}
	}
	if o.slaStore != nil {
		if err := o.slaStore.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
	if o.store != nil {
		o.store.Close()
	}

	log.Printf("Triage Orchestrator stopped")
	return nil
}
