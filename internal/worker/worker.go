// Package worker provides async application processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/merlin/internal/domain"
	"github.com/opensource-finance/merlin/internal/pipeline"
)

// Worker processes loan applications asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *pipeline.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *pipeline.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicApplicationReceived, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicApplicationReceived, func(ctx context.Context, msg *domain.Message) error {
		return w.processApplication(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicApplicationReceived,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processApplication(ctx, msg.TenantID, msg)
}

// ApplicationMessage is the message payload for async underwriting.
type ApplicationMessage struct {
	ApplicationID string                `json:"applicationId"`
	TenantID      string                `json:"tenantId"`
	Raw           domain.RawApplication `json:"raw"`
}

// processApplication runs an application through the underwriting pipeline.
func (w *Worker) processApplication(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var appMsg ApplicationMessage
	if err := json.Unmarshal(msg.Payload, &appMsg); err != nil {
		slog.Error("failed to parse application message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if appMsg.TenantID != "" {
		tenantID = appMsg.TenantID
	}

	slog.Debug("processing application",
		"application_id", appMsg.ApplicationID,
		"tenant_id", tenantID,
	)

	// Use the tenant's stored policy when one exists
	var policy *domain.PolicyConfig
	if w.repo != nil {
		if p, err := w.repo.GetPolicy(ctx, tenantID); err == nil {
			policy = p
		}
	}

	eval, err := w.engine.Underwrite(ctx, &pipeline.Request{
		TenantID:      tenantID,
		ApplicationID: appMsg.ApplicationID,
		Raw:           appMsg.Raw,
		Policy:        policy,
	})
	if err != nil {
		slog.Error("underwriting failed",
			"application_id", appMsg.ApplicationID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveEvaluation(ctx, tenantID, eval); err != nil {
			slog.Error("failed to save evaluation",
				"evaluation_id", eval.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(eval)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"evaluation_id", eval.ID,
			"error", err,
		)
	}

	// Route manual reviews to the review queue
	if eval.Decision.Recommendation == domain.RecommendationManualReview {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicManualReview, resultPayload); err != nil {
			slog.Error("failed to publish manual review",
				"evaluation_id", eval.ID,
				"error", err,
			)
		}
	}

	if err := w.bus.Publish(ctx, tenantID, domain.TopicEvaluationCompleted, resultPayload); err != nil {
		slog.Error("failed to publish completion",
			"evaluation_id", eval.ID,
			"error", err,
		)
	}

	slog.Info("application processed",
		"application_id", appMsg.ApplicationID,
		"tenant_id", tenantID,
		"recommendation", eval.Decision.Recommendation,
		"credit_score", eval.Scoring.CreditScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
