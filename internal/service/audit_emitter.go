package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/config"
	"github.com/noah-isme/curriculum-api/pkg/jobs"
	"github.com/noah-isme/curriculum-api/pkg/middleware/requestid"
)

const auditJobType = "audit.persist"

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEmitter hands audit events to a background worker pool that persists them.
// Emitting never blocks and never fails the caller.
type AuditEmitter struct {
	queue   *jobs.Queue
	store   auditWriter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditEmitter builds the emitter and its queue. Call Start before emitting.
func NewAuditEmitter(store auditWriter, metrics *MetricsService, logger *zap.Logger, cfg config.AuditConfig) *AuditEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &AuditEmitter{store: store, metrics: metrics, logger: logger}
	e.queue = jobs.NewQueue("audit", e.persist, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDiscard: func(job jobs.Job, err error) {
			metrics.RecordAuditDrop("storage")
		},
	})
	return e
}

// Start launches the workers.
func (e *AuditEmitter) Start(ctx context.Context) {
	e.queue.Start(ctx)
}

// Stop waits for workers and flushes buffered events.
func (e *AuditEmitter) Stop() {
	e.queue.Stop()
}

// Emit queues event for persistence.
func (e *AuditEmitter) Emit(ctx context.Context, event models.AuditEvent) {
	if e == nil {
		return
	}
	details := make(map[string]interface{}, len(event.Details)+1)
	for k, v := range event.Details {
		details[k] = v
	}
	if id := requestid.FromContext(ctx); id != "" {
		details["request_id"] = id
	}
	event.Details = details

	job := jobs.Job{ID: uuid.NewString(), Type: auditJobType, Payload: event}
	if err := e.queue.TryEnqueue(job); err != nil {
		reason := "stopped"
		if errors.Is(err, jobs.ErrQueueFull) {
			reason = "queue_full"
		}
		e.metrics.RecordAuditDrop(reason)
		e.logger.Warn("audit event dropped",
			zap.String("reason", reason),
			zap.String("entity_type", event.EntityType),
			zap.String("entity_id", event.EntityID),
			zap.String("action", event.Action),
			zap.String("tenant_id", event.TenantID),
			zap.Error(err),
		)
	}
	e.metrics.SetAuditPending(e.queue.Pending())
}

func (e *AuditEmitter) persist(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.AuditEvent)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	details := types.JSONText(`{}`)
	if len(event.Details) > 0 {
		payload, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = types.JSONText(payload)
	}
	return e.store.Create(ctx, &models.AuditLog{
		TenantID:   event.TenantID,
		ActorID:    event.ActorID,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		Action:     event.Action,
		Details:    details,
	})
}
