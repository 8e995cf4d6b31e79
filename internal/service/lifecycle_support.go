package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/models"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
)

var tracer = otel.Tracer("github.com/noah-isme/curriculum-api/internal/service")

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditSink interface {
	Emit(ctx context.Context, event models.AuditEvent)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Evict(ctx context.Context, keys ...string) error
}

type transitionPublisher interface {
	Publish(ctx context.Context, signal models.TransitionSignal) error
}

// VersionStatsKey is the cache key of a framework's version statistics.
func VersionStatsKey(tenantID, frameworkID string) string {
	return fmt.Sprintf("curriculum:stats:%s:%s", tenantID, frameworkID)
}

// TransitionNotifier reports committed state changes to metrics and downstream subscribers.
type TransitionNotifier struct {
	metrics   *MetricsService
	publisher transitionPublisher
	logger    *zap.Logger
}

// NewTransitionNotifier constructs a notifier. A nil publisher disables signals.
func NewTransitionNotifier(metrics *MetricsService, publisher transitionPublisher, logger *zap.Logger) *TransitionNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionNotifier{metrics: metrics, publisher: publisher, logger: logger}
}

// Notify counts the transition and publishes the signal. Publish failures are logged only.
func (n *TransitionNotifier) Notify(ctx context.Context, actor models.Identity, entity, id, from, to string) {
	if n == nil || from == to {
		return
	}
	n.metrics.RecordTransition(entity, from, to)
	if n.publisher == nil {
		return
	}
	signal := models.TransitionSignal{
		TenantID:   actor.TenantID,
		EntityType: entity,
		EntityID:   id,
		From:       from,
		To:         to,
		ActorID:    actor.ActorID,
		OccurredAt: time.Now().UTC(),
	}
	if err := n.publisher.Publish(ctx, signal); err != nil {
		n.logger.Warn("failed to publish transition signal",
			zap.String("entity", entity),
			zap.String("entity_id", id),
			zap.String("tenant_id", actor.TenantID),
			zap.Error(err),
		)
	}
}

func startSpan(ctx context.Context, name string, actor models.Identity, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("tenant.id", actor.TenantID),
		attribute.String("actor.id", actor.ActorID),
		attribute.String("actor.role", string(actor.Role)),
	)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, appErrors.CodeOf(err))
	}
	span.End()
}

func notFoundOr(err error, notFound, failure string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Internal(err, failure)
}

// jsonObject validates raw as a JSON object. Empty input yields {}.
func jsonObject(raw json.RawMessage, field string) (types.JSONText, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return types.JSONText(`{}`), nil
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &object); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" must be a JSON object")
	}
	return types.JSONText(append([]byte(nil), trimmed...)), nil
}

// jsonDocument accepts any well-formed JSON value and keeps its bytes as given.
// Empty input yields {}.
func jsonDocument(raw json.RawMessage, field string) (types.JSONText, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return types.JSONText(`{}`), nil
	}
	if !json.Valid(trimmed) {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" must be valid JSON")
	}
	return types.JSONText(append([]byte(nil), trimmed...)), nil
}

func stringPtr(v string) *string {
	return &v
}

func paginationOf(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
