package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/internal/models"
	"github.com/noah-isme/curriculum-api/pkg/config"
	"github.com/noah-isme/curriculum-api/pkg/middleware/requestid"
)

type auditWriterStub struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditWriterStub) Create(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

func (a *auditWriterStub) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.logs)
}

func TestAuditEmitterPersistsEvents(t *testing.T) {
	store := &auditWriterStub{}
	emitter := NewAuditEmitter(store, NewMetricsService(), nil, config.AuditConfig{Workers: 1, BufferSize: 4})
	emitter.Start(context.Background())
	defer emitter.Stop()

	ctx := requestid.WithValue(context.Background(), "req-1")
	emitter.Emit(ctx, models.AuditEvent{
		ActorID:    "u1",
		TenantID:   "t1",
		EntityType: models.EntityVersion,
		EntityID:   "v1",
		Action:     models.AuditActionTransition,
		Details:    map[string]interface{}{"from": "draft", "to": "pending_review"},
	})

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
	store.mu.Lock()
	log := store.logs[0]
	store.mu.Unlock()
	assert.Equal(t, "v1", log.EntityID)
	assert.JSONEq(t, `{"from":"draft","to":"pending_review","request_id":"req-1"}`, string(log.Details))
}

func TestAuditEmitterDropsWhenStopped(t *testing.T) {
	store := &auditWriterStub{}
	metrics := NewMetricsService()
	emitter := NewAuditEmitter(store, metrics, nil, config.AuditConfig{Workers: 1, BufferSize: 1})

	emitter.Emit(context.Background(), models.AuditEvent{TenantID: "t1", EntityType: models.EntityMapping, EntityID: "m1", Action: models.AuditActionCreate})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditDrops.WithLabelValues("stopped")))
	assert.Zero(t, store.count())
}

func TestAuditEmitterCountsStorageFailures(t *testing.T) {
	store := &auditWriterStub{err: errors.New("db down")}
	metrics := NewMetricsService()
	emitter := NewAuditEmitter(store, metrics, nil, config.AuditConfig{Workers: 1, BufferSize: 2, MaxRetries: 1, RetryDelay: 5 * time.Millisecond})
	emitter.Start(context.Background())
	defer emitter.Stop()

	emitter.Emit(context.Background(), models.AuditEvent{TenantID: "t1", EntityType: models.EntityMapping, EntityID: "m1", Action: models.AuditActionDelete})

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.auditDrops.WithLabelValues("storage")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), models.AuditEvent{})
}
