package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	runs       map[string]model.Run        // id -> run
	runsByTen  map[string][]string         // tenant -> run ids, oldest first
	deliveries map[string]*WebhookDelivery // id -> delivery state
	order      []string                    // delivery ids, oldest first
	dedup      map[string]string           // tenant|event|url|key -> delivery id
	solverCfg  map[string]map[string]any   // tenant -> overrides
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.Run{},
		runsByTen:  map[string][]string{},
		deliveries: map[string]*WebhookDelivery{},
		dedup:      map[string]string{},
		solverCfg:  map[string]map[string]any{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.runsByTen[run.TenantID] = append(m.runsByTen[run.TenantID], run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.runs[run.ID]
	if !ok || cur.TenantID != run.TenantID {
		return ErrNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.TenantID != tenantID {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns returns the newest runs first. The cursor is the id of the last
// item of the previous page.
func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	ids := m.runsByTen[tenantID]
	start := len(ids) - 1
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i - 1
				break
			}
		}
	}
	out := []model.Run{}
	for i := start; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[ids[i]].Brief())
	}
	next := ""
	if len(out) == limit && start-limit >= 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.solverCfg[tenantID]; ok {
		return cfg, nil
	}
	return nil, nil
}

func (m *Memory) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solverCfg[tenantID] = cfg
	return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tenantID + "|" + eventType + "|" + url + "|" + dedupKey(payload)
	if id, ok := m.dedup[key]; ok {
		return id, nil
	}
	id := uuid.New().String()
	m.deliveries[id] = &WebhookDelivery{
		ID: id, TenantID: tenantID, EventType: eventType, URL: url, Secret: secret,
		Payload: payload, Status: DeliveryPending, NextAttemptAt: time.Now(),
	}
	m.order = append(m.order, id)
	m.dedup[key] = id
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if d.TenantID != tenantID || (status != "" && d.Status != status) {
			continue
		}
		out = append(out, *d)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
