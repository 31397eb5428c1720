package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"pdroute/internal/model"
	"pdroute/internal/store"
)

const EventRunCompleted = "run.completed"

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// NotifyRun queues a run.completed callback when the run names a callback URL.
// The event id is derived from the run id so a repeated notify is deduplicated.
func (p *Publisher) NotifyRun(ctx context.Context, run model.Run, secret string) (string, error) {
	if run.CallbackURL == "" {
		return "", nil
	}
	payload := map[string]any{
		"id":       "evt_" + run.ID,
		"type":     EventRunCompleted,
		"tenantId": run.TenantID,
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"data":     run.Brief(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueWebhook(ctx, run.TenantID, EventRunCompleted, run.CallbackURL, secret, body)
}
