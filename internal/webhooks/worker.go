package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pdroute/internal/metrics"
	"pdroute/internal/store"
)

// Worker delivers queued run callbacks with exponential backoff.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Log         *zap.Logger
	MaxAttempts int
	Interval    time.Duration
}

func NewWorker(s store.Store, log *zap.Logger, maxAttempts int) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Log: log, MaxAttempts: maxAttempts, Interval: time.Second}
}

// Run polls for due deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		w.Log.Warn("fetch webhook deliveries", zap.Error(err))
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	success := false
	next := time.Now().Add(nextBackoff(it.Attempts))
	code, latency, lastErr := 0, 0, ""
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		if it.Secret != "" {
			req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
		}
		start := time.Now()
		var resp *http.Response
		resp, err = w.HTTP.Do(req)
		latency = int(time.Since(start).Milliseconds())
		if err == nil {
			code = resp.StatusCode
			_ = resp.Body.Close()
			success = code >= 200 && code < 300
		}
	}
	switch {
	case err != nil:
		lastErr = err.Error()
	case !success:
		lastErr = http.StatusText(code)
	}

	status := "delivered"
	if !success {
		status = "retry"
		if it.Attempts+1 >= w.MaxAttempts {
			status = "failed"
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))

	if status == "failed" {
		w.Log.Warn("webhook delivery failed", zap.String("id", it.ID), zap.String("url", it.URL),
			zap.Int("attempts", it.Attempts+1), zap.String("error", lastErr))
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
			w.Log.Error("record webhook failure", zap.String("id", it.ID), zap.Error(err))
		}
		return
	}
	if err := w.Store.MarkWebhookDelivery(ctx, it.ID, success, &next, lastErr, code, latency); err != nil {
		w.Log.Error("record webhook attempt", zap.String("id", it.ID), zap.Error(err))
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
