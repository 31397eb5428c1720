package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"pdroute/internal/model"
	"pdroute/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
	Next          time.Time
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError, Next: *nextAttemptAt})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotType = r.Header.Get("X-Event-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := NewWorker(rs, nil, 3)
	w.HTTP = srv.Client()
	pub := NewPublisher(rs)
	run := model.Run{ID: "r1", TenantID: "t1", Status: model.RunDone, Cost: 42, CallbackURL: srv.URL}
	id, err := pub.NotifyRun(context.Background(), run, "secret")
	if err != nil || id == "" {
		t.Fatalf("notify failed: %v", err)
	}

	w.processOnce(context.Background())

	if gotType != EventRunCompleted {
		t.Fatalf("missing event type header: %q", gotType)
	}
	if !VerifyHMAC("secret", gotBody, gotSig) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	var evt struct {
		ID   string    `json:"id"`
		Data model.Run `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &evt); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if evt.ID != "evt_r1" || evt.Data.Cost != 42 {
		t.Fatalf("unexpected payload %s", gotBody)
	}
	if len(rs.marks) != 1 || !rs.marks[0].Success || rs.marks[0].Code != 200 {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}

	// delivered items are not picked up again
	w.processOnce(context.Background())
	if len(rs.marks) != 1 {
		t.Fatalf("delivery repeated: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := NewWorker(rs, nil, 2)
	w.HTTP = srv.Client()
	id, _ := rs.Memory.EnqueueWebhook(context.Background(), "t1", EventRunCompleted, srv.URL, "", []byte(`{"id":"evt_x"}`))

	w.processOnce(context.Background())
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].Code != 500 {
		t.Fatalf("expected retry mark, got %+v", rs.marks)
	}
	if rs.marks[0].Next.Before(time.Now()) {
		t.Fatalf("retry should be scheduled in the future")
	}

	// make it due again
	now := time.Now().Add(-time.Second)
	_ = rs.Memory.MarkWebhookDelivery(context.Background(), id, false, &now, "forced", 500, 0)
	w.processOnce(context.Background())
	if len(rs.fails) != 1 || rs.fails[0].ID != id {
		t.Fatalf("expected fail recorded, got %+v", rs.fails)
	}
}

func TestPublisherSkipsRunsWithoutCallback(t *testing.T) {
	m := store.NewMemory()
	id, err := NewPublisher(m).NotifyRun(context.Background(), model.Run{ID: "r2", TenantID: "t1"}, "")
	if err != nil || id != "" {
		t.Fatalf("want no delivery, got %q %v", id, err)
	}
	items, _ := m.FetchDueWebhookDeliveries(context.Background(), 10)
	if len(items) != 0 {
		t.Fatalf("unexpected deliveries %+v", items)
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatalf("unexpected backoff")
	}
	if nextBackoff(50) != 1024*time.Second {
		t.Fatalf("backoff not capped at 2^10s")
	}
}
