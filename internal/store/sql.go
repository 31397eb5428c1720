package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdroute/internal/model"
)

// SQL implements Store over database/sql. Queries are written with ? and
// rebound to $n for Postgres. Times are stored as unix milliseconds so the
// same schema serves Postgres and SQLite.
type SQL struct {
	db      *sql.DB
	dollars bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS solve_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS solve_runs_tenant_created ON solve_runs (tenant_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS solver_config (
		tenant_id TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_deliveries (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		url TEXT NOT NULL,
		secret TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		dedup_key TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at BIGINT NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		response_code INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		delivered_at BIGINT,
		UNIQUE (tenant_id, event_type, url, dedup_key)
	)`,
	`CREATE INDEX IF NOT EXISTS webhook_deliveries_due ON webhook_deliveries (status, next_attempt_at)`,
}

// Migrate creates the tables when missing.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) q(query string) string {
	if !s.dollars {
		return query
	}
	return rebind(query)
}

// rebind turns ? placeholders into $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) CreateRun(ctx context.Context, run model.Run) error {
	body, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO solve_runs (id, tenant_id, status, created_at, body) VALUES (?,?,?,?,?)`),
		run.ID, run.TenantID, run.Status, run.CreatedAt.UnixMilli(), string(body))
	return err
}

func (s *SQL) UpdateRun(ctx context.Context, run model.Run) error {
	body, err := json.Marshal(run)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE solve_runs SET status=?, body=? WHERE tenant_id=? AND id=?`),
		run.Status, string(body), run.TenantID, run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, s.q(`SELECT body FROM solve_runs WHERE tenant_id=? AND id=?`), tenantID, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, err
	}
	var run model.Run
	if err := json.Unmarshal(body, &run); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// ListRuns returns the newest runs first. The cursor is "<createdAtMs>_<id>"
// of the last item of the previous page.
func (s *SQL) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		ms, id, ok := strings.Cut(cursor, "_")
		at, perr := strconv.ParseInt(ms, 10, 64)
		if !ok || perr != nil {
			return nil, "", fmt.Errorf("list runs: bad cursor %q", cursor)
		}
		rows, err = s.db.QueryContext(ctx, s.q(`SELECT created_at, body FROM solve_runs
			WHERE tenant_id=? AND (created_at < ? OR (created_at = ? AND id < ?))
			ORDER BY created_at DESC, id DESC LIMIT ?`), tenantID, at, at, id, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.q(`SELECT created_at, body FROM solve_runs
			WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?`), tenantID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	var lastAt int64
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&lastAt, &body); err != nil {
			return nil, "", err
		}
		var run model.Run
		if err := json.Unmarshal(body, &run); err != nil {
			return nil, "", err
		}
		out = append(out, run.Brief())
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = fmt.Sprintf("%d_%s", lastAt, out[len(out)-1].ID)
	}
	return out, next, nil
}

func (s *SQL) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	var js []byte
	err := s.db.QueryRowContext(ctx, s.q(`SELECT config FROM solver_config WHERE tenant_id=?`), tenantID).Scan(&js)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *SQL) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO solver_config (tenant_id, config, updated_at) VALUES (?,?,?)
		ON CONFLICT (tenant_id) DO UPDATE SET config=excluded.config, updated_at=excluded.updated_at`),
		tenantID, string(js), time.Now().UnixMilli())
	return err
}

func (s *SQL) EnqueueWebhook(ctx context.Context, tenantID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	dk := dedupKey(payload)
	res, err := s.db.ExecContext(ctx, s.q(`INSERT INTO webhook_deliveries
		(id, tenant_id, event_type, url, secret, payload, dedup_key, status, attempts, next_attempt_at)
		VALUES (?,?,?,?,?,?,?,?,0,?)
		ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`),
		id, tenantID, eventType, url, secret, string(payload), dk, DeliveryPending, time.Now().UnixMilli())
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return id, nil
	}
	err = s.db.QueryRowContext(ctx, s.q(`SELECT id FROM webhook_deliveries
		WHERE tenant_id=? AND event_type=? AND url=? AND dedup_key=?`), tenantID, eventType, url, dk).Scan(&id)
	return id, err
}

const deliveryColumns = `id, tenant_id, event_type, url, secret, payload, status, attempts,
	next_attempt_at, last_error, response_code, latency_ms, delivered_at`

func scanDelivery(rows *sql.Rows) (WebhookDelivery, error) {
	var d WebhookDelivery
	var next int64
	var delivered sql.NullInt64
	if err := rows.Scan(&d.ID, &d.TenantID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts,
		&next, &d.LastError, &d.ResponseCode, &d.LatencyMs, &delivered); err != nil {
		return d, err
	}
	d.NextAttemptAt = time.UnixMilli(next)
	if delivered.Valid {
		t := time.UnixMilli(delivered.Int64)
		d.DeliveredAt = &t
	}
	return d, nil
}

func (s *SQL) queryDeliveries(ctx context.Context, query string, args ...any) ([]WebhookDelivery, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQL) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	return s.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE status IN ('pending','retry') AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC LIMIT ?`, time.Now().UnixMilli(), clampLimit(limit))
}

func (s *SQL) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	var err error
	if success {
		_, err = s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, delivered_at=?,
			response_code=?, latency_ms=? WHERE id=?`),
			DeliveryDelivered, time.Now().UnixMilli(), responseCode, latencyMs, id)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err = s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, last_error=?,
		next_attempt_at=?, response_code=?, latency_ms=? WHERE id=?`),
		DeliveryRetry, lastError, next.UnixMilli(), responseCode, latencyMs, id)
	return err
}

func (s *SQL) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, last_error=?,
		response_code=?, latency_ms=? WHERE id=?`),
		DeliveryFailed, lastError, responseCode, latencyMs, id)
	return err
}

func (s *SQL) ListWebhookDeliveries(ctx context.Context, tenantID, status string, limit int) ([]WebhookDelivery, error) {
	if status != "" {
		return s.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
			WHERE tenant_id=? AND status=? ORDER BY next_attempt_at, id LIMIT ?`, tenantID, status, clampLimit(limit))
	}
	return s.queryDeliveries(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE tenant_id=? ORDER BY next_attempt_at, id LIMIT ?`, tenantID, clampLimit(limit))
}
