package db

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kube-rca/backend/internal/model"
)

// Postgres is the Store: relational persistence for incidents and the
// append-only incident_events log, plus the fingerprint-keyed advisory
// lock facility. Timeout bounds every pool acquisition and query issued
// through it; a zero Timeout leaves the caller's context untouched.
type Postgres struct {
	Pool    *pgxpool.Pool
	Timeout time.Duration
}

// withTimeout derives a bounded context for a single acquisition or query,
// honoring Postgres.Timeout.
func (db *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.Timeout)
}

// Acquire checks out a pooled connection, bounded by Timeout. Callers must
// release the returned connection exactly once.
func (db *Postgres) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.Pool.Acquire(ctx)
}

// EnsureSchema creates the incidents/incident_events tables if missing.
// Idempotent, run once at startup.
func (db *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`
		CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			alertname TEXT NOT NULL DEFAULT '',
			namespace TEXT NOT NULL DEFAULT '',
			pod TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT 'warning',
			runbook_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			agent_mode TEXT NOT NULL DEFAULT 'recommend',
			summary TEXT NOT NULL DEFAULT '',
			summary_embedding vector(768),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS incidents_fingerprint_idx ON incidents(fingerprint)`,
		`CREATE INDEX IF NOT EXISTS incidents_alertname_idx ON incidents(alertname)`,
		`CREATE INDEX IF NOT EXISTS incidents_namespace_pod_idx ON incidents(namespace, pod)`,
		`CREATE INDEX IF NOT EXISTS incidents_created_at_idx ON incidents(created_at DESC)`,
		`
		CREATE TABLE IF NOT EXISTS incident_events (
			id TEXT PRIMARY KEY,
			incident_id TEXT NOT NULL REFERENCES incidents(id),
			ts TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			event_type TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'
		)
		`,
		`CREATE INDEX IF NOT EXISTS incident_events_incident_id_ts_idx ON incident_events(incident_id, ts DESC, id DESC)`,
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertIncident is idempotent by the fingerprint unique constraint:
// updates alertname/namespace/pod/severity/updated_at on
// conflict, leaving status/agent_mode/summary untouched so a later step
// doesn't clobber progress made by a concurrent winner of the advisory
// lock race.
func (db *Postgres) UpsertIncident(ctx context.Context, fingerprint string, alertName, namespace, pod, severity string, runbookID model.RunbookID, mode model.Mode) (*model.Incident, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO incidents (id, fingerprint, alertname, namespace, pod, severity, runbook_id, status, agent_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open', $8, NOW(), NOW())
		ON CONFLICT (fingerprint) DO UPDATE SET
			alertname = EXCLUDED.alertname,
			namespace = EXCLUDED.namespace,
			pod = EXCLUDED.pod,
			severity = EXCLUDED.severity,
			updated_at = NOW()
		RETURNING id, fingerprint, alertname, namespace, pod, severity, runbook_id, status, agent_mode, summary, created_at, updated_at
	`

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var inc model.Incident
	err := db.Pool.QueryRow(ctx, query, id, fingerprint, alertName, namespace, pod, severity, string(runbookID), string(mode)).Scan(
		&inc.ID, &inc.Fingerprint, &inc.AlertName, &inc.Namespace, &inc.Pod, &inc.Severity,
		&inc.RunbookID, &inc.Status, &inc.AgentMode, &inc.Summary, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert incident: %w", err)
	}
	return &inc, nil
}

// AppendEvent inserts one incident_events row. Never updated or deleted —
// the append-only invariant holds by never writing an UPDATE/DELETE
// against this table anywhere in the codebase.
func (db *Postgres) AppendEvent(ctx context.Context, incidentID string, eventType model.EventType, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	id := uuid.NewString()
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO incident_events (id, incident_id, ts, event_type, payload)
		VALUES ($1, $2, NOW(), $3, $4)
	`, id, incidentID, string(eventType), body)
	if err != nil {
		return "", fmt.Errorf("append event: %w", err)
	}
	return id, nil
}

// GetEvents returns every event for an incident, ordered (ts, id) so
// replays and UI timelines see a stable sequence.
func (db *Postgres) GetEvents(ctx context.Context, incidentID string) ([]model.IncidentEvent, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	rows, err := db.Pool.Query(ctx, `
		SELECT id, incident_id, ts, event_type, payload
		FROM incident_events
		WHERE incident_id = $1
		ORDER BY ts ASC, id ASC
	`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.IncidentEvent
	for rows.Next() {
		var e model.IncidentEvent
		var eventType string
		if err := rows.Scan(&e.ID, &e.IncidentID, &e.TS, &eventType, &e.Payload); err != nil {
			return nil, err
		}
		e.EventType = model.EventType(eventType)
		events = append(events, e)
	}
	return events, nil
}

// GetLatestEventByType mirrors agent/db.py's get_latest_event_by_type:
// ordered by ts DESC, limit 1. Used to reconstruct state for on-demand
// analysis regeneration.
func (db *Postgres) GetLatestEventByType(ctx context.Context, incidentID string, eventType model.EventType) (*model.IncidentEvent, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var e model.IncidentEvent
	var et string
	err := db.Pool.QueryRow(ctx, `
		SELECT id, incident_id, ts, event_type, payload
		FROM incident_events
		WHERE incident_id = $1 AND event_type = $2
		ORDER BY ts DESC, id DESC
		LIMIT 1
	`, incidentID, string(eventType)).Scan(&e.ID, &e.IncidentID, &e.TS, &et, &e.Payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	e.EventType = model.EventType(et)
	return &e, nil
}

// ListIncidents returns the incident list, newest first.
func (db *Postgres) ListIncidents(ctx context.Context, limit, offset int) ([]model.IncidentListResponse, int, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	rows, err := db.Pool.Query(ctx, `
		SELECT id, alertname, severity, status, created_at
		FROM incidents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := make([]model.IncidentListResponse, 0)
	for rows.Next() {
		var i model.IncidentListResponse
		if err := rows.Scan(&i.IncidentID, &i.AlarmTitle, &i.Severity, &i.Status, &i.FiredAt); err != nil {
			return nil, 0, err
		}
		list = append(list, i)
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// GetIncident fetches a single incident by id.
func (db *Postgres) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var inc model.Incident
	err := db.Pool.QueryRow(ctx, `
		SELECT id, fingerprint, alertname, namespace, pod, severity, runbook_id, status, agent_mode, summary, created_at, updated_at
		FROM incidents WHERE id = $1
	`, id).Scan(
		&inc.ID, &inc.Fingerprint, &inc.AlertName, &inc.Namespace, &inc.Pod, &inc.Severity,
		&inc.RunbookID, &inc.Status, &inc.AgentMode, &inc.Summary, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}

// GetIncidentDetail fetches a single incident, its full event log, its
// latest analysis markdown, and the same similar-incident set the
// Analysis Composer queried, matching the
// `{incident, events, analysis_markdown, past_incidents}` response shape.
func (db *Postgres) GetIncidentDetail(ctx context.Context, id string) (*model.IncidentDetailResponse, error) {
	inc, err := db.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}

	events, err := db.GetEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	eventResponses := make([]model.IncidentEventResponse, 0, len(events))
	for _, e := range events {
		eventResponses = append(eventResponses, model.IncidentEventResponse{
			ID:        e.ID,
			TS:        e.TS,
			EventType: string(e.EventType),
			Payload:   e.Payload,
		})
	}

	detail := &model.IncidentDetailResponse{
		IncidentID: inc.ID,
		AlarmTitle: inc.AlertName,
		Severity:   inc.Severity,
		Status:     string(inc.Status),
		FiredAt:    inc.CreatedAt,
		Events:     eventResponses,
	}
	if inc.Summary != "" {
		detail.AnalysisSummary = &inc.Summary
	}

	if analysisEvent, err := db.GetLatestEventByType(ctx, id, model.EventAnalysis); err == nil && analysisEvent != nil {
		var payload struct {
			AnalysisMarkdown string `json:"analysis_markdown"`
		}
		if json.Unmarshal(analysisEvent.Payload, &payload) == nil && payload.AnalysisMarkdown != "" {
			detail.AnalysisDetail = &payload.AnalysisMarkdown
		}
	}

	var node string
	if webhookEvent, err := db.GetLatestEventByType(ctx, id, model.EventWebhookReceived); err == nil && webhookEvent != nil {
		var payload struct {
			Labels map[string]string `json:"labels"`
		}
		if json.Unmarshal(webhookEvent.Payload, &payload) == nil {
			node = payload.Labels["node"]
		}
	}
	if similar, err := db.QuerySimilar(ctx, inc, node); err == nil {
		if body, err := json.Marshal(similar); err == nil {
			detail.SimilarIncidents = body
		}
	}

	return detail, nil
}

// UpdateIncident applies an operator edit to title/severity/analysis text.
func (db *Postgres) UpdateIncident(ctx context.Context, id string, req model.UpdateIncidentRequest) error {
	query := `
		UPDATE incidents
		SET alertname = $1, severity = $2, summary = $3, updated_at = NOW()
		WHERE id = $4
	`
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, query, req.AlarmTitle, req.Severity, req.AnalysisSummary, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no incident found with id: %s", id)
	}
	return nil
}

// ResolveIncident marks an incident resolved, the terminal state an
// operator can set; the engine itself never marks incidents resolved.
func (db *Postgres) ResolveIncident(ctx context.Context, id string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, `UPDATE incidents SET status = 'resolved', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no incident found with id: %s", id)
	}
	return nil
}

// UpdateSummary stores the latest analysis summary text for quick list/API
// access; the full narrative lives in the analysis IncidentEvent payload.
func (db *Postgres) UpdateSummary(ctx context.Context, id, summary string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `UPDATE incidents SET summary = $2, updated_at = NOW() WHERE id = $1`, id, summary)
	return err
}

// QuerySimilar implements the Analysis Composer's similarity query:
// most recent 50 incidents matching same alertname, or same
// namespace+pod, or same node (read from the incident's own labels via its
// latest webhook_received event), excluding the current incident.
func (db *Postgres) QuerySimilar(ctx context.Context, current *model.Incident, node string) ([]model.SimilarIncident, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	rows, err := db.Pool.Query(ctx, `
		SELECT i.id, i.alertname, i.namespace, i.pod, i.runbook_id, i.created_at,
			(SELECT payload FROM incident_events e WHERE e.incident_id = i.id AND e.event_type = 'final' ORDER BY e.ts DESC LIMIT 1) AS final_payload
		FROM incidents i
		WHERE i.id != $1
		AND (
			i.alertname = $2
			OR (i.namespace = $3 AND i.pod = $4)
			OR ($5 != '' AND EXISTS (
				SELECT 1 FROM incident_events e
				WHERE e.incident_id = i.id AND e.event_type = 'webhook_received'
				AND e.payload->'labels'->>'node' = $5
			))
		)
		ORDER BY i.created_at DESC
		LIMIT 50
	`, current.ID, current.AlertName, current.Namespace, current.Pod, node)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SimilarIncident, 0)
	for rows.Next() {
		var s model.SimilarIncident
		var runbookID string
		var finalPayload []byte
		if err := rows.Scan(&s.ID, &s.AlertName, &s.Namespace, &s.Pod, &runbookID, &s.CreatedAt, &finalPayload); err != nil {
			return nil, err
		}
		s.RunbookID = model.RunbookID(runbookID)
		if len(finalPayload) > 0 {
			var envelope finalEventPayload
			if err := json.Unmarshal(finalPayload, &envelope); err == nil {
				s.ActionTaken = envelope.State.ActionTaken
				s.ActionRecommended = envelope.State.ActionRecommended
				s.ActionError = envelope.State.ActionError
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// finalEventPayload unmarshals the subset of a "final" event's JSON body
// that QuerySimilar needs to surface past outcomes.
type finalEventPayload struct {
	State struct {
		ActionTaken       string `json:"action_taken"`
		ActionRecommended string `json:"action_recommended"`
		ActionError       string `json:"action_error"`
	} `json:"state"`
}

// AdvisoryLockKey derives the 64-bit Postgres advisory-lock key from a
// fingerprint: sha256, first 8 bytes as big-endian uint64, reduced modulo
// 2^63 to fit a signed bigint. Ported verbatim from agent/db.py's
// advisory_lock_key.
func AdvisoryLockKey(fingerprint string) int64 {
	sum := sha256.Sum256([]byte(fingerprint))
	key := binary.BigEndian.Uint64(sum[:8])
	return int64(key % (1 << 63))
}

// TryAdvisoryLock attempts a non-blocking, session-scoped advisory lock on
// the held connection. The caller must keep that same *pgxpool.Conn for
// the duration of the workflow and pass it to ReleaseAdvisoryLock, since
// the lock belongs to that connection's session.
func (db *Postgres) TryAdvisoryLock(ctx context.Context, conn *pgxpool.Conn, fingerprint string) (bool, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var acquired bool
	err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, AdvisoryLockKey(fingerprint)).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	return acquired, nil
}

// ReleaseAdvisoryLock releases a lock acquired with TryAdvisoryLock on the
// same connection.
func (db *Postgres) ReleaseAdvisoryLock(ctx context.Context, conn *pgxpool.Conn, fingerprint string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	_, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, AdvisoryLockKey(fingerprint))
	return err
}

// HideIncident is a soft-delete on the incident management surface;
// nothing else in the workflow depends on it, kept as an
// operator convenience since it costs nothing and nothing requires its
// removal.
func (db *Postgres) HideIncident(ctx context.Context, id string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, `UPDATE incidents SET status = 'suppressed', updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no incident found with id: %s", id)
	}
	return nil
}

// CreateMockIncident seeds a synthetic incident row for local testing of
// the Incident API without a live cluster.
func (db *Postgres) CreateMockIncident(ctx context.Context) (string, error) {
	id := uuid.NewString()
	timestamp := time.Now().Unix()
	fingerprint := fmt.Sprintf("mock:%d", timestamp)
	title := fmt.Sprintf("mock incident (%d)", timestamp)

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO incidents (id, fingerprint, alertname, severity, status, runbook_id, agent_mode, created_at, updated_at)
		VALUES ($1, $2, $3, 'warning', 'open', '', 'recommend', NOW(), NOW())
	`, id, fingerprint, title)
	if err != nil {
		return "", err
	}
	return id, nil
}
