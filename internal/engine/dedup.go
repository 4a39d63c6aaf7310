package engine

import (
	"context"
	"encoding/json"

	"github.com/kube-rca/backend/internal/cluster"
	"github.com/kube-rca/backend/internal/config"
	"github.com/kube-rca/backend/internal/db"
	"github.com/kube-rca/backend/internal/llm"
	"github.com/kube-rca/backend/internal/model"
)

// Dedup runs the fingerprint, upsert, advisory-lock, run-or-suppress,
// flush, release sequence for an incoming alert. One Dedup per process;
// Handle is safe to call concurrently for different alerts (and for the
// same alert — the advisory lock is what actually serializes
// same-fingerprint work).
type Dedup struct {
	store    *db.Postgres
	router   *Router
	engine   *Engine
	composer *llm.Composer
	runbooks model.RunbookTable
	cluster  *cluster.Client
	cfgMode  model.Mode
	cfgName  string
}

func NewDedup(store *db.Postgres, router *Router, engine *Engine, composer *llm.Composer, runbooks model.RunbookTable, cl *cluster.Client, defaultMode model.Mode, clusterName string) *Dedup {
	return &Dedup{
		store:    store,
		router:   router,
		engine:   engine,
		composer: composer,
		runbooks: runbooks,
		cluster:  cl,
		cfgMode:  defaultMode,
		cfgName:  clusterName,
	}
}

// Handle processes one normalized alert end to end. It never returns an
// error for LockBusy/InvalidAlert/UnknownRunbook — those are handled
// states, not failures. A non-nil error here means the ingress should
// surface 5xx (DBError).
func (d *Dedup) Handle(ctx context.Context, alert model.EngineAlert) error {
	fingerprint := model.ComputeFingerprint(alert)
	runbookID := d.router.Route(alert)
	mode := d.modeFor(alert)

	incident, err := d.store.UpsertIncident(ctx, fingerprint, alert.AlertName, alert.Label("namespace"), alert.Label("pod"), alert.Label("severity"), runbookID, mode)
	if err != nil {
		return err
	}

	if _, err := d.store.AppendEvent(ctx, incident.ID, model.EventWebhookReceived, map[string]any{
		"labels":      alert.Labels,
		"annotations": alert.Annotations,
		"runbook_id":  runbookID,
	}); err != nil {
		return err
	}

	conn, err := d.store.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	acquired, err := d.store.TryAdvisoryLock(ctx, conn, fingerprint)
	if err != nil {
		return err
	}
	if !acquired {
		_, err := d.store.AppendEvent(ctx, incident.ID, model.EventSuppressed, map[string]any{"reason": "lock_busy"})
		return err
	}
	defer func() {
		if err := d.store.ReleaseAdvisoryLock(ctx, conn, fingerprint); err != nil {
			config.Warnf("incident=%s fingerprint=%s release_advisory_lock error=%v", incident.ID, fingerprint, err)
		}
	}()

	state := d.runWorkflow(ctx, runbookID, alert, mode)

	if _, err := d.store.AppendEvent(ctx, incident.ID, model.EventFinal, map[string]any{
		"runbook_id": runbookID,
		"state": map[string]any{
			"action_taken":       state.ActionTaken,
			"action_recommended": state.ActionRecommended,
			"action_error":       state.ActionError,
			"rb_steps":           state.RBSteps,
			"llm_trace":          state.LLMTrace,
		},
	}); err != nil {
		return err
	}

	_, summary, analysisErr := d.composeAndAppendAnalysis(ctx, incident, runbookID, alert, state, false)
	if analysisErr != nil {
		config.Warnf("incident=%s analysis error=%v", incident.ID, analysisErr)
	} else if summary != "" {
		if err := d.store.UpdateSummary(ctx, incident.ID, summary); err != nil {
			config.Warnf("incident=%s update_summary error=%v", incident.ID, err)
		}
	}

	return nil
}

// runWorkflow is the §4.1/§4.5 hinge: RB_UNKNOWN terminates with no
// workflow executed but a final event is still recorded by the caller.
func (d *Dedup) runWorkflow(ctx context.Context, runbookID model.RunbookID, alert model.EngineAlert, mode model.Mode) *model.ExecutionState {
	if runbookID == model.RBUnknown {
		return model.NewExecutionState(alert, mode)
	}
	rb := d.runbooks[runbookID]
	return d.engine.Run(ctx, rb, alert, mode, d.runbooks, d.cluster)
}

// RegenerateAnalysis re-runs the composer against current database state
// on demand: a new analysis event with regenerated=true, never mutating
// prior ones. Returns the new event id.
func (d *Dedup) RegenerateAnalysis(ctx context.Context, incidentID string) (string, error) {
	incident, err := d.store.GetIncident(ctx, incidentID)
	if err != nil {
		return "", err
	}
	finalEvent, err := d.store.GetLatestEventByType(ctx, incidentID, model.EventFinal)
	if err != nil {
		return "", err
	}
	state := stateFromFinalEvent(incident, finalEvent)
	alert := model.EngineAlert{AlertName: incident.AlertName, Labels: map[string]string{
		"namespace": incident.Namespace,
		"pod":       incident.Pod,
	}}

	eventID, summary, err := d.composeAndAppendAnalysis(ctx, incident, incident.RunbookID, alert, state, true)
	if err != nil {
		return "", err
	}
	if summary != "" {
		if err := d.store.UpdateSummary(ctx, incidentID, summary); err != nil {
			config.Warnf("incident=%s update_summary error=%v", incidentID, err)
		}
	}
	return eventID, nil
}

func (d *Dedup) composeAndAppendAnalysis(ctx context.Context, incident *model.Incident, runbookID model.RunbookID, alert model.EngineAlert, state *model.ExecutionState, regenerated bool) (eventID, markdown string, err error) {
	node := alert.Label("node")
	pastIncidents, err := d.store.QuerySimilar(ctx, incident, node)
	if err != nil {
		return "", "", err
	}

	markdown, err = d.composer.Compose(ctx, runbookID, d.cfgName, alert, state, pastIncidents)
	if err != nil {
		markdown = ""
	}

	eventID, err = d.store.AppendEvent(ctx, incident.ID, model.EventAnalysis, map[string]any{
		"analysis_markdown": markdown,
		"runbook_id":        runbookID,
		"regenerated":       regenerated,
	})
	if err != nil {
		return "", "", err
	}
	return eventID, markdown, nil
}

// stateFromFinalEvent reconstructs enough of an ExecutionState from a
// persisted final event to regenerate analysis without re-running the
// workflow.
func stateFromFinalEvent(incident *model.Incident, event *model.IncidentEvent) *model.ExecutionState {
	state := model.NewExecutionState(model.EngineAlert{AlertName: incident.AlertName}, incident.AgentMode)
	if event == nil {
		return state
	}
	var envelope struct {
		State struct {
			ActionTaken       string `json:"action_taken"`
			ActionRecommended string `json:"action_recommended"`
			ActionError       string `json:"action_error"`
		} `json:"state"`
	}
	if err := json.Unmarshal(event.Payload, &envelope); err == nil {
		state.ActionTaken = envelope.State.ActionTaken
		state.ActionRecommended = envelope.State.ActionRecommended
		state.ActionError = envelope.State.ActionError
	}
	return state
}

// modeFor lets a per-alert label override the process-wide AGENT_MODE,
// the same per-incident mode override agent/service.py supports.
func (d *Dedup) modeFor(alert model.EngineAlert) model.Mode {
	if m := alert.Label("mode"); m == string(model.ModeAuto) || m == string(model.ModeRecommend) {
		return model.Mode(m)
	}
	return d.cfgMode
}
