// Package engine implements the Router, the Workflow Engine, and the
// Dedup Controller: the state machine that ties the Runbook Loader, LLM
// Adjudicator, and Tool Registry together per alert.
package engine

import "github.com/kube-rca/backend/internal/model"

// alertNameTable is the Router's fixed alertname → runbook_id mapping,
// consulted when the alert carries no recognized labels.runbook_id.
var alertNameTable = map[string]model.RunbookID{
	"KubePodImagePullBackOff":       model.RBImagePull,
	"KubePodOOMKilled":              model.RBOOM,
	"KubePodMemoryNearLimit":        model.RBOOM,
	"KubePodContainerCreatingStuck": model.RBContainerCreating,
	"KubePodCrashLoopBackOff":       model.RBCrashLoop,
	"KubeNodeUnschedulable":         model.RBNodeUnschedulable,
	"KubeNodeNotReady":              model.RBNodeNotReady,
}

// Router resolves an alert to a runbook id against the loaded table, so it
// never routes to a runbook that failed to load.
type Router struct {
	runbooks model.RunbookTable
}

func NewRouter(runbooks model.RunbookTable) *Router {
	return &Router{runbooks: runbooks}
}

// Route resolves an alert to a runbook: labels.runbook_id first if
// recognized, else the fixed alertname table, else RB_UNKNOWN.
func (r *Router) Route(alert model.EngineAlert) model.RunbookID {
	if id := model.RunbookID(alert.Label("runbook_id")); id != "" {
		if _, ok := r.runbooks[id]; ok {
			return id
		}
	}
	if id, ok := alertNameTable[alert.AlertName]; ok {
		if _, ok := r.runbooks[id]; ok {
			return id
		}
	}
	return model.RBUnknown
}
