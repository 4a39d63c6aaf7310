package engine

import (
	"context"
	"testing"

	"k8s.io/client-go/kubernetes/fake"

	"github.com/kube-rca/backend/internal/cluster"
	"github.com/kube-rca/backend/internal/llm"
	"github.com/kube-rca/backend/internal/model"
	"github.com/kube-rca/backend/internal/tools"
)

func newTestEngine() *Engine {
	registry := tools.NewRegistry()
	return NewEngine(registry, llm.NewAdjudicator(nil))
}

func fakeCluster() *cluster.Client {
	return cluster.NewClientFromInterface(fake.NewSimpleClientset())
}

func TestRunAggregatesMutatingActionInRecommendMode(t *testing.T) {
	rb := &model.Runbook{
		ID:        model.RBCrashLoop,
		AlertName: "KubePodCrashLoopBackOff",
		Workflow: []model.Step{
			{ActionID: "get_pod_events"},
			{ActionID: "restart_pod"},
		},
	}
	runbooks := model.RunbookTable{rb.ID: rb}
	alert := model.EngineAlert{
		AlertName: "KubePodCrashLoopBackOff",
		Labels:    map[string]string{"namespace": "ns", "pod": "p"},
	}

	e := newTestEngine()
	state := e.Run(context.Background(), rb, alert, model.ModeRecommend, runbooks, fakeCluster())

	if state.ActionTaken != "" {
		t.Fatalf("recommend mode must never set ActionTaken, got %q", state.ActionTaken)
	}
	if state.ActionRecommended == "" {
		t.Fatalf("expected ActionRecommended to be set")
	}
	if len(state.RBSteps) != 2 {
		t.Fatalf("expected 2 step traces, got %d", len(state.RBSteps))
	}
}

func TestRunGatesOutStepOnMissingAlias(t *testing.T) {
	gate, err := model.ParseGateExpr("events.oom_detected")
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	rb := &model.Runbook{
		ID: model.RBOOM,
		Workflow: []model.Step{
			{ActionID: "increase_resources", When: &gate},
		},
	}
	runbooks := model.RunbookTable{rb.ID: rb}
	alert := model.EngineAlert{Labels: map[string]string{"namespace": "ns", "pod": "p"}}

	e := newTestEngine()
	state := e.Run(context.Background(), rb, alert, model.ModeRecommend, runbooks, fakeCluster())

	if len(state.RBSteps) != 1 || !state.RBSteps[0].GatedOut {
		t.Fatalf("expected the step to be gated out, got %+v", state.RBSteps)
	}
	if state.ActionRecommended != "" {
		t.Fatalf("gated-out step must not aggregate into ActionRecommended")
	}
}

func TestRunRecordsActionErrorOnMutatingFailure(t *testing.T) {
	rb := &model.Runbook{
		ID: model.RBCrashLoop,
		Workflow: []model.Step{
			{ActionID: "restart_pod"},
		},
	}
	runbooks := model.RunbookTable{rb.ID: rb}
	// Missing pod/namespace makes toolDeletePod fail with missing_required_params.
	alert := model.EngineAlert{}

	e := newTestEngine()
	state := e.Run(context.Background(), rb, alert, model.ModeRecommend, runbooks, fakeCluster())

	if state.ActionError == "" {
		t.Fatalf("expected ActionError to be set on tool failure")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	rb := &model.Runbook{
		ID: model.RBCrashLoop,
		Workflow: []model.Step{
			{ActionID: "get_pod_events"},
			{ActionID: "restart_pod"},
		},
	}
	runbooks := model.RunbookTable{rb.ID: rb}
	alert := model.EngineAlert{
		AlertName: "KubePodCrashLoopBackOff",
		Labels:    map[string]string{"namespace": "ns", "pod": "p"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine()
	state := e.Run(ctx, rb, alert, model.ModeRecommend, runbooks, fakeCluster())

	if len(state.RBSteps) != 0 {
		t.Fatalf("expected no steps to run once the context is cancelled, got %+v", state.RBSteps)
	}
	if state.ActionError != "cancelled" {
		t.Fatalf("expected ActionError %q, got %q", "cancelled", state.ActionError)
	}
}

func TestMutatingActionIDsCollectsOnlyMutatingSteps(t *testing.T) {
	rb := &model.Runbook{
		ID: model.RBOOM,
		Workflow: []model.Step{
			{ActionID: "get_pod_events"},
			{ActionID: "increase_resources"},
			{ActionID: "restart_pod"},
		},
	}
	e := newTestEngine()
	ids := e.mutatingActionIDs(rb)
	if len(ids) != 2 {
		t.Fatalf("expected 2 mutating action ids, got %v", ids)
	}
}
