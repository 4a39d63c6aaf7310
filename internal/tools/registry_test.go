package tools

import (
	"context"
	"testing"

	"github.com/kube-rca/backend/internal/model"
)

func TestIsMutating(t *testing.T) {
	r := NewRegistry()
	mutating := []string{"fix_imagepullbackoff", "increase_memory_limit", "delete_pod", "cordon_node", "uncordon_node", "drain_node"}
	for _, name := range mutating {
		if !r.IsMutating(name) {
			t.Errorf("expected %s to be mutating", name)
		}
	}
	diagnostics := []string{"get_runbook", "get_pod_events", "check_imagepullbackoff", "check_oom", "get_node_ready", "get_node_conditions", "noop"}
	for _, name := range diagnostics {
		if r.IsMutating(name) {
			t.Errorf("expected %s to not be mutating", name)
		}
	}
}

func TestExpectedToolResolvesActionIDs(t *testing.T) {
	r := NewRegistry()
	cases := map[string]string{
		"patch_image":        "fix_imagepullbackoff",
		"increase_resources": "increase_memory_limit",
		"restart_pod":        "delete_pod",
		"cordon":             "cordon_node",
		"uncordon":           "uncordon_node",
		"drain":              "drain_node",
	}
	for actionID, wantTool := range cases {
		got, ok := r.ExpectedTool(actionID)
		if !ok || got != wantTool {
			t.Errorf("ExpectedTool(%q) = (%q, %v), want (%q, true)", actionID, got, ok, wantTool)
		}
	}
	if _, ok := r.ExpectedTool("not_a_real_action"); ok {
		t.Errorf("expected unknown action_id to resolve false")
	}
}

func TestHasToolAndAlias(t *testing.T) {
	r := NewRegistry()
	if !r.HasTool("get_runbook") {
		t.Errorf("expected get_runbook to be a known tool")
	}
	if r.HasTool("delete_namespace") {
		t.Errorf("did not expect delete_namespace to be a known tool")
	}
	if got := r.Alias("get_runbook"); got != "runbook" {
		t.Errorf("Alias(get_runbook) = %q, want runbook", got)
	}
	if got := r.Alias("unregistered_tool"); got != "unregistered_tool" {
		t.Errorf("Alias fallback should return the tool name itself, got %q", got)
	}
}

func TestCallUnknownToolReturnsNotOK(t *testing.T) {
	r := NewRegistry()
	result := r.Call(context.Background(), "does_not_exist", Deps{}, nil)
	if result.OK || result.Error != "unknown_tool" {
		t.Fatalf("got %+v", result)
	}
}

func TestCallNoop(t *testing.T) {
	r := NewRegistry()
	result := r.Call(context.Background(), "noop", Deps{Mode: model.ModeAuto}, nil)
	if !result.OK {
		t.Fatalf("expected noop to succeed, got %+v", result)
	}
}
