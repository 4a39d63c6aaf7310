package llm

import (
	"context"
	"testing"

	"github.com/kube-rca/backend/internal/model"
)

func TestAdjudicateFallsBackWhenGenAINotConfigured(t *testing.T) {
	a := NewAdjudicator(nil)
	defaults := map[string]any{"namespace": "ns", "pod": "p"}
	args, call := a.Adjudicate(context.Background(), model.RBImagePull, "patch_image", "fix_imagepullbackoff", model.EngineAlert{}, nil, defaults)

	if !call.Override {
		t.Fatalf("expected Override=true when genai is nil")
	}
	if call.Error != "llm_not_configured" {
		t.Fatalf("got error=%q", call.Error)
	}
	if args["namespace"] != "ns" || args["pod"] != "p" {
		t.Fatalf("expected default args passed through, got %+v", args)
	}
	if call.ReturnedTool != "fix_imagepullbackoff" || call.ExpectedTool != "fix_imagepullbackoff" {
		t.Fatalf("tool identity not preserved: %+v", call)
	}
}

func TestShouldShortcutSingleMutatingCandidate(t *testing.T) {
	if !ShouldShortcut(model.RBImagePull, "patch_image", []string{"patch_image"}) {
		t.Fatalf("expected shortcut with a single candidate")
	}
}

func TestShouldShortcutIgnoresNoopAndEmpty(t *testing.T) {
	if !ShouldShortcut(model.RBImagePull, "patch_image", []string{"patch_image", "noop", ""}) {
		t.Fatalf("expected shortcut: noop/empty entries don't count as competing candidates")
	}
}

func TestShouldShortcutFalseWithMultipleCandidates(t *testing.T) {
	if ShouldShortcut(model.RBOOM, "increase_resources", []string{"increase_resources", "restart_pod"}) {
		t.Fatalf("expected no shortcut with two distinct mutating candidates")
	}
}

func TestShouldShortcutFalseWithNoCandidates(t *testing.T) {
	if ShouldShortcut(model.RBOOM, "increase_resources", nil) {
		t.Fatalf("expected no shortcut with zero candidates")
	}
}

func TestShortcutBuildsShortcutLLMCall(t *testing.T) {
	defaults := map[string]any{"namespace": "ns"}
	args, call := Shortcut(model.RBImagePull, "patch_image", "fix_imagepullbackoff", defaults)
	if !call.Shortcut {
		t.Fatalf("expected Shortcut=true")
	}
	if args["namespace"] != "ns" {
		t.Fatalf("expected defaults passed through unchanged, got %+v", args)
	}
}

func TestMergeArgsLLMOverridesNonEmptyValues(t *testing.T) {
	defaults := map[string]any{"namespace": "ns", "pod": "p", "container": "c"}
	returned := map[string]any{"pod": "other-pod", "container": "", "extra": nil}
	merged := mergeArgs(defaults, returned)

	if merged["pod"] != "other-pod" {
		t.Fatalf("expected returned pod to override default, got %v", merged["pod"])
	}
	if merged["container"] != "c" {
		t.Fatalf("expected empty-string override to be ignored, got %v", merged["container"])
	}
	if merged["namespace"] != "ns" {
		t.Fatalf("expected untouched default to survive, got %v", merged["namespace"])
	}
	if _, ok := merged["extra"]; ok {
		t.Fatalf("expected nil-valued returned key to be skipped entirely")
	}
}

func TestSchemaForRequiredFields(t *testing.T) {
	cases := map[string][]string{
		"get_runbook":           {"runbook_id"},
		"fix_imagepullbackoff":  {"container", "namespace", "pod"},
		"get_node_ready":        {"node"},
		"cordon_node":           {"node"},
		"check_imagepullbackoff": {"namespace", "pod"},
	}
	for tool, want := range cases {
		schema := schemaFor(tool)
		if len(schema.Required) != len(want) {
			t.Fatalf("%s: required=%v, want %v", tool, schema.Required, want)
		}
		for i, field := range want {
			if schema.Required[i] != field {
				t.Fatalf("%s: required=%v, want %v", tool, schema.Required, want)
			}
		}
	}
}
