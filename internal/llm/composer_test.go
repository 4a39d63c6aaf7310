package llm

import (
	"context"
	"testing"

	"github.com/kube-rca/backend/internal/model"
)

func TestComposeErrorsWhenGenAINotConfigured(t *testing.T) {
	c := NewComposer(nil)
	state := model.NewExecutionState(model.EngineAlert{}, model.ModeAuto)
	_, err := c.Compose(context.Background(), model.RBOOM, "test-cluster", model.EngineAlert{}, state, nil)
	if err == nil {
		t.Fatalf("expected an error when genai is not configured")
	}
}

func TestFinalStateViewProjectsExecutionState(t *testing.T) {
	state := model.NewExecutionState(model.EngineAlert{}, model.ModeAuto)
	state.ActionTaken = "patch_image:ns/deploy/app:nginx:stable"
	state.RBSteps = append(state.RBSteps, model.StepTrace{
		ActionID: "patch_image",
		ToolName: "fix_imagepullbackoff",
		Result:   model.ResultRecord{OK: true},
	})

	view := finalStateView(state)
	if view["action_taken"] != "patch_image:ns/deploy/app:nginx:stable" {
		t.Fatalf("got %+v", view)
	}
	steps, ok := view["steps"].([]map[string]any)
	if !ok || len(steps) != 1 {
		t.Fatalf("expected 1 step in view, got %+v", view["steps"])
	}
	if steps[0]["action_id"] != "patch_image" {
		t.Fatalf("got %+v", steps[0])
	}
}
