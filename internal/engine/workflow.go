package engine

import (
	"context"
	"fmt"

	"github.com/kube-rca/backend/internal/cluster"
	"github.com/kube-rca/backend/internal/llm"
	"github.com/kube-rca/backend/internal/model"
	"github.com/kube-rca/backend/internal/tools"
)

// Engine drives one runbook's workflow against one ExecutionState, one
// step at a time: gate, resolve tool, adjudicate arguments, execute,
// aggregate. Tool Registry and Adjudicator are both shared, immutable
// after startup handles — no per-run state lives on Engine itself.
type Engine struct {
	registry    *tools.Registry
	adjudicator *llm.Adjudicator
}

func NewEngine(registry *tools.Registry, adjudicator *llm.Adjudicator) *Engine {
	return &Engine{registry: registry, adjudicator: adjudicator}
}

// Run executes rb.Workflow in order against a fresh ExecutionState and
// returns it. RB_UNKNOWN callers should not call Run at all — the Dedup
// Controller handles that terminal case itself before reaching the engine.
func (e *Engine) Run(ctx context.Context, rb *model.Runbook, alert model.EngineAlert, mode model.Mode, runbooks model.RunbookTable, cl *cluster.Client) *model.ExecutionState {
	state := model.NewExecutionState(alert, mode)
	deps := tools.Deps{Cluster: cl, Runbooks: runbooks, Mode: mode}

	mutatingActionIDs := e.mutatingActionIDs(rb)
	for _, step := range rb.Workflow {
		if ctx.Err() != nil {
			state.ActionError = "cancelled"
			break
		}
		e.runStep(ctx, rb.ID, step, state, deps, mutatingActionIDs)
	}
	return state
}

// mutatingActionIDs lists the runbook's action_ids that resolve to a
// mutating tool, the candidate set ShouldShortcut checks for uniqueness.
func (e *Engine) mutatingActionIDs(rb *model.Runbook) []string {
	var ids []string
	for _, step := range rb.Workflow {
		tool, ok := e.registry.ExpectedTool(step.ActionID)
		if ok && e.registry.IsMutating(tool) {
			ids = append(ids, step.ActionID)
		}
	}
	return ids
}

func (e *Engine) runStep(ctx context.Context, runbookID model.RunbookID, step model.Step, state *model.ExecutionState, deps tools.Deps, mutatingActionIDs []string) {
	// 1. Gate evaluation.
	if gated, reason := evaluateGate(step, state); gated {
		state.RBSteps = append(state.RBSteps, model.StepTrace{
			ActionID: step.ActionID,
			GatedOut: true,
			Reason:   reason,
		})
		return
	}

	// 2. Expected tool.
	expectedTool, ok := e.registry.ExpectedTool(step.ActionID)
	if !ok {
		// Unreachable in practice: the Runbook Loader already validated
		// every action_id against this same registry at load time.
		state.RBSteps = append(state.RBSteps, model.StepTrace{
			ActionID: step.ActionID,
			Result:   model.ResultRecord{OK: false, Error: "unknown_action_id"},
		})
		return
	}

	defaultArgs := defaultArguments(state.Alert, deps.Mode, deps.Runbooks[runbookID], expectedTool)

	// 3. Adjudicate — skip the LLM round trip when this step is the
	// runbook's only mutating candidate; there is nothing to disambiguate.
	var args map[string]any
	var call model.LLMCall
	if e.registry.IsMutating(expectedTool) && llm.ShouldShortcut(runbookID, step.ActionID, mutatingActionIDs) {
		args, call = llm.Shortcut(runbookID, step.ActionID, expectedTool, defaultArgs)
	} else {
		args, call = e.adjudicator.Adjudicate(ctx, runbookID, step.ActionID, expectedTool, state.Alert, state.ToolResults, defaultArgs)
	}
	state.LLMTrace = append(state.LLMTrace, call)

	// 4. Execute — always expectedTool; the adjudicator is constrained on
	// identity, never on the tool name it may have returned.
	result := e.registry.Call(ctx, expectedTool, deps, args)
	alias := e.registry.Alias(expectedTool)
	state.ToolResults[alias] = result
	state.RBSteps = append(state.RBSteps, model.StepTrace{
		ActionID: step.ActionID,
		ToolName: expectedTool,
		Inputs:   args,
		Result:   result,
	})

	// 5. Aggregate.
	if !e.registry.IsMutating(expectedTool) {
		return
	}
	if !result.OK {
		state.ActionError = result.Error
		return
	}
	action, _ := result.Fields["action"].(string)
	if action == "" {
		return
	}
	if deps.Mode == model.ModeAuto {
		state.ActionTaken = action
	} else {
		state.ActionRecommended = action
	}
}

// evaluateGate resolves a Step's when/when_all against tool_results.
// A missing alias resolves to false rather than erroring the step out.
func evaluateGate(step model.Step, state *model.ExecutionState) (gatedOut bool, reason string) {
	if step.When != nil {
		v, _ := state.Lookup(step.When.String())
		if !model.Truthy(v) {
			return true, fmt.Sprintf("gate false: %s", step.When.String())
		}
	}
	for _, gate := range step.WhenAll {
		v, _ := state.Lookup(gate.String())
		if !model.Truthy(v) {
			return true, fmt.Sprintf("gate false: %s", gate.String())
		}
	}
	return false, ""
}

// defaultArguments seeds a step's tool arguments from alert labels, the
// way the engine falls back when the adjudicator errors or is absent.
// fallback_image is read from the runbook's own metadata rather than from
// a prior get_runbook step's tool_results, so patch_image's argument
// availability doesn't depend on step ordering.
func defaultArguments(alert model.EngineAlert, mode model.Mode, rb *model.Runbook, expectedTool string) map[string]any {
	args := map[string]any{
		"namespace": alert.Label("namespace"),
		"pod":       alert.Label("pod"),
		"container": alert.Label("container"),
		"node":      alert.Label("node"),
		"mode":      string(mode),
	}
	if expectedTool == "fix_imagepullbackoff" && rb != nil {
		args["fallback_image"] = rb.FallbackImage()
	}
	if rid := alert.Label("runbook_id"); rid != "" {
		args["runbook_id"] = rid
	} else if rb != nil {
		args["runbook_id"] = string(rb.ID)
	}
	return args
}
