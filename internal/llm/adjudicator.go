// Package llm implements the LLM Adjudicator and the Analysis Composer's
// prompt construction, both backed by client.GenAIClient.
package llm

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/genai"

	"github.com/kube-rca/backend/internal/client"
	"github.com/kube-rca/backend/internal/config"
	"github.com/kube-rca/backend/internal/model"
)

// Adjudicator asks the LLM to produce a single tool call per workflow
// step, constrained to the expected tool by construction (AllowedFunctionNames),
// and falls back to a direct invocation with alert-derived arguments on any
// adjudicator error or identity mismatch.
type Adjudicator struct {
	genai *client.GenAIClient
}

func NewAdjudicator(genaiClient *client.GenAIClient) *Adjudicator {
	return &Adjudicator{genai: genaiClient}
}

// Adjudicate asks the model, given the alert, the tool_results snapshot
// so far, and the expected tool, to produce {name, arguments}. The
// engine-visible contract is: name is always expectedTool on return (the
// adjudicator is constrained on identity, advisory on arguments); the
// returned LLMCall records whether an override happened (shortcuts are
// recorded by Shortcut, not here).
func (a *Adjudicator) Adjudicate(ctx context.Context, runbookID model.RunbookID, actionID, expectedTool string, alert model.EngineAlert, snapshot map[string]model.ResultRecord, defaultArgs map[string]any) (map[string]any, model.LLMCall) {
	call := model.LLMCall{
		ID:           fmt.Sprintf("%s:%s", runbookID, actionID),
		ActionID:     actionID,
		ExpectedTool: expectedTool,
		ReturnedTool: expectedTool,
	}

	if a.genai == nil {
		call.Override = true
		call.Error = "llm_not_configured"
		return defaultArgs, call
	}

	systemPrompt := fmt.Sprintf(
		"You are an SRE automation agent executing a deterministic runbook workflow step.\n"+
			"You MUST call the tool %q. Do not invent values; prefer the provided alert_context\n"+
			"over guessing. Call noop only if required context is entirely missing.",
		expectedTool,
	)
	userPrompt := fmt.Sprintf("runbook_id=%s action_id=%s alert=%+v tool_results=%+v defaults=%+v",
		runbookID, actionID, alert, snapshotSummary(snapshot), defaultArgs)

	args, err := a.genai.GenerateWithTool(ctx, systemPrompt, userPrompt, expectedTool, fmt.Sprintf("Execute runbook action %s", actionID), schemaFor(expectedTool))
	if err != nil {
		config.Warnf("llm_adjudicate runbook_id=%s action_id=%s tool=%s override=true error=%v", runbookID, actionID, expectedTool, err)
		call.Override = true
		call.Error = err.Error()
		return defaultArgs, call
	}

	merged := mergeArgs(defaultArgs, args)
	config.Debugf("llm_adjudicate runbook_id=%s action_id=%s tool=%s override=false", runbookID, actionID, expectedTool)
	return merged, call
}

// ShouldShortcut implements a deterministic single-action optimization:
// when a runbook step has
// no gate competing for the same alias (i.e. it is the only mutating
// candidate), skip the LLM round trip. The Workflow Engine calls this
// before Adjudicate and, on true, records a Shortcut=true LLMCall instead.
func ShouldShortcut(runbookID model.RunbookID, actionID string, candidateActionIDs []string) bool {
	unique := map[string]struct{}{}
	for _, id := range candidateActionIDs {
		if id != "" && id != "noop" {
			unique[id] = struct{}{}
		}
	}
	return len(unique) == 1
}

// Shortcut builds the LLMCall record for a single-action shortcut, with
// arguments taken directly from defaults (alert labels plus runbook
// metadata) since there is nothing for the LLM to disambiguate.
func Shortcut(runbookID model.RunbookID, actionID, expectedTool string, defaultArgs map[string]any) (map[string]any, model.LLMCall) {
	return defaultArgs, model.LLMCall{
		ID:           fmt.Sprintf("%s:%s", runbookID, actionID),
		ActionID:     actionID,
		ExpectedTool: expectedTool,
		ReturnedTool: expectedTool,
		Shortcut:     true,
	}
}

func snapshotSummary(snapshot map[string]model.ResultRecord) map[string]any {
	out := make(map[string]any, len(snapshot))
	for alias, record := range snapshot {
		out[alias] = map[string]any{"ok": record.OK, "fields": record.Fields}
	}
	return out
}

func mergeArgs(defaults, returned map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(returned))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range returned {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		merged[k] = v
	}
	return merged
}

// schemaFor returns the per-tool argument schema, mirroring _TOOLS_SPEC's
// function declarations.
func schemaFor(toolName string) *genai.Schema {
	props := map[string]*genai.Schema{
		"namespace": {Type: genai.TypeString},
		"pod":       {Type: genai.TypeString},
		"container": {Type: genai.TypeString},
		"node":      {Type: genai.TypeString},
		"mode":      {Type: genai.TypeString},
		"reason":    {Type: genai.TypeString},
	}

	var required []string
	switch toolName {
	case "get_runbook":
		props = map[string]*genai.Schema{
			"runbook_id": {Type: genai.TypeString},
			"reason":     {Type: genai.TypeString},
		}
		required = []string{"runbook_id"}
	case "fix_imagepullbackoff":
		props["fallback_image"] = &genai.Schema{Type: genai.TypeString}
		required = []string{"namespace", "pod", "container"}
	case "get_node_ready", "get_node_conditions", "cordon_node", "uncordon_node", "drain_node":
		props = map[string]*genai.Schema{
			"node":   {Type: genai.TypeString},
			"mode":   {Type: genai.TypeString},
			"reason": {Type: genai.TypeString},
		}
		required = []string{"node"}
	default:
		required = []string{"namespace", "pod"}
	}

	sort.Strings(required)
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   required,
	}
}
