// Package tools implements the closed set of tools this agent is allowed
// to call: a handful of read-only diagnostics plus mode-gated mutating
// actions, ownership-chain resolution, and the node-health/drain policy
// they share.
// Every tool returns a model.ResultRecord; none returns a Go error outward
// — failures are captured as ResultRecord{OK: false, Error: ...} rather
// than propagated as Go errors, so one tool failure never aborts a
// workflow the way an unhandled panic would.
package tools

import (
	"context"

	"github.com/kube-rca/backend/internal/cluster"
	"github.com/kube-rca/backend/internal/config"
	"github.com/kube-rca/backend/internal/model"
)

// Func is the signature every registered tool implements. args comes from
// the LLM Adjudicator (or the direct-invocation fallback); mode controls
// whether a mutating tool actually mutates.
type Func func(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord

// Deps bundles what a tool needs beyond its arguments: the cluster client
// and the loaded runbook table (for get_runbook), plus the alert's mode.
type Deps struct {
	Cluster  *cluster.Client
	Runbooks model.RunbookTable
	Mode     model.Mode
}

// Registry is the closed, load-once set of tools, plus the action_id →
// expected_tool table the Runbook Loader validates against and the
// Workflow Engine consults at each step.
type Registry struct {
	tools       map[string]Func
	actionTable map[string]string
	aliasTable  map[string]string
	mutating    map[string]struct{}
}

// NewRegistry builds the registry with every tool wired in. This is the
// single place a new tool is added to the closed set.
func NewRegistry() *Registry {
	r := &Registry{
		tools:       make(map[string]Func),
		actionTable: make(map[string]string),
		aliasTable:  make(map[string]string),
		mutating:    make(map[string]struct{}),
	}

	r.register("get_runbook", toolGetRunbook)
	r.register("get_pod_events", toolGetPodEvents)
	r.register("check_imagepullbackoff", toolCheckImagePullBackoff)
	r.register("check_oom", toolCheckOOM)
	r.register("get_node_ready", toolGetNodeReady)
	r.register("get_node_conditions", toolGetNodeConditions)
	r.register("fix_imagepullbackoff", toolFixImagePullBackoff)
	r.register("increase_memory_limit", toolIncreaseMemoryLimit)
	r.register("delete_pod", toolDeletePod)
	r.register("cordon_node", toolCordonNode)
	r.register("uncordon_node", toolUncordonNode)
	r.register("drain_node", toolDrainNode)
	r.register("noop", toolNoop)

	// Mutating tools: the Workflow Engine's aggregation step only routes a
	// result's "action" field into action_taken / action_recommended for
	// members of this set.
	for _, name := range []string{"fix_imagepullbackoff", "increase_memory_limit", "delete_pod", "cordon_node", "uncordon_node", "drain_node"} {
		r.mutating[name] = struct{}{}
	}

	// action_id -> expected_tool, the fixed table the workflow engine
	// consults when resolving a step. Diagnostic steps use the tool name
	// as their own action_id; mutating steps get a friendlier,
	// runbook-facing action_id.
	r.actionTable["get_runbook"] = "get_runbook"
	r.actionTable["get_pod_events"] = "get_pod_events"
	r.actionTable["check_imagepullbackoff"] = "check_imagepullbackoff"
	r.actionTable["check_oom"] = "check_oom"
	r.actionTable["get_node_ready"] = "get_node_ready"
	r.actionTable["get_node_conditions"] = "get_node_conditions"
	r.actionTable["patch_image"] = "fix_imagepullbackoff"
	r.actionTable["increase_resources"] = "increase_memory_limit"
	r.actionTable["restart_pod"] = "delete_pod"
	r.actionTable["cordon"] = "cordon_node"
	r.actionTable["uncordon"] = "uncordon_node"
	r.actionTable["drain"] = "drain_node"
	r.actionTable["noop"] = "noop"

	// tool name -> alias, the key tool_results is written under. "runbook"
	// is this port's choice for get_runbook, recorded in DESIGN.md.
	r.aliasTable["get_runbook"] = "runbook"
	r.aliasTable["get_pod_events"] = "events"
	r.aliasTable["check_imagepullbackoff"] = "imagepull"
	r.aliasTable["check_oom"] = "oom"
	r.aliasTable["get_node_ready"] = "node_ready"
	r.aliasTable["get_node_conditions"] = "node_conditions"
	r.aliasTable["fix_imagepullbackoff"] = "imagepull_fix"
	r.aliasTable["increase_memory_limit"] = "increase_resources"
	r.aliasTable["delete_pod"] = "delete_pod"
	r.aliasTable["cordon_node"] = "cordon"
	r.aliasTable["uncordon_node"] = "uncordon"
	r.aliasTable["drain_node"] = "drain"
	r.aliasTable["noop"] = "noop"

	return r
}

// Alias returns the tool_results key a tool's output is recorded under.
func (r *Registry) Alias(toolName string) string {
	if alias, ok := r.aliasTable[toolName]; ok {
		return alias
	}
	return toolName
}

func (r *Registry) register(name string, fn Func) {
	r.tools[name] = fn
}

// ExpectedTool resolves an action_id to its expected_tool name. Called by
// the Runbook Loader at load time (fail-fast on unknown action_id) and by
// the Workflow Engine at run time.
func (r *Registry) ExpectedTool(actionID string) (string, bool) {
	name, ok := r.actionTable[actionID]
	return name, ok
}

// HasTool reports whether a tool name is in the closed set. The Runbook
// Loader does not call it; it validates action_ids through ExpectedTool.
func (r *Registry) HasTool(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// IsMutating reports whether a tool's result should be aggregated into
// action_taken/action_recommended rather than left as a diagnostic result.
func (r *Registry) IsMutating(name string) bool {
	_, ok := r.mutating[name]
	return ok
}

// Call dispatches to the named tool. An unknown tool name is itself a bug
// (the Workflow Engine only ever calls a name it already validated via
// ExpectedTool), so it is the one case this package returns via a
// not-ok ResultRecord rather than panicking.
func (r *Registry) Call(ctx context.Context, name string, deps Deps, args map[string]any) model.ResultRecord {
	fn, ok := r.tools[name]
	if !ok {
		config.Warnf("tool=%s ok=false error=unknown_tool", name)
		return model.ResultRecord{OK: false, Error: "unknown_tool"}
	}
	result := fn(ctx, deps, args)
	config.Debugf("tool=%s ok=%v", name, result.OK)
	return result
}

func toolNoop(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	return model.ResultRecord{OK: true, Fields: map[string]any{}}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
