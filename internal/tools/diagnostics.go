package tools

import (
	"context"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/kube-rca/backend/internal/model"
)

// toolGetRunbook reads in-memory runbook metadata. MVP mirrors the source:
// only the patch_image action's fallback_image is surfaced.
func toolGetRunbook(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	runbookID := model.RunbookID(stringArg(args, "runbook_id"))
	rb, ok := deps.Runbooks[runbookID]
	if !ok {
		return model.ResultRecord{OK: false, Error: "runbook_not_found"}
	}
	fallback := rb.FallbackImage()
	if fallback == "" {
		return model.ResultRecord{OK: false, Error: "missing_fallback_image"}
	}
	return model.ResultRecord{OK: true, Fields: map[string]any{
		"runbook_id":     string(runbookID),
		"action_id":      "patch_image",
		"fallback_image": fallback,
	}}
}

// toolGetPodEvents scans the pod's event stream and classifies OOM and
// sandbox-failure hints, alias "events".
func toolGetPodEvents(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	namespace := stringArg(args, "namespace")
	pod := stringArg(args, "pod")
	if namespace == "" || pod == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	events, err := deps.Cluster.ListEventsForPod(ctx, namespace, pod)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	var oomMatches, sandboxMatches []string
	rendered := make([]map[string]any, 0, len(events))
	for _, e := range events {
		msgLower := strings.ToLower(e.Reason + " " + e.Message)
		rendered = append(rendered, map[string]any{
			"type":    e.Type,
			"reason":  e.Reason,
			"message": e.Message,
			"count":   e.Count,
		})
		if strings.Contains(msgLower, "oomkilled") || strings.Contains(msgLower, "oom-killed") ||
			strings.Contains(msgLower, "out of memory") || strings.Contains(msgLower, "memory limit too low") {
			oomMatches = append(oomMatches, e.Reason+": "+e.Message)
		}
		if strings.Contains(msgLower, "failedcreatepodsandbox") || strings.Contains(msgLower, "pod sandbox") {
			if strings.Contains(msgLower, "cannot start a stopped process") || strings.Contains(msgLower, "cannot start a container that has stopped") {
				sandboxMatches = append(sandboxMatches, e.Reason+": "+e.Message)
			}
		}
	}

	return model.ResultRecord{OK: true, Fields: map[string]any{
		"namespace":                 namespace,
		"pod":                       pod,
		"events":                    rendered,
		"oom_detected":              len(oomMatches) > 0,
		"sandbox_failure_detected":  len(sandboxMatches) > 0,
	}}
}

// toolCheckImagePullBackoff consults container waiting reasons plus
// events, alias "imagepull".
func toolCheckImagePullBackoff(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	namespace := stringArg(args, "namespace")
	pod := stringArg(args, "pod")
	container := stringArg(args, "container")
	if namespace == "" || pod == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	p, err := deps.Cluster.GetPod(ctx, namespace, pod)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	detected := false
	detectedContainer := ""
	reasons := make(map[string]struct{})

	for _, cs := range p.Status.ContainerStatuses {
		if container != "" && cs.Name != container {
			continue
		}
		if cs.State.Waiting == nil {
			continue
		}
		switch cs.State.Waiting.Reason {
		case "ImagePullBackOff", "ErrImagePull":
			detected = true
			if detectedContainer == "" {
				detectedContainer = cs.Name
			}
			reasons["pod_status_waiting_reason:"+cs.State.Waiting.Reason] = struct{}{}
		}
	}

	events, err := deps.Cluster.ListEventsForPod(ctx, namespace, pod)
	if err == nil {
		for _, e := range events {
			msgLower := strings.ToLower(e.Reason + " " + e.Message)
			if strings.Contains(msgLower, "imagepullbackoff") || strings.Contains(msgLower, "errimagepull") || strings.Contains(msgLower, "failed to pull image") {
				detected = true
				reasons["event_mentions_imagepull"] = struct{}{}
			}
		}
	}

	if detectedContainer == "" {
		detectedContainer = container
	}

	return model.ResultRecord{OK: true, Fields: map[string]any{
		"namespace":          namespace,
		"pod":                pod,
		"imagepull_detected": detected,
		"container":          detectedContainer,
		"reasons":            sortedKeys(reasons),
	}}
}

// toolCheckOOM consults terminated-state reasons plus events, alias "oom".
func toolCheckOOM(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	namespace := stringArg(args, "namespace")
	pod := stringArg(args, "pod")
	container := stringArg(args, "container")
	if namespace == "" || pod == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	p, err := deps.Cluster.GetPod(ctx, namespace, pod)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	detected := false
	detectedContainer := ""
	reasons := make(map[string]struct{})

	checkTerminated := func(name string, term *corev1.ContainerStateTerminated) {
		if term != nil && term.Reason == "OOMKilled" {
			detected = true
			if detectedContainer == "" {
				detectedContainer = name
			}
			reasons["pod_status_terminated_reason:OOMKilled"] = struct{}{}
		}
	}

	for _, cs := range p.Status.ContainerStatuses {
		if container != "" && cs.Name != container {
			continue
		}
		checkTerminated(cs.Name, cs.State.Terminated)
		checkTerminated(cs.Name, cs.LastTerminationState.Terminated)
	}

	events, err := deps.Cluster.ListEventsForPod(ctx, namespace, pod)
	if err == nil {
		for _, e := range events {
			msgLower := strings.ToLower(e.Reason + " " + e.Message)
			if strings.Contains(msgLower, "oomkilled") || strings.Contains(msgLower, "oom-killed") ||
				strings.Contains(msgLower, "out of memory") || strings.Contains(msgLower, "memory limit too low") {
				detected = true
				reasons["event_mentions_oom"] = struct{}{}
			}
		}
	}

	if detectedContainer == "" {
		detectedContainer = container
	}

	return model.ResultRecord{OK: true, Fields: map[string]any{
		"namespace":    namespace,
		"pod":          pod,
		"oom_detected": detected,
		"container":    detectedContainer,
		"reasons":      sortedKeys(reasons),
	}}
}

// toolGetNodeReady reports the Ready condition plus the unschedulable
// spec flag, alias "node_ready".
func toolGetNodeReady(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	node := stringArg(args, "node")
	if node == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	n, err := deps.Cluster.GetNode(ctx, node)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	ready := false
	for _, c := range n.Status.Conditions {
		if c.Type == corev1.NodeReady {
			ready = c.Status == corev1.ConditionTrue
			break
		}
	}

	return model.ResultRecord{OK: true, Fields: map[string]any{
		"node":          node,
		"ready":         ready,
		"not_ready":     !ready,
		"unschedulable": n.Spec.Unschedulable,
	}}
}

// toolGetNodeConditions classifies every non-Ready condition; healthy iff
// all of them report status False, alias "node_conditions".
func toolGetNodeConditions(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	node := stringArg(args, "node")
	if node == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	n, err := deps.Cluster.GetNode(ctx, node)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	conditions := make(map[string]any, len(n.Status.Conditions))
	var problems []map[string]any
	for _, c := range n.Status.Conditions {
		rec := map[string]any{
			"type":    string(c.Type),
			"status":  string(c.Status),
			"reason":  c.Reason,
			"message": c.Message,
		}
		conditions[string(c.Type)] = rec
		if c.Type == corev1.NodeReady {
			continue
		}
		if c.Status != corev1.ConditionFalse {
			problems = append(problems, rec)
		}
	}

	return model.ResultRecord{OK: true, Fields: map[string]any{
		"node":       node,
		"healthy":    len(problems) == 0,
		"problems":   problems,
		"conditions": conditions,
	}}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
