package tools

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/kube-rca/backend/internal/model"
)

// actionString builds a mutating tool's result fields: the action message
// plus the mode. The Workflow Engine copies the message into action_taken
// in auto mode and into action_recommended in recommend mode.
func actionString(mode model.Mode, message string) map[string]any {
	fields := map[string]any{"action": message, "mode": string(mode)}
	return fields
}

// toolFixImagePullBackoff resolves the owning Deployment and patches the
// named container's image to the runbook's fallback_image.
func toolFixImagePullBackoff(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	namespace := stringArg(args, "namespace")
	pod := stringArg(args, "pod")
	fallbackImage := stringArg(args, "fallback_image")
	if namespace == "" || pod == "" || fallbackImage == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	deployment, container, err := resolveDeploymentAndContainer(ctx, deps.Cluster, namespace, pod, stringArg(args, "container"))
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	message := fmt.Sprintf("patch_image:%s/%s/%s:%s", namespace, deployment, container, fallbackImage)

	if deps.Mode == model.ModeAuto {
		if err := deps.Cluster.PatchDeploymentContainerImage(ctx, namespace, deployment, container, fallbackImage); err != nil {
			return model.ResultRecord{OK: false, Error: err.Error()}
		}
	}

	fields := actionString(deps.Mode, message)
	fields["deployment"] = deployment
	return model.ResultRecord{OK: true, Fields: fields}
}

// toolIncreaseMemoryLimit resolves the owning Deployment, reads the
// container's current memory limit, and clamps it per clampMemoryLimit.
func toolIncreaseMemoryLimit(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	namespace := stringArg(args, "namespace")
	pod := stringArg(args, "pod")
	if namespace == "" || pod == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	deployment, container, err := resolveDeploymentAndContainer(ctx, deps.Cluster, namespace, pod, stringArg(args, "container"))
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	d, err := deps.Cluster.GetDeployment(ctx, namespace, deployment)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	var currentLimit string
	for _, c := range d.Spec.Template.Spec.Containers {
		if c.Name != container {
			continue
		}
		if mem, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			currentLimit = mem.String()
		}
		break
	}

	newLimit, err := clampMemoryLimit(currentLimit, 2.0, "256Mi", "4Gi")
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	if currentLimit != "" && newLimit == currentLimit {
		return model.ResultRecord{OK: true, Fields: map[string]any{
			"noop":       true,
			"reason":     "current_limit_at_or_above_max",
			"deployment": deployment,
			"container":  container,
			"old_limit":  currentLimit,
			"new_limit":  newLimit,
			"mode":       string(deps.Mode),
		}}
	}

	message := fmt.Sprintf("patch_memory_limit:%s/%s/%s:%s->%s", namespace, deployment, container, currentLimit, newLimit)

	if deps.Mode == model.ModeAuto {
		if err := deps.Cluster.PatchDeploymentContainerMemoryLimit(ctx, namespace, deployment, container, newLimit); err != nil {
			return model.ResultRecord{OK: false, Error: err.Error()}
		}
	}

	fields := actionString(deps.Mode, message)
	fields["deployment"] = deployment
	fields["container"] = container
	fields["old_limit"] = currentLimit
	fields["new_limit"] = newLimit
	return model.ResultRecord{OK: true, Fields: fields}
}

// toolDeletePod deletes a pod to force recreation, a safe "restart" for a
// controller-owned pod.
func toolDeletePod(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	namespace := stringArg(args, "namespace")
	pod := stringArg(args, "pod")
	if namespace == "" || pod == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	message := fmt.Sprintf("delete_pod:%s/%s", namespace, pod)

	if deps.Mode == model.ModeAuto {
		if err := deps.Cluster.DeletePod(ctx, namespace, pod); err != nil {
			return model.ResultRecord{OK: false, Error: err.Error()}
		}
	}

	return model.ResultRecord{OK: true, Fields: actionString(deps.Mode, message)}
}

// toolCordonNode patches spec.unschedulable=true.
func toolCordonNode(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	return patchUnschedulable(ctx, deps, args, true, "cordon_node")
}

// toolUncordonNode patches spec.unschedulable=false.
func toolUncordonNode(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	return patchUnschedulable(ctx, deps, args, false, "uncordon_node")
}

func patchUnschedulable(ctx context.Context, deps Deps, args map[string]any, unschedulable bool, verb string) model.ResultRecord {
	node := stringArg(args, "node")
	if node == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	message := fmt.Sprintf("%s:%s", verb, node)

	if deps.Mode == model.ModeAuto {
		if err := deps.Cluster.PatchNodeUnschedulable(ctx, node, unschedulable); err != nil {
			return model.ResultRecord{OK: false, Error: err.Error()}
		}
	}

	return model.ResultRecord{OK: true, Fields: actionString(deps.Mode, message)}
}

// toolDrainNode enumerates pods on the node and evicts every one that is
// not a mirror pod, not DaemonSet-owned, and not in kube-system. Best
// effort: per-pod eviction failures don't abort the drain.
func toolDrainNode(ctx context.Context, deps Deps, args map[string]any) model.ResultRecord {
	node := stringArg(args, "node")
	if node == "" {
		return model.ResultRecord{OK: false, Error: "missing_required_params"}
	}

	pods, err := deps.Cluster.ListPodsOnNode(ctx, node)
	if err != nil {
		return model.ResultRecord{OK: false, Error: err.Error()}
	}

	var targets []corev1.Pod
	var skipped []map[string]any
	for _, p := range pods {
		if _, ok := p.Annotations["kubernetes.io/config.mirror"]; ok {
			skipped = append(skipped, map[string]any{"namespace": p.Namespace, "pod": p.Name, "reason": "mirror_pod"})
			continue
		}
		if ownedByDaemonSet(p) {
			skipped = append(skipped, map[string]any{"namespace": p.Namespace, "pod": p.Name, "reason": "daemonset"})
			continue
		}
		if p.Namespace == "kube-system" {
			skipped = append(skipped, map[string]any{"namespace": p.Namespace, "pod": p.Name, "reason": "kube-system"})
			continue
		}
		targets = append(targets, p)
	}

	message := fmt.Sprintf("drain_node:%s:evict=%d", node, len(targets))

	if deps.Mode != model.ModeAuto {
		return model.ResultRecord{OK: true, Fields: map[string]any{
			"action":  message,
			"mode":    string(deps.Mode),
			"skipped": skipped,
		}}
	}

	var evicted, failed int
	var errors []string
	for _, p := range targets {
		if err := deps.Cluster.EvictPod(ctx, p.Namespace, p.Name, 30); err != nil {
			failed++
			errors = append(errors, fmt.Sprintf("%s/%s:%v", p.Namespace, p.Name, err))
			continue
		}
		evicted++
	}

	return model.ResultRecord{
		OK: failed == 0,
		Fields: map[string]any{
			"action":    message,
			"mode":      "auto",
			"attempted": len(targets),
			"evicted":   evicted,
			"skipped":   len(skipped),
			"failed":    failed,
			"errors":    errors,
		},
	}
}

func ownedByDaemonSet(p corev1.Pod) bool {
	for _, ref := range p.OwnerReferences {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	return false
}
