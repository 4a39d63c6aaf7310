package tools

import (
	"context"
	"fmt"

	"github.com/kube-rca/backend/internal/cluster"
	"github.com/kube-rca/backend/internal/model"
)

// resolveDeploymentAndContainer resolves both halves of the ownership
// chain every Deployment-mutating tool shares: the owning Deployment
// (pod -> ReplicaSet -> Deployment) and the target container (the
// "container" label if present, else the pod's single container if
// unambiguous). Fetches the pod once and reuses it for both.
func resolveDeploymentAndContainer(ctx context.Context, c *cluster.Client, namespace, pod, labelContainer string) (deployment, container string, err error) {
	p, err := c.GetPod(ctx, namespace, pod)
	if err != nil {
		return "", "", model.NewClusterAPIError(err.Error(), true)
	}

	for _, ref := range p.OwnerReferences {
		if ref.Kind != "ReplicaSet" {
			continue
		}
		rs, err := c.GetReplicaSet(ctx, namespace, ref.Name)
		if err != nil {
			continue
		}
		for _, rsRef := range rs.OwnerReferences {
			if rsRef.Kind == "Deployment" {
				deployment = rsRef.Name
				break
			}
		}
		if deployment != "" {
			break
		}
	}
	if deployment == "" {
		return "", "", model.NewEngineError(model.ErrOwnerResolutionFailed, fmt.Sprintf("pod %s/%s is not owned by a deployment", namespace, pod))
	}

	names := make([]string, 0, len(p.Spec.Containers))
	for _, c := range p.Spec.Containers {
		names = append(names, c.Name)
	}
	container, err = resolveContainer(labelContainer, names)
	if err != nil {
		return "", "", err
	}

	return deployment, container, nil
}

// resolveContainer picks the target container: the "container" label if
// present, else the pod's single container if unambiguous, else
// AmbiguousContainer.
func resolveContainer(labelContainer string, containerNames []string) (string, error) {
	if labelContainer != "" {
		return labelContainer, nil
	}
	if len(containerNames) == 1 {
		return containerNames[0], nil
	}
	return "", model.NewEngineError(model.ErrAmbiguousContainer, fmt.Sprintf("cannot determine target container among %v", containerNames))
}
