package cluster

import (
	"context"
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	policyv1 "k8s.io/api/policy/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// GetPod fetches a pod by namespace/name.
func (c *Client) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.Clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
}

// ListEventsForPod lists events whose involvedObject.name matches pod, the
// same field selector the original tool used.
func (c *Client) ListEventsForPod(ctx context.Context, namespace, pod string) ([]corev1.Event, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	list, err := c.Clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("involvedObject.name=%s", pod),
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetReplicaSet fetches a ReplicaSet by namespace/name.
func (c *Client) GetReplicaSet(ctx context.Context, namespace, name string) (*appsv1.ReplicaSet, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.Clientset.AppsV1().ReplicaSets(namespace).Get(ctx, name, metav1.GetOptions{})
}

// GetDeployment fetches a Deployment by namespace/name.
func (c *Client) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.Clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
}

// PatchDeploymentContainerImage strategic-merge-patches one container's
// image in a Deployment's pod template.
func (c *Client) PatchDeploymentContainerImage(ctx context.Context, namespace, deployment, container, image string) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []map[string]any{
						{"name": container, "image": image},
					},
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err = c.Clientset.AppsV1().Deployments(namespace).Patch(ctx, deployment, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	return err
}

// PatchDeploymentContainerMemoryLimit strategic-merge-patches one
// container's memory limit in a Deployment's pod template.
func (c *Client) PatchDeploymentContainerMemoryLimit(ctx context.Context, namespace, deployment, container, memoryLimit string) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"spec": map[string]any{
					"containers": []map[string]any{
						{
							"name": container,
							"resources": map[string]any{
								"limits": map[string]any{"memory": memoryLimit},
							},
						},
					},
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err = c.Clientset.AppsV1().Deployments(namespace).Patch(ctx, deployment, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	return err
}

// DeletePod deletes a pod by namespace/name.
func (c *Client) DeletePod(ctx context.Context, namespace, pod string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.Clientset.CoreV1().Pods(namespace).Delete(ctx, pod, metav1.DeleteOptions{})
}

// GetNode fetches a node by name.
func (c *Client) GetNode(ctx context.Context, name string) (*corev1.Node, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.Clientset.CoreV1().Nodes().Get(ctx, name, metav1.GetOptions{})
}

// PatchNodeUnschedulable sets spec.unschedulable on a node (cordon/uncordon).
func (c *Client) PatchNodeUnschedulable(ctx context.Context, node string, unschedulable bool) error {
	patch := map[string]any{"spec": map[string]any{"unschedulable": unschedulable}}
	body, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	_, err = c.Clientset.CoreV1().Nodes().Patch(ctx, node, types.StrategicMergePatchType, body, metav1.PatchOptions{})
	return err
}

// ListPodsOnNode lists every pod scheduled onto the given node, across all
// namespaces.
func (c *Client) ListPodsOnNode(ctx context.Context, node string) ([]corev1.Pod, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	list, err := c.Clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("spec.nodeName=%s", node),
	})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// EvictPod submits an eviction request against the policy/v1 eviction
// subresource, a best-effort drain primitive.
func (c *Client) EvictPod(ctx context.Context, namespace, pod string, gracePeriodSeconds int64) error {
	eviction := &policyv1.Eviction{
		ObjectMeta: metav1.ObjectMeta{Name: pod, Namespace: namespace},
		DeleteOptions: &metav1.DeleteOptions{
			GracePeriodSeconds: &gracePeriodSeconds,
		},
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.Clientset.PolicyV1().Evictions(namespace).Evict(ctx, eviction)
}
