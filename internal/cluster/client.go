// Package cluster wraps k8s.io/client-go with the narrow surface the Tool
// Registry needs: reading pods/events/nodes and patching/evicting them.
package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps a kubernetes.Interface. Shared and safe for concurrent use
// across every workflow running in the process — no caching of mutable
// cluster state. Timeout bounds every call ops.go makes through it; a zero
// Timeout means no deadline is applied (tests rely on this).
type Client struct {
	Clientset kubernetes.Interface
	Timeout   time.Duration
}

// NewClient builds a Client from a kubeconfig path, or from the in-cluster
// service account config when kubeconfigPath is empty. timeout bounds every
// call issued through the returned Client.
func NewClient(kubeconfigPath string, timeout time.Duration) (*Client, error) {
	config, err := loadConfig(kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("load kube config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("build clientset: %w", err)
	}

	return &Client{Clientset: clientset, Timeout: timeout}, nil
}

// NewClientFromInterface wraps an existing kubernetes.Interface, used by
// tests to substitute a fake clientset. No timeout is applied.
func NewClientFromInterface(cs kubernetes.Interface) *Client {
	return &Client{Clientset: cs}
}

// withTimeout derives a bounded context from ctx for a single cluster call,
// honoring Client.Timeout. A zero Timeout leaves ctx untouched.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func loadConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		if config, err := rest.InClusterConfig(); err == nil {
			return config, nil
		}
		if home, err := os.UserHomeDir(); err == nil {
			kubeconfigPath = filepath.Join(home, ".kube", "config")
		}
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}
