// Defines the Alertmanager webhook payload and individual alert struct.
// Shared across the handler, service, and client layers, so it lives in
// the model layer rather than any one of them.

package model

import "time"

// AlertmanagerWebhook is the Alertmanager webhook payload: one or more
// alerts batched into a single group.
type AlertmanagerWebhook struct {
	Version string `json:"version"`

	// Alerts sharing the same GroupKey were batched together.
	GroupKey string `json:"groupKey"`

	// Count of alerts omitted from this batch by Alertmanager's max_alerts setting.
	TruncatedAlerts int    `json:"truncatedAlerts"`
	Status          string `json:"status"`
	Receiver        string `json:"receiver"`

	// Labels the group was keyed on, per route.group_by.
	GroupLabels map[string]string `json:"groupLabels"`

	// Labels common to every alert in the group.
	CommonLabels map[string]string `json:"commonLabels"`

	// Annotations common to every alert in the group.
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`

	Alerts []Alert `json:"alerts"`
}

// Alert is one individual alert. Fingerprint uniquely identifies it.
type Alert struct {
	Status string `json:"status"`

	// Labels carries alertname (e.g. "PodCrashLooping", "HighMemoryUsage"),
	// severity, namespace, pod, and whatever else the alerting rule set.
	Labels map[string]string `json:"labels"`

	// Annotations carries summary, description, runbook_url, and similar
	// free-text fields.
	Annotations map[string]string `json:"annotations"`

	// StartsAt is when the alert fired, UTC.
	StartsAt time.Time `json:"startsAt"`

	// EndsAt is only meaningful once the alert resolves; while firing it
	// reads the zero time "0001-01-01T00:00:00Z".
	EndsAt time.Time `json:"endsAt"`

	// GeneratorURL is the Prometheus query that produced this alert.
	GeneratorURL string `json:"generatorURL"`

	// Fingerprint identifies the alert: a hash derived from its labels.
	Fingerprint string `json:"fingerprint"`
}
