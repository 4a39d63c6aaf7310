package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RunbookID identifies one of the closed set of runbooks the Router can
// resolve an alert to.
type RunbookID string

const (
	RBImagePull         RunbookID = "RB_IMAGEPULL"
	RBOOM               RunbookID = "RB_OOM"
	RBContainerCreating RunbookID = "RB_CONTAINERCREATING"
	RBCrashLoop         RunbookID = "RB_CRASHLOOP"
	RBNodeUnschedulable RunbookID = "RB_NODE_UNSCHEDULABLE"
	RBNodeNotReady      RunbookID = "RB_NODE_NOTREADY"
	RBUnknown           RunbookID = "RB_UNKNOWN"
)

// Mode controls whether mutating tools actually mutate the cluster.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeRecommend Mode = "recommend"
)

// EngineAlert is the normalized alert the Dedup Controller and Workflow
// Engine operate on, produced by the Ingress Adapter from the raw webhook
// payload in alert.go.
type EngineAlert struct {
	AlertName   string
	Labels      map[string]string
	Annotations map[string]string
	StartsAt    time.Time
	Fingerprint string // upstream-provided, optional
	GroupKey    string // upstream-provided, optional
	Status      string
}

func (a EngineAlert) Label(key string) string {
	if a.Labels == nil {
		return ""
	}
	return a.Labels[key]
}

// NewEngineAlert builds an EngineAlert from a raw webhook Alert plus the
// batch-level groupKey, the way the Ingress Adapter does it.
func NewEngineAlert(a Alert, groupKey string) EngineAlert {
	alertName := a.Labels["alertname"]
	return EngineAlert{
		AlertName:   alertName,
		Labels:      a.Labels,
		Annotations: a.Annotations,
		StartsAt:    a.StartsAt,
		Fingerprint: a.Fingerprint,
		GroupKey:    groupKey,
		Status:      a.Status,
	}
}

// ComputeFingerprint follows the precedence from agent/service.py's
// _fingerprint_for: alert.fingerprint, else a non-degenerate group key,
// else the composed alertname:namespace:pod:container string with empty
// segments preserved.
func ComputeFingerprint(a EngineAlert) string {
	if a.Fingerprint != "" {
		return a.Fingerprint
	}
	if a.GroupKey != "" && !isDegenerateGroupKey(a.GroupKey) {
		return a.GroupKey
	}
	return fmt.Sprintf("%s:%s:%s:%s", a.AlertName, a.Label("namespace"), a.Label("pod"), a.Label("container"))
}

func isDegenerateGroupKey(gk string) bool {
	return gk == "{}/{}" || gk == "{}"
}

// IncidentStatus is the lifecycle state of a persisted Incident.
type IncidentStatus string

const (
	IncidentOpen       IncidentStatus = "open"
	IncidentResolved   IncidentStatus = "resolved"
	IncidentSuppressed IncidentStatus = "suppressed"
)

// Incident is the persisted row keyed by fingerprint (unique) with a
// separate generated id — deliberately not collapsing id and fingerprint
// into a single column.
type Incident struct {
	ID          string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Fingerprint string
	AlertName   string
	Namespace   string
	Pod         string
	Severity    string
	RunbookID   RunbookID
	Status      IncidentStatus
	AgentMode   Mode
	Summary     string
}

// EventType enumerates the append-only incident_events kinds.
type EventType string

const (
	EventWebhookReceived EventType = "webhook_received"
	EventSuppressed      EventType = "suppressed"
	EventFinal           EventType = "final"
	EventAnalysis        EventType = "analysis"
)

// IncidentEvent is one row of the append-only log. Events for a given
// incident are totally ordered by (ts, id) and never mutated.
type IncidentEvent struct {
	ID         string
	IncidentID string
	TS         time.Time
	EventType  EventType
	Payload    json.RawMessage
}

// GateExpr is a parsed <alias>.<field> reference into tool_results.
type GateExpr struct {
	Alias string
	Field string
}

// ParseGateExpr parses "alias.field" at runbook-load time so gate
// evaluation at workflow time is a pure map lookup instead of a re-parse
// on every step.
func ParseGateExpr(expr string) (GateExpr, error) {
	parts := strings.SplitN(expr, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return GateExpr{}, fmt.Errorf("invalid gate expression %q: want <alias>.<field>", expr)
	}
	return GateExpr{Alias: parts[0], Field: parts[1]}, nil
}

func (g GateExpr) String() string {
	return g.Alias + "." + g.Field
}

// Step is one entry in a Runbook's workflow.
type Step struct {
	ActionID string
	When     *GateExpr
	WhenAll  []GateExpr
}

// Runbook is the in-memory, load-once, read-only-thereafter document the
// Runbook Loader parses.
type Runbook struct {
	ID          RunbookID
	AlertName   string
	Title       string
	Description string
	Workflow    []Step
	Metadata    map[string]any
}

// RunbookTable is the loaded, read-only-after-startup set of runbooks
// indexed by id.
type RunbookTable map[RunbookID]*Runbook

// FallbackImage reads the runbook's fallback_image metadata field, used by
// fix_imagepullbackoff.
func (r *Runbook) FallbackImage() string {
	if r == nil || r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata["fallback_image"].(string); ok {
		return v
	}
	return ""
}

// ResultRecord is what every tool returns. Invariant: tools never throw
// outward; failures are captured here with OK=false.
type ResultRecord struct {
	OK     bool
	Fields map[string]any
	Error  string
}

// Field looks up a field by name, returning nil if absent.
func (r ResultRecord) Field(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}

// StepTrace records what happened for one workflow step, gated out or not.
type StepTrace struct {
	ActionID string
	ToolName string
	Inputs   map[string]any
	Result   ResultRecord
	GatedOut bool
	Reason   string
}

// LLMCall is one entry in the adjudicator's trace.
type LLMCall struct {
	ID           string
	ActionID     string
	ExpectedTool string
	ReturnedTool string
	Override     bool
	Shortcut     bool
	Error        string
}

// ExecutionState is the per-incident, ephemeral state the Workflow Engine
// mutates while driving a runbook.
type ExecutionState struct {
	Alert              EngineAlert
	Mode               Mode
	ToolResults        map[string]ResultRecord
	RBSteps            []StepTrace
	LLMTrace           []LLMCall
	ActionTaken        string
	ActionRecommended  string
	ActionError        string
}

func NewExecutionState(alert EngineAlert, mode Mode) *ExecutionState {
	return &ExecutionState{
		Alert:       alert,
		Mode:        mode,
		ToolResults: make(map[string]ResultRecord),
	}
}

// Lookup resolves a dotted "<alias>.<field>" path against ToolResults.
// A missing alias resolves to (nil, false), which Truthy treats as false,
// so a gated step never runs ahead of the tool it depends on.
func (s *ExecutionState) Lookup(path string) (any, bool) {
	g, err := ParseGateExpr(path)
	if err != nil {
		return nil, false
	}
	record, ok := s.ToolResults[g.Alias]
	if !ok {
		return nil, false
	}
	v := record.Field(g.Field)
	return v, v != nil
}

// Truthy interprets a tool_results field value as a gate boolean.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
