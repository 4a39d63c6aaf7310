package model

import (
	"encoding/json"
	"time"
)

// ============================================================================
// Incident API request/response shapes
// ============================================================================

// IncidentListResponse - Incident 목록 조회용 구조체
type IncidentListResponse struct {
	IncidentID string     `json:"incident_id"`
	AlarmTitle string     `json:"alarm_title"`
	Severity   string     `json:"severity"`
	Status     string     `json:"status"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// IncidentDetailResponse - Incident 상세 조회용 구조체
type IncidentDetailResponse struct {
	IncidentID      string     `json:"incident_id"`
	AlarmTitle      string     `json:"alarm_title"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	FiredAt         time.Time  `json:"fired_at"`
	ResolvedAt      *time.Time `json:"resolved_at"`
	AnalysisSummary *string    `json:"analysis_summary"`
	AnalysisDetail  *string    `json:"analysis_detail"`

	// JSONB 컬럼을 그대로 바이트로 전달
	SimilarIncidents json.RawMessage `json:"similar_incidents" swaggertype:"object"`

	Events []IncidentEventResponse `json:"events,omitempty"`
}

// IncidentEventResponse projects an append-only event row for the API.
type IncidentEventResponse struct {
	ID        string          `json:"id"`
	TS        time.Time       `json:"ts"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload" swaggertype:"object"`
}

// UpdateIncidentRequest - Incident 수정 요청 구조체
type UpdateIncidentRequest struct {
	AlarmTitle      string `json:"alarm_title"`
	Severity        string `json:"severity"`
	AnalysisSummary string `json:"analysis_summary"`
	AnalysisDetail  string `json:"analysis_detail"`
}

// ResolveIncidentRequest - Incident 종료 요청 구조체
type ResolveIncidentRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// SimilarIncident is one row of the Analysis Composer's past-incident query.
type SimilarIncident struct {
	ID                string    `json:"id"`
	AlertName         string    `json:"alertname"`
	Namespace         string    `json:"namespace"`
	Pod               string    `json:"pod"`
	RunbookID         RunbookID `json:"runbook_id"`
	ActionTaken       string    `json:"action_taken,omitempty"`
	ActionRecommended string    `json:"action_recommended,omitempty"`
	ActionError       string    `json:"action_error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
