package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kube-rca/backend/internal/client"
	"github.com/kube-rca/backend/internal/model"
)

// Composer builds the human-readable markdown analysis that is appended as
// an incident's analysis event, grounded on generate_incident_analysis: a
// fixed-section system prompt plus a JSON user payload, with an extra
// history-aware section swapped in when past incidents are available.
type Composer struct {
	genai *client.GenAIClient
}

func NewComposer(genaiClient *client.GenAIClient) *Composer {
	return &Composer{genai: genaiClient}
}

const analysisSectionsHeader = "You are an SRE incident analyst.\n" +
	"Write a clear, factual incident analysis based ONLY on the provided data.\n" +
	"Do not invent logs or metrics.\n" +
	"Output Markdown with exactly these sections, in this order:\n" +
	"## Summary\n" +
	"## What happened (evidence)\n" +
	"## Root cause hypothesis\n" +
	"## Action taken / recommended\n" +
	"## Why that action\n"

const historySection = "## Historical pattern & SRE recommendation\n" +
	"  - Based on past_incidents, identify if this is a repeat occurrence.\n" +
	"  - If the same action was taken before and the alert recurred, flag it as a short-term fix.\n" +
	"  - Recommend a more permanent resolution for the SRE team (root cause investigation, " +
	"resource right-sizing, image pipeline fix, node replacement).\n"

const noHistorySection = "## Historical pattern & SRE recommendation\n" +
	"  - No prior history was available for this alert.\n"

const followupsSection = "## Follow-ups\n"

// Compose generates the analysis markdown for a finished runbook run. It
// returns an error when generation fails (including when no GenAI client is
// configured); the Dedup Controller then records the analysis event with
// empty markdown and carries on, since the remediation already completed.
func (c *Composer) Compose(ctx context.Context, runbookID model.RunbookID, cluster string, alert model.EngineAlert, state *model.ExecutionState, pastIncidents []model.SimilarIncident) (string, error) {
	if c.genai == nil {
		return "", fmt.Errorf("llm_not_configured")
	}

	hasHistory := len(pastIncidents) > 0
	system := analysisSectionsHeader
	if hasHistory {
		system += historySection
	} else {
		system += noHistorySection
	}
	system += followupsSection

	userPayload := map[string]any{
		"cluster":           cluster,
		"runbook_id":        runbookID,
		"alert_labels":      alert.Labels,
		"alert_annotations": alert.Annotations,
		"agent_state":       finalStateView(state),
	}
	if hasHistory {
		userPayload["past_incidents"] = pastIncidents
	}

	userJSON, err := json.Marshal(userPayload)
	if err != nil {
		return "", fmt.Errorf("marshal analysis payload: %w", err)
	}

	return c.genai.GenerateText(ctx, system, string(userJSON))
}

func finalStateView(state *model.ExecutionState) map[string]any {
	steps := make([]map[string]any, 0, len(state.RBSteps))
	for _, st := range state.RBSteps {
		steps = append(steps, map[string]any{
			"action_id": st.ActionID,
			"tool":      st.ToolName,
			"ok":        st.Result.OK,
			"gated_out": st.GatedOut,
			"error":     st.Result.Error,
		})
	}
	return map[string]any{
		"action_taken":       state.ActionTaken,
		"action_recommended": state.ActionRecommended,
		"action_error":       state.ActionError,
		"mode":               state.Mode,
		"steps":              steps,
	}
}
