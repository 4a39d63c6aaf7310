// Package runbook parses the declarative runbook documents this agent
// executes: a YAML front-matter block delimited by "---" lines, followed by
// free-form markdown the engine ignores.
package runbook

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kube-rca/backend/internal/model"
)

// frontMatterPattern splits a runbook document into its YAML metadata
// block and markdown body. No library in the example pack splits Markdown
// front matter specifically, so a direct regex mirrors the original
// Python's own approach.
var frontMatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n(.*)$`)

// Validator is satisfied by the Tool Registry: it lets the loader fail
// fast on a workflow step referencing an unknown action_id, without this
// package importing the tools package.
type Validator interface {
	ExpectedTool(actionID string) (string, bool)
}

type stepYAML struct {
	ActionID string   `yaml:"action_id"`
	When     string   `yaml:"when,omitempty"`
	WhenAll  []string `yaml:"when_all,omitempty"`
}

type frontMatter struct {
	RunbookID     string         `yaml:"runbook_id"`
	AlertName     string         `yaml:"alertname"`
	Title         string         `yaml:"title"`
	Description   string         `yaml:"description"`
	Workflow      []stepYAML     `yaml:"workflow"`
	FallbackImage string         `yaml:"fallback_image"`
	Metadata      map[string]any `yaml:",inline"`
}

// Load parses every *.md file under dir into the runbook table, validating
// each workflow step's action_id against validator. Fails fast: a missing
// runbook_id, an unknown action_id, or an unparsable gate expression
// aborts the whole load.
func Load(dir string, validator Validator) (model.RunbookTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read runbook dir %s: %w", dir, err)
	}

	table := make(model.RunbookTable)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rb, err := loadOne(path, validator)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		table[rb.ID] = rb
	}
	return table, nil
}

func loadOne(path string, validator Validator) (*model.Runbook, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	matches := frontMatterPattern.FindStringSubmatch(string(content))
	if matches == nil {
		return nil, fmt.Errorf("missing --- front matter block")
	}

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(matches[1]), &fm); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}

	if fm.RunbookID == "" {
		return nil, fmt.Errorf("runbook_id is required")
	}

	steps := make([]model.Step, 0, len(fm.Workflow))
	for _, sy := range fm.Workflow {
		if sy.ActionID == "" {
			return nil, fmt.Errorf("workflow step missing action_id")
		}
		if _, ok := validator.ExpectedTool(sy.ActionID); !ok {
			return nil, fmt.Errorf("workflow step references unknown action_id %q", sy.ActionID)
		}

		step := model.Step{ActionID: sy.ActionID}
		if sy.When != "" {
			gate, err := model.ParseGateExpr(sy.When)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", sy.ActionID, err)
			}
			step.When = &gate
		}
		for _, expr := range sy.WhenAll {
			gate, err := model.ParseGateExpr(expr)
			if err != nil {
				return nil, fmt.Errorf("step %s: %w", sy.ActionID, err)
			}
			step.WhenAll = append(step.WhenAll, gate)
		}
		steps = append(steps, step)
	}

	if fm.Metadata == nil {
		fm.Metadata = map[string]any{}
	}
	if fm.FallbackImage != "" {
		fm.Metadata["fallback_image"] = fm.FallbackImage
	}

	return &model.Runbook{
		ID:          model.RunbookID(fm.RunbookID),
		AlertName:   fm.AlertName,
		Title:       fm.Title,
		Description: fm.Description,
		Workflow:    steps,
		Metadata:    fm.Metadata,
	}, nil
}
