package runbook

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeValidator struct {
	known map[string]string
}

func (f fakeValidator) ExpectedTool(actionID string) (string, bool) {
	tool, ok := f.known[actionID]
	return tool, ok
}

func writeRunbook(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestLoadParsesFrontMatterAndWorkflow(t *testing.T) {
	dir := t.TempDir()
	writeRunbook(t, dir, "RB_IMAGEPULL.md", `---
runbook_id: RB_IMAGEPULL
alertname: KubePodImagePullBackOff
title: Fix image pull failures
fallback_image: nginx:stable
workflow:
  - action_id: get_runbook
  - action_id: patch_image
    when: runbook.fallback_image
---

# Fix ImagePullBackOff
`)

	validator := fakeValidator{known: map[string]string{
		"get_runbook": "get_runbook",
		"patch_image": "fix_imagepullbackoff",
	}}

	table, err := Load(dir, validator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rb, ok := table["RB_IMAGEPULL"]
	if !ok {
		t.Fatalf("expected RB_IMAGEPULL to be loaded, got %v", table)
	}
	if rb.AlertName != "KubePodImagePullBackOff" {
		t.Fatalf("got alertname %q", rb.AlertName)
	}
	if rb.FallbackImage() != "nginx:stable" {
		t.Fatalf("got fallback_image %q", rb.FallbackImage())
	}
	if len(rb.Workflow) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(rb.Workflow))
	}
	if rb.Workflow[1].When == nil || rb.Workflow[1].When.String() != "runbook.fallback_image" {
		t.Fatalf("expected parsed gate on second step, got %+v", rb.Workflow[1].When)
	}
}

func TestLoadRejectsMissingRunbookID(t *testing.T) {
	dir := t.TempDir()
	writeRunbook(t, dir, "bad.md", "---\ntitle: no id\n---\nbody\n")

	if _, err := Load(dir, fakeValidator{known: map[string]string{}}); err == nil {
		t.Fatalf("expected error for missing runbook_id")
	}
}

func TestLoadRejectsUnknownActionID(t *testing.T) {
	dir := t.TempDir()
	writeRunbook(t, dir, "bad.md", `---
runbook_id: RB_OOM
workflow:
  - action_id: not_a_real_action
---
body
`)

	if _, err := Load(dir, fakeValidator{known: map[string]string{}}); err == nil {
		t.Fatalf("expected error for unknown action_id")
	}
}

func TestLoadRejectsMissingFrontMatter(t *testing.T) {
	dir := t.TempDir()
	writeRunbook(t, dir, "bad.md", "just a markdown file with no front matter\n")

	if _, err := Load(dir, fakeValidator{known: map[string]string{}}); err == nil {
		t.Fatalf("expected error for missing front matter")
	}
}

func TestLoadIgnoresNonMarkdownFiles(t *testing.T) {
	dir := t.TempDir()
	writeRunbook(t, dir, "RB_OOM.md", `---
runbook_id: RB_OOM
workflow:
  - action_id: increase_resources
---
body
`)
	writeRunbook(t, dir, "README.txt", "not a runbook")

	validator := fakeValidator{known: map[string]string{"increase_resources": "increase_memory_limit"}}
	table, err := Load(dir, validator)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("expected exactly 1 loaded runbook, got %d", len(table))
	}
}
