package model

import "testing"

func TestComputeFingerprintPrefersAlertFingerprint(t *testing.T) {
	a := EngineAlert{Fingerprint: "abc123", GroupKey: "{namespace=\"x\"}"}
	if got := ComputeFingerprint(a); got != "abc123" {
		t.Fatalf("got %q, want abc123", got)
	}
}

func TestComputeFingerprintFallsBackToGroupKey(t *testing.T) {
	a := EngineAlert{GroupKey: "{namespace=\"x\"}"}
	if got := ComputeFingerprint(a); got != "{namespace=\"x\"}" {
		t.Fatalf("got %q", got)
	}
}

func TestComputeFingerprintSkipsDegenerateGroupKey(t *testing.T) {
	a := EngineAlert{
		AlertName: "KubePodOOMKilled",
		GroupKey:  "{}/{}",
		Labels:    map[string]string{"namespace": "ns", "pod": "p", "container": "c"},
	}
	got := ComputeFingerprint(a)
	want := "KubePodOOMKilled:ns:p:c"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestComputeFingerprintComposedPreservesEmptySegments(t *testing.T) {
	a := EngineAlert{AlertName: "KubeNodeNotReady", Labels: map[string]string{"node": "n1"}}
	got := ComputeFingerprint(a)
	want := "KubeNodeNotReady:::"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParseGateExpr(t *testing.T) {
	g, err := ParseGateExpr("runbook.ready")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Alias != "runbook" || g.Field != "ready" {
		t.Fatalf("got %+v", g)
	}
	if g.String() != "runbook.ready" {
		t.Fatalf("String() = %q", g.String())
	}
}

func TestParseGateExprRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "noDot", ".field", "alias.", "alias"} {
		if _, err := ParseGateExpr(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLookupMissingAliasIsFalse(t *testing.T) {
	state := NewExecutionState(EngineAlert{}, ModeAuto)
	v, ok := state.Lookup("missing.field")
	if ok || v != nil {
		t.Fatalf("expected (nil, false), got (%v, %v)", v, ok)
	}
}

func TestLookupResolvesKnownAlias(t *testing.T) {
	state := NewExecutionState(EngineAlert{}, ModeAuto)
	state.ToolResults["runbook"] = ResultRecord{OK: true, Fields: map[string]any{"ready": true}}
	v, ok := state.Lookup("runbook.ready")
	if !ok || v != true {
		t.Fatalf("got (%v, %v)", v, ok)
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{"", false},
		{"x", true},
		{0, false},
		{1, true},
		{0.0, false},
		{[]any{}, false},
		{[]any{1}, true},
		{map[string]any{}, true},
	}
	for _, c := range cases {
		if got := Truthy(c.v); got != c.want {
			t.Fatalf("Truthy(%#v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestFallbackImage(t *testing.T) {
	var nilRB *Runbook
	if got := nilRB.FallbackImage(); got != "" {
		t.Fatalf("nil runbook should return empty, got %q", got)
	}

	rb := &Runbook{Metadata: map[string]any{"fallback_image": "nginx:stable"}}
	if got := rb.FallbackImage(); got != "nginx:stable" {
		t.Fatalf("got %q", got)
	}

	rb2 := &Runbook{}
	if got := rb2.FallbackImage(); got != "" {
		t.Fatalf("missing metadata should return empty, got %q", got)
	}
}
