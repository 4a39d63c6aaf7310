package engine

import (
	"testing"

	"github.com/kube-rca/backend/internal/model"
)

func tableWith(ids ...model.RunbookID) model.RunbookTable {
	t := make(model.RunbookTable)
	for _, id := range ids {
		t[id] = &model.Runbook{ID: id}
	}
	return t
}

func TestRoutePrefersLabelOverAlertName(t *testing.T) {
	r := NewRouter(tableWith(model.RBOOM, model.RBImagePull))
	alert := model.EngineAlert{
		AlertName: "KubePodImagePullBackOff",
		Labels:    map[string]string{"runbook_id": "RB_OOM"},
	}
	if got := r.Route(alert); got != model.RBOOM {
		t.Fatalf("got %v, want RB_OOM", got)
	}
}

func TestRouteFallsBackToAlertNameWhenLabelUnrecognized(t *testing.T) {
	r := NewRouter(tableWith(model.RBImagePull))
	alert := model.EngineAlert{
		AlertName: "KubePodImagePullBackOff",
		Labels:    map[string]string{"runbook_id": "RB_NOT_LOADED"},
	}
	if got := r.Route(alert); got != model.RBImagePull {
		t.Fatalf("got %v, want RB_IMAGEPULL", got)
	}
}

func TestRouteUnknownWhenNothingMatches(t *testing.T) {
	r := NewRouter(tableWith(model.RBImagePull))
	alert := model.EngineAlert{AlertName: "SomeOtherAlert"}
	if got := r.Route(alert); got != model.RBUnknown {
		t.Fatalf("got %v, want RB_UNKNOWN", got)
	}
}

func TestRouteUnknownWhenRunbookNotLoaded(t *testing.T) {
	r := NewRouter(tableWith())
	alert := model.EngineAlert{AlertName: "KubePodOOMKilled"}
	if got := r.Route(alert); got != model.RBUnknown {
		t.Fatalf("got %v, want RB_UNKNOWN since RB_OOM never loaded", got)
	}
}

func TestRouteMemoryNearLimitMapsToOOM(t *testing.T) {
	r := NewRouter(tableWith(model.RBOOM))
	alert := model.EngineAlert{AlertName: "KubePodMemoryNearLimit"}
	if got := r.Route(alert); got != model.RBOOM {
		t.Fatalf("got %v, want RB_OOM", got)
	}
}
