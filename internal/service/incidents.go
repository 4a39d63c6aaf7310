package service

import (
	"context"

	"github.com/kube-rca/backend/internal/db"
	"github.com/kube-rca/backend/internal/engine"
	"github.com/kube-rca/backend/internal/model"
)

// RcaService is the Incident API's read/write surface over the Store,
// plus the on-demand analysis regeneration path that goes through the
// Dedup Controller rather than the Store directly.
type RcaService struct {
	repo  *db.Postgres
	dedup *engine.Dedup
}

func NewRcaService(repo *db.Postgres, dedup *engine.Dedup) *RcaService {
	return &RcaService{repo: repo, dedup: dedup}
}

func (s *RcaService) ListIncidents(ctx context.Context, limit, offset int) ([]model.IncidentListResponse, int, error) {
	return s.repo.ListIncidents(ctx, limit, offset)
}

func (s *RcaService) GetIncidentDetail(ctx context.Context, id string) (*model.IncidentDetailResponse, error) {
	return s.repo.GetIncidentDetail(ctx, id)
}

func (s *RcaService) UpdateIncident(ctx context.Context, id string, req model.UpdateIncidentRequest) error {
	return s.repo.UpdateIncident(ctx, id, req)
}

func (s *RcaService) ResolveIncident(ctx context.Context, id string) error {
	return s.repo.ResolveIncident(ctx, id)
}

func (s *RcaService) HideIncident(ctx context.Context, id string) error {
	return s.repo.HideIncident(ctx, id)
}

// RegenerateAnalysis re-runs the analysis composer for an incident on
// demand, without re-executing its workflow.
func (s *RcaService) RegenerateAnalysis(ctx context.Context, id string) (string, error) {
	return s.dedup.RegenerateAnalysis(ctx, id)
}

// CreateMockIncident seeds a synthetic incident for exercising the
// Incident API without a live cluster or alert router.
func (s *RcaService) CreateMockIncident(ctx context.Context) (string, error) {
	return s.repo.CreateMockIncident(ctx)
}

// Healthy reports whether the Store is reachable, for GET /healthz.
func (s *RcaService) Healthy(ctx context.Context) bool {
	return s.repo.Pool.Ping(ctx) == nil
}
