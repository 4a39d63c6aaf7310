package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kube-rca/backend/internal/model"
	"github.com/kube-rca/backend/internal/service"
)

type RcaHandler struct {
	svc *service.RcaService
}

func NewRcaHandler(svc *service.RcaService) *RcaHandler {
	return &RcaHandler{svc: svc}
}

// GetIncidents godoc
// @Summary List incidents
// @Tags incidents
// @Produce json
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} model.IncidentListEnvelope
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents [get]
func (h *RcaHandler) GetIncidents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	incidents, total, err := h.svc.ListIncidents(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.IncidentListEnvelope{Incidents: incidents, Total: total})
}

// GetIncidentDetail godoc
// @Summary Get incident detail
// @Tags incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentDetailEnvelope
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents/{id} [get]
func (h *RcaHandler) GetIncidentDetail(c *gin.Context) {
	id := c.Param("id")

	res, err := h.svc.GetIncidentDetail(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentDetailEnvelope{
		Status: "success",
		Data:   res,
	})
}

// UpdateIncident godoc
// @Summary Update incident detail
// @Tags incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param request body model.UpdateIncidentRequest true "Incident update payload"
// @Success 200 {object} model.IncidentUpdateResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents/{id} [put]
func (h *RcaHandler) UpdateIncident(c *gin.Context) {
	id := c.Param("id")

	var req model.UpdateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.svc.UpdateIncident(c.Request.Context(), id, req); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentUpdateResponse{
		Status:     "success",
		Message:    "incident updated",
		IncidentID: id,
	})
}

// ResolveIncident godoc
// @Summary Resolve incident
// @Tags incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentUpdateResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents/{id}/resolve [post]
func (h *RcaHandler) ResolveIncident(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.ResolveIncident(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentUpdateResponse{
		Status:     "success",
		Message:    "incident resolved",
		IncidentID: id,
	})
}

// HideIncident godoc
// @Summary Hide incident
// @Tags incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} model.IncidentUpdateResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents/{id} [patch]
func (h *RcaHandler) HideIncident(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.HideIncident(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.IncidentUpdateResponse{
		Status:     "success",
		Message:    "incident hidden",
		IncidentID: id,
	})
}

// RegenerateAnalysis godoc
// @Summary Regenerate incident analysis
// @Tags incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} model.RegenerateAnalysisResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents/{id}/regenerate-analysis [post]
func (h *RcaHandler) RegenerateAnalysis(c *gin.Context) {
	id := c.Param("id")

	eventID, err := h.svc.RegenerateAnalysis(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.RegenerateAnalysisResponse{
		Status:      "success",
		EventID:     eventID,
		Regenerated: true,
	})
}

// CreateMockIncident godoc
// @Summary Create mock incident
// @Tags incidents
// @Produce json
// @Success 200 {object} model.MockIncidentResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/incidents/mock [post]
func (h *RcaHandler) CreateMockIncident(c *gin.Context) {
	newID, err := h.svc.CreateMockIncident(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.MockIncidentResponse{
		Status:     "success",
		Message:    "mock incident created",
		IncidentID: newID,
	})
}

// Healthz godoc
// @Summary Health check
// @Tags ops
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /healthz [get]
func (h *RcaHandler) Healthz(c *gin.Context) {
	if !h.svc.Healthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}
