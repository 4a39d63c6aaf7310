package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/kube-rca/backend/internal/config"
	"github.com/kube-rca/backend/internal/engine"
	"github.com/kube-rca/backend/internal/model"
)

// AlertmanagerHandler is the Ingress Adapter: thin translation from the
// alert-router webhook payload into normalized alerts fanned out to the
// dedup controller.
type AlertmanagerHandler struct {
	dedup *engine.Dedup
}

func NewAlertmanagerHandler(dedup *engine.Dedup) *AlertmanagerHandler {
	return &AlertmanagerHandler{dedup: dedup}
}

// Webhook parses the batch, fans each alert out into its own goroutine
// (execution within a single alert stays sequential; across alerts it may
// run in parallel), and responds once every alert's Dedup.Handle call has
// returned. A DBError from any alert fails the whole batch with 5xx so the
// alert router retries it — Handle never returns an error for
// LockBusy/InvalidAlert/UnknownRunbook, only for genuine store failures.
// A pool-acquire timeout (the store saturated under load) reports 503
// instead of 500, so the router's retry backs off rather than hammering.
func (h *AlertmanagerHandler) Webhook(c *gin.Context) {
	var webhook model.AlertmanagerWebhook
	if err := c.ShouldBindJSON(&webhook); err != nil {
		config.Warnf("alertmanager webhook parse error: %v", err)
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid payload"})
		return
	}

	errs := make([]error, len(webhook.Alerts))
	var wg sync.WaitGroup
	for i, alert := range webhook.Alerts {
		engineAlert := model.NewEngineAlert(alert, webhook.GroupKey)
		wg.Add(1)
		go func(i int, a model.EngineAlert) {
			defer wg.Done()
			if err := h.dedup.Handle(c.Request.Context(), a); err != nil {
				config.Warnf("alert fingerprint=%s dedup error: %v", model.ComputeFingerprint(a), err)
				errs[i] = err
			}
		}(i, engineAlert)
	}
	wg.Wait()

	saturated, failed := false, false
	for _, err := range errs {
		if err == nil {
			continue
		}
		failed = true
		if errors.Is(err, context.DeadlineExceeded) {
			saturated = true
		}
	}

	switch {
	case saturated:
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "store temporarily unavailable"})
	case failed:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "failed to process one or more alerts"})
	default:
		c.JSON(http.StatusOK, model.AlertWebhookResponse{Processed: len(webhook.Alerts)})
	}
}
