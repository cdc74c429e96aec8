package admin

import (
	"net/http"
	"time"

	"github.com/tabsync/tabsync/internal/infrastructure/jobs"
	"github.com/tabsync/tabsync/internal/infrastructure/json"
	"github.com/tabsync/tabsync/internal/infrastructure/logging"
	"github.com/tabsync/tabsync/internal/infrastructure/ws"
)

type Handler struct {
	hub       *ws.Hub
	reconcile *jobs.ReconcileJob
	logger    logging.Logger
}

func NewHandler(hub *ws.Hub, reconcile *jobs.ReconcileJob, logger logging.Logger) *Handler {
	return &Handler{
		hub:       hub,
		reconcile: reconcile,
		logger:    logger,
	}
}

// GetStats reports live connection counts grouped by tenant and role.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, h.hub.Stats())
}

// TriggerReconcile runs one reconciliation sweep of the active-order
// cache outside the regular schedule.
func (h *Handler) TriggerReconcile(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if err := h.reconcile.RunOnce(r.Context()); err != nil {
		h.logger.Error(logging.Internal, logging.Reconciliation, "manual reconcile failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
		return
	}

	json.Write(w, http.StatusOK, map[string]string{
		"status":   "completed",
		"duration": time.Since(started).Round(time.Millisecond).String(),
	})
}
