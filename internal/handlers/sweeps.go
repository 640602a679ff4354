package handlers

import (
	"errors"
	"net/http"

	"tendertrack/db"

	"go.uber.org/zap"
)

// SweepHandler обрабатывает POST /api/sweeps: внеплановый проход sweeper
func (h *Handler) SweepHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Sweeper.Sweep(r.Context())
	if err != nil {
		h.Log.Error("sweep failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, db.ErrUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "Sweep failed", status)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
