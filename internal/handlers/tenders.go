package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"tendertrack/db"
	"tendertrack/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 20 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

func parseTenderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tenderId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetTendersHandler возвращает список тендеров, опционально по статусу
func (h *Handler) GetTendersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	status := models.TenderStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !models.IsValidStatus(status) {
		http.Error(w, "Invalid status", http.StatusBadRequest)
		return
	}

	tenders, err := h.Store.ListTenders(r.Context(), status, params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get tenders")
		return
	}
	writeJSON(w, http.StatusOK, tenders)
}

// GetTenderHandler возвращает тендер по id
func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := parseTenderID(r)
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.storageError(w, err, "Failed to get tender")
		return
	}
	writeJSON(w, http.StatusOK, tender)
}

type statusChangeRequest struct {
	Status     models.TenderStatus `json:"status"`
	Actor      string              `json:"actor"`
	AssignedTo string              `json:"assignedTo"`
	Reason     string              `json:"reason"`
}

// ChangeTenderStatusHandler обрабатывает PUT /api/tenders/{tenderId}/status.
// Переход проверяется по машине состояний и пишется в журнал действий.
func (h *Handler) ChangeTenderStatusHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := parseTenderID(r)
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	defer r.Body.Close()

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	req.Actor = strings.TrimSpace(req.Actor)
	req.AssignedTo = strings.TrimSpace(req.AssignedTo)
	if req.Actor == "" {
		http.Error(w, "actor is required", http.StatusBadRequest)
		return
	}
	if req.Status == models.StatusAssigned && req.AssignedTo == "" {
		http.Error(w, "assignedTo is required for assigned status", http.StatusBadRequest)
		return
	}

	tender, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.storageError(w, err, "Failed to get tender")
		return
	}
	if err := models.ValidateTransition(tender.Status, req.Status); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	action := models.ActionStatusChange
	details := models.Payload{}
	ch := db.StatusChange{TenderID: tender.ID, From: tender.Status, To: req.Status}
	if req.AssignedTo != "" {
		ch.AssignedTo = &req.AssignedTo
		details["assignedTo"] = req.AssignedTo
		if req.Status == models.StatusAssigned {
			action = models.ActionAssignment
		}
	}
	ch.Log = &models.ActivityLog{
		Action:     action,
		FromStatus: tender.Status,
		ToStatus:   req.Status,
		Actor:      req.Actor,
		Reason:     req.Reason,
		Details:    details,
	}

	if err := h.Store.UpdateTenderStatus(r.Context(), ch); err != nil {
		h.storageError(w, err, "Failed to update tender status")
		return
	}
	h.Log.Info("tender status changed",
		zap.Int64("tender_id", tender.ID),
		zap.String("from", string(tender.Status)),
		zap.String("to", string(req.Status)),
		zap.String("actor", req.Actor))

	updated, err := h.Store.GetTender(r.Context(), tenderID)
	if err != nil {
		h.storageError(w, err, "Failed to get tender")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// GetTenderActivityHandler возвращает журнал действий тендера
func (h *Handler) GetTenderActivityHandler(w http.ResponseWriter, r *http.Request) {
	tenderID, ok := parseTenderID(r)
	if !ok {
		http.Error(w, "Invalid tenderId", http.StatusBadRequest)
		return
	}
	logs, err := h.Store.ListActivityLogs(r.Context(), tenderID)
	if err != nil {
		h.storageError(w, err, "Failed to get tender activity")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
