package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"tendertrack/db"
	"tendertrack/internal/logger"

	"go.uber.org/zap"
)

const defaultMaxUploadBytes = 32 << 20

// Handler связывает HTTP с хранилищем, движком загрузки и sweeper
type Handler struct {
	Store          StorageInterface
	Ingester       Ingester
	Sweeper        Sweeper
	Log            *zap.Logger
	MaxUploadBytes int64
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, ingester Ingester, sw Sweeper, log *zap.Logger, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		Store:          store,
		Ingester:       ingester,
		Sweeper:        sw,
		Log:            logger.OrNop(log),
		MaxUploadBytes: maxUploadBytes,
	}
}

// PingHandler отвечает "ok", если база доступна
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Log.Warn("ping failed", zap.Error(err))
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// storageError переводит ошибку хранилища в HTTP-ответ.
func (h *Handler) storageError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, db.ErrStaleStatus):
		http.Error(w, "Tender status changed, reload and retry", http.StatusConflict)
	case errors.Is(err, db.ErrUnavailable):
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		h.Log.Error(msg, zap.Error(err))
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
