package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Routes регистрирует маршруты API
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ping", h.PingHandler)
	// загрузки
	r.Post("/uploads", h.UploadHandler)
	r.Post("/uploads/stream", h.UploadStreamHandler)
	r.Get("/uploads", h.GetUploadsHandler)
	r.Post("/sweeps", h.SweepHandler)
	// тендеры
	r.Get("/tenders", h.GetTendersHandler)
	r.Get("/tenders/{tenderId}", h.GetTenderHandler)
	r.Put("/tenders/{tenderId}/status", h.ChangeTenderStatusHandler)
	r.Get("/tenders/{tenderId}/activity", h.GetTenderActivityHandler)
}
