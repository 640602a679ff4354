package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"tendertrack/internal/ingest"
	"tendertrack/models"

	"go.uber.org/zap"
)

const progressBuffer = 64

// readUpload разбирает multipart-форму: file, kind, uploadedBy.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (ingest.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		return ingest.Upload{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingest.Upload{}, errors.New("file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("failed to read file: %w", err)
	}

	kind := models.UploadKind(strings.TrimSpace(r.FormValue("kind")))
	switch kind {
	case "", models.KindAuto, models.KindTenders, models.KindResults:
	default:
		return ingest.Upload{}, fmt.Errorf("invalid kind %q", kind)
	}

	uploadedBy := strings.TrimSpace(r.FormValue("uploadedBy"))
	if uploadedBy == "" {
		uploadedBy = strings.TrimSpace(r.Header.Get("X-User-ID"))
	}

	return ingest.Upload{
		Data:       data,
		FileName:   header.Filename,
		FilePath:   "upload://" + header.Filename,
		UploadedBy: uploadedBy,
		Kind:       kind,
	}, nil
}

// ingestStatus выбирает HTTP-код по ошибке загрузки.
func ingestStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ingest.ErrEmptyFile), errors.Is(err, ingest.ErrInvalidWorkbook):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ingest.ErrCancelled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// UploadHandler обрабатывает POST /api/uploads и возвращает итог загрузки.
// Итог возвращается и при ошибке, с соответствующим кодом.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sum, err := h.Ingester.Ingest(r.Context(), up)
	if err != nil {
		h.Log.Warn("upload failed", zap.String("file", up.FileName), zap.Error(err))
	}
	writeJSON(w, ingestStatus(err), sum)
}

// UploadStreamHandler обрабатывает POST /api/uploads/stream: прогресс
// отдается как server-sent events, последним событием идет итог.
func (h *Handler) UploadStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	up, err := h.readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			h.Log.Error("marshal sse event", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	reporter := ingest.NewChannelReporter(progressBuffer)
	up.Progress = reporter

	type outcome struct {
		sum ingest.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := h.Ingester.Ingest(r.Context(), up)
		done <- outcome{sum, err}
	}()

	for {
		select {
		case u := <-reporter.C:
			send("progress", u)
		case res := <-done:
			// догоняем обновления, отправленные до завершения
		drain:
			for {
				select {
				case u := <-reporter.C:
					send("progress", u)
				default:
					break drain
				}
			}
			if res.err != nil {
				h.Log.Warn("streamed upload failed", zap.String("file", up.FileName), zap.Error(res.err))
			}
			send("summary", res.sum)
			return
		}
	}
}

// GetUploadsHandler возвращает журнал загрузок, новые первыми
func (h *Handler) GetUploadsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	audits, err := h.Store.ListUploadAudits(r.Context(), params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get uploads")
		return
	}
	writeJSON(w, http.StatusOK, audits)
}
