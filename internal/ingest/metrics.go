package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsTotal считает строки по типу листа и исходу
	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendertrack",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Total number of spreadsheet rows by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// UploadsTotal считает загрузки по итоговому статусу
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tendertrack",
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Total number of uploads by status",
		},
		[]string{"status"},
	)

	// длительность обработки файла
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tendertrack",
			Subsystem: "ingest",
			Name:      "upload_duration_seconds",
			Help:      "Duration of upload processing in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)
)
