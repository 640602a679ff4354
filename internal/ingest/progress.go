package ingest

import (
	"fmt"

	"go.uber.org/zap"
)

// Промежуточное состояние загрузки. Processed не убывает.
type ProgressUpdate struct {
	UploadID    string  `json:"uploadId"`
	Sheet       string  `json:"sheet"`
	Processed   int     `json:"processed"`
	Added       int     `json:"added"`
	Duplicates  int     `json:"duplicates"`
	Errors      int     `json:"errors"`
	GemAdded    int     `json:"gemAdded"`
	NonGemAdded int     `json:"nonGemAdded"`
	Total       int     `json:"total"`
	Percentage  float64 `json:"percentage"`
	Completed   bool    `json:"completed"`
}

// ProgressReporter получает обновления прогресса. Вызывается синхронно из
// конвейера, поэтому реализация не должна блокироваться.
type ProgressReporter interface {
	Report(ProgressUpdate)
}

// ProgressFunc адаптирует функцию к ProgressReporter.
type ProgressFunc func(ProgressUpdate)

func (f ProgressFunc) Report(u ProgressUpdate) { f(u) }

// ChannelReporter пересылает обновления в канал без блокировки:
// если читатель не успевает, промежуточное обновление отбрасывается.
type ChannelReporter struct {
	C chan ProgressUpdate
}

func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{C: make(chan ProgressUpdate, buffer)}
}

func (c *ChannelReporter) Report(u ProgressUpdate) {
	select {
	case c.C <- u:
	default:
	}
}

// safeReporter гасит панику в чужом обработчике и пишет ее в лог.
type safeReporter struct {
	next ProgressReporter
	log  *zap.Logger
}

func (s safeReporter) Report(u ProgressUpdate) {
	if s.next == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("progress callback failed",
				zap.String("upload_id", u.UploadID),
				zap.String("error", fmt.Sprint(r)))
		}
	}()
	s.next.Report(u)
}
