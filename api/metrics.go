package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// listMetrics holds per-request timings for the todo listing route. The
// handler fills the fields in as it goes and emits them once at the end.
type listMetrics struct {
	start      time.Time
	fetch      time.Duration
	encode     time.Duration
	returned   int
	filtered   bool
	errorStage string
}

func (m *listMetrics) log(logger *log.Logger, status int, err error) {
	fields := log.Fields{
		"route":          "/api/todos",
		"status":         status,
		"total_ms":       millis(time.Since(m.start)),
		"todos_returned": m.returned,
		"filtered":       m.filtered,
	}
	if m.fetch > 0 {
		fields["fetch_ms"] = millis(m.fetch)
	}
	if m.encode > 0 {
		fields["encode_ms"] = millis(m.encode)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logger.WithFields(fields).Info("todos.request.metrics")
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
