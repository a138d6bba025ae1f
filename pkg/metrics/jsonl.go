package metrics

import (
	"context"
	"io"
	"log/slog"
)

// LogObserver writes events as structured log records. With a JSON handler
// this yields one JSON line per event.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewJSONLObserver writes events as JSON lines to w.
func NewJSONLObserver(w io.Writer) *LogObserver {
	if w == nil {
		w = io.Discard
	}
	return &LogObserver{logger: slog.New(slog.NewJSONHandler(w, nil)), level: slog.LevelInfo}
}

// NewLoggerObserver writes events at debug level to an existing logger.
func NewLoggerObserver(log *slog.Logger) *LogObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LogObserver{logger: log, level: slog.LevelDebug}
}

func (o *LogObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(context.Background(), o.level, "metrics", attrs...)
}
