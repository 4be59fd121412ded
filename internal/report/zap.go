package report

import (
	"go.uber.org/zap"
)

// ZapReporter writes structured start/end records for every event.
type ZapReporter struct {
	logger *zap.Logger
}

// NewZapReporter creates a reporter backed by the given logger.
func NewZapReporter(logger *zap.Logger) *ZapReporter {
	return &ZapReporter{logger: logger}
}

func (r *ZapReporter) Start(ev Event) Handle {
	fields := eventFields(ev)
	r.logger.Debug("started", fields...)
	return &zapHandle{logger: r.logger, fields: fields}
}

type zapHandle struct {
	logger *zap.Logger
	fields []zap.Field
	bytes  int64
}

func (h *zapHandle) BytesCopied(n int64) {
	h.bytes += n
}

func (h *zapHandle) Success() {
	fields := h.fields
	if h.bytes > 0 {
		fields = append(fields, zap.Int64("bytes", h.bytes))
	}
	h.logger.Info("completed", fields...)
}

func (h *zapHandle) Warning(msg string) {
	h.logger.Warn(msg, h.fields...)
}

func (h *zapHandle) Error(msg string) {
	h.logger.Error(msg, h.fields...)
}

func eventFields(ev Event) []zap.Field {
	fields := []zap.Field{
		zap.String("op", string(ev.Kind)),
		zap.String("user", ev.User.Label()),
	}
	if ev.Relay != "" {
		fields = append(fields, zap.String("relay", ev.Relay))
	}
	if ev.Ref != nil {
		fields = append(fields, zap.String("ref", ev.Ref.String()))
	}
	return fields
}
