package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a production ready structured logger.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithOperation enriches the logger with operation and request identifiers.
func WithOperation(logger *zap.Logger, operation, requestID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return logger.With(fields...)
}

// WithStudent enriches the logger with the claimed identity. The student id
// is caller-supplied and opaque; it is logged verbatim for correlation.
func WithStudent(logger *zap.Logger, studentID string) *zap.Logger {
	if studentID == "" {
		return logger
	}
	return logger.With(zap.String("student_id", studentID))
}
