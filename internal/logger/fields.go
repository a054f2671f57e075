package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	// FieldRunID identifies every log entry of a single evaluation run.
	FieldRunID = "run_id"
	FieldStage = "stage"
)

// StringFields turns key/value pairs into zap fields, dropping pairs with a blank key or value.
func StringFields(pairs ...string) []zap.Field {
	result := make([]zap.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		key := strings.TrimSpace(pairs[i])
		value := strings.TrimSpace(pairs[i+1])
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to the logger, falling back to a no-op logger when nil.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	if len(fields) == 0 {
		return log
	}

	return log.With(fields...)
}

// WithCommonFields attaches the AI provider and model, skipping empty values.
func WithCommonFields(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, StringFields(FieldProvider, provider, FieldModel, model)...)
}

// ForRun returns a logger scoped to one evaluation run.
func ForRun(log *zap.Logger, runID string) *zap.Logger {
	return WithFields(log, StringFields(FieldRunID, runID)...)
}
