package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and dropping pairs with a blank key or value.
func StringFields(pairs ...[2]string) []zap.Field {
	fields := make([]zap.Field, 0, len(pairs))
	for _, p := range pairs {
		key := strings.TrimSpace(p[0])
		value := strings.TrimSpace(p[1])
		if key == "" || value == "" {
			continue
		}
		fields = append(fields, zap.String(key, value))
	}
	return fields
}

// WithAIFields attaches the standard AI provider/model fields to the logger.
// A nil logger falls back to a no-op one.
func WithAIFields(log *zap.Logger, provider, model string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}

	fields := StringFields(
		[2]string{FieldProvider, provider},
		[2]string{FieldModel, model},
	)
	if len(fields) == 0 {
		return log
	}

	return log.With(fields...)
}
