package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldRound is the structured log field key for the evaluation round id.
	FieldRound = "round"
	// FieldSource is the structured log field key for the scoring path
	// (remote or fallback) that produced a result.
	FieldSource = "source"
	// FieldServer is the structured log field key for the scoring server URL.
	FieldServer = "server"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// If the logger is nil or no fields are supplied, the input logger is returned
// unchanged, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// EvaluationFields returns standard zap fields describing where an evaluation
// runs. Empty values are ignored to keep log entries compact.
func EvaluationFields(round, server string) []zap.Field {
	return StringFields(
		StringField{Key: FieldRound, Value: round},
		StringField{Key: FieldServer, Value: server},
	)
}

// WithEvaluationFields attaches the common evaluation fields to the provided
// logger. If the logger is nil, a no-op logger is created to avoid panics.
func WithEvaluationFields(logger *zap.Logger, round, server string) *zap.Logger {
	fields := EvaluationFields(round, server)
	return WithFields(logger, fields...)
}
