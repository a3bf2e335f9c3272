package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// Validator is implemented by schema types that can check their own shape.
type Validator interface {
	Validate() error
}

// Decode converts rows into typed values. Rows that do not fit T, lack an
// id, or fail T's own Validate are logged and left out.
func Decode[T any](collection Collection, records []Record) []T {
	logger := slog.With("component", "gateway", "operation", "decode", "collection", collection)

	out := make([]T, 0, len(records))
	for i, record := range records {
		value, err := DecodeOne[T](record)
		if err != nil {
			logger.Warn("Dropping record that failed shape validation", "index", i, "error", err)
			continue
		}
		out = append(out, value)
	}
	return out
}

func DecodeOne[T any](record Record) (T, error) {
	var value T

	id, ok := record["id"]
	if !ok || id == nil || fmt.Sprint(id) == "" {
		return value, fmt.Errorf("record has no id")
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return value, fmt.Errorf("failed to encode record: %w", err)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, fmt.Errorf("record does not match schema: %w", err)
	}

	if v, ok := any(&value).(Validator); ok {
		if err := v.Validate(); err != nil {
			return value, err
		}
	}
	return value, nil
}
