package logger

import (
	"time"

	"go.uber.org/zap"
)

// field is the concrete Field implementation wrapping a zap.Field.
type field struct {
	key   string
	value interface{}
	zf    zap.Field
}

func (f field) Key() string         { return f.key }
func (f field) Value() interface{}  { return f.value }
func (f field) ZapField() zap.Field { return f.zf }

// String creates a string field.
func String(key, value string) Field {
	return field{key: key, value: value, zf: zap.String(key, value)}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return field{key: key, value: value, zf: zap.Int(key, value)}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return field{key: key, value: value, zf: zap.Int64(key, value)}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return field{key: key, value: value, zf: zap.Bool(key, value)}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return field{key: key, value: value, zf: zap.Duration(key, value)}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return field{key: key, value: value, zf: zap.Time(key, value)}
}

// Error creates an error field under the conventional "error" key.
func Error(err error) Field {
	return field{key: "error", value: err, zf: zap.Error(err)}
}

// Any creates a field with an arbitrary value.
func Any(key string, value interface{}) Field {
	return field{key: key, value: value, zf: zap.Any(key, value)}
}

// Strings creates a string slice field.
func Strings(key string, value []string) Field {
	return field{key: key, value: value, zf: zap.Strings(key, value)}
}

// FieldsToZap converts Field interfaces to zap.Field.
func FieldsToZap(fields []Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zapFields[i] = f.ZapField()
	}

	return zapFields
}
