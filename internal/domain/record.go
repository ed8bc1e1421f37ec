package domain

import (
	"fmt"
	"time"
)

// Record is one materialized instance of a RecordSchema: a positional block of
// values in schema leaf order. Records are never mutated after construction.
//
// A byte record built with NewByteRecord references the caller's buffer
// directly; consumers that keep it past the event must Clone it.
type Record struct {
	raw  []byte
	vals []any
}

// NewByteRecord wraps buf without copying.
func NewByteRecord(buf []byte) *Record {
	if buf == nil {
		buf = []byte{}
	}
	return &Record{raw: buf}
}

// NewRecord copies values into a mixed record. Accepted value types are byte,
// int64, float64, string and time.Time, matching TypeByte..TypeTime.
func NewRecord(values ...any) *Record {
	return &Record{vals: append([]any(nil), values...)}
}

// Len is the number of scalar values in the record.
func (r *Record) Len() int {
	if r.raw != nil {
		return len(r.raw)
	}
	return len(r.vals)
}

// Bytes returns the underlying buffer of a byte record, nil for mixed records.
func (r *Record) Bytes() []byte { return r.raw }

// Value returns the i-th value.
func (r *Record) Value(i int) any {
	if r.raw != nil {
		return r.raw[i]
	}
	return r.vals[i]
}

// Values returns a copy of all values. Byte records expand to []any of bytes.
func (r *Record) Values() []any {
	if r.raw != nil {
		out := make([]any, len(r.raw))
		for i, b := range r.raw {
			out[i] = b
		}
		return out
	}
	return append([]any(nil), r.vals...)
}

func (r *Record) ByteAt(i int) byte {
	if r.raw != nil {
		return r.raw[i]
	}
	v, _ := r.vals[i].(byte)
	return v
}

func (r *Record) IntAt(i int) int64 {
	switch v := r.Value(i).(type) {
	case int64:
		return v
	case byte:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (r *Record) DoubleAt(i int) float64 {
	switch v := r.Value(i).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case byte:
		return float64(v)
	case time.Time:
		return float64(v.UnixNano()) / 1e9
	}
	return 0
}

func (r *Record) TextAt(i int) string {
	switch v := r.Value(i).(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

func (r *Record) TimeAt(i int) time.Time {
	v, _ := r.Value(i).(time.Time)
	return v
}

// Clone returns a deep copy that no longer shares the capture buffer.
func (r *Record) Clone() *Record {
	if r.raw != nil {
		return &Record{raw: append([]byte(nil), r.raw...)}
	}
	return NewRecord(r.vals...)
}

func valueMatches(t DataType, v any) bool {
	switch t {
	case TypeByte:
		_, ok := v.(byte)
		return ok
	case TypeInt:
		_, ok := v.(int64)
		return ok
	case TypeDouble:
		_, ok := v.(float64)
		return ok
	case TypeText:
		_, ok := v.(string)
		return ok
	case TypeTime:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}
