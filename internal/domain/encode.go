package domain

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// EncodeRecord writes rec to w following enc. The record is validated against
// s first so a malformed block never reaches the wire.
func EncodeRecord(w io.Writer, s *RecordSchema, enc RecordEncoding, rec *Record) error {
	if err := s.Validate(rec); err != nil {
		return err
	}
	switch e := enc.(type) {
	case *TextEncoding:
		return encodeText(w, rec, e)
	case *BinaryEncoding:
		return encodeBinary(w, s, rec, e)
	default:
		return fmt.Errorf("unsupported encoding %T", enc)
	}
}

func encodeText(w io.Writer, rec *Record, e *TextEncoding) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < rec.Len(); i++ {
		if i > 0 {
			if _, err := bw.WriteString(e.TokenSeparator); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(formatText(rec.Value(i))); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString(e.BlockSeparator); err != nil {
		return err
	}
	return bw.Flush()
}

func formatText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case byte:
		return strconv.FormatUint(uint64(val), 10)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

func encodeBinary(w io.Writer, s *RecordSchema, rec *Record, e *BinaryEncoding) (err error) {
	if e.ByteEncoding == ByteEncodingBase64 {
		b64 := base64.NewEncoder(base64.StdEncoding, w)
		defer func() {
			if cerr := b64.Close(); err == nil {
				err = cerr
			}
		}()
		w = b64
	}

	members := make(map[string]BinaryMember, len(e.Members))
	for _, m := range e.Members {
		members[m.Ref] = m
	}

	// A byte block whose every leaf is encoded as one byte goes out untouched.
	if raw := rec.Bytes(); raw != nil && coversAllAsBytes(s, members) {
		_, err = w.Write(raw)
		return err
	}

	bw := bufio.NewWriter(w)
	var buf [8]byte
	i := 0
	s.walkLeaves(func(path string, _ *Component) bool {
		m, ok := members[path]
		v := rec.Value(i)
		i++
		if !ok {
			return true
		}
		err = writeBinaryValue(bw, e, m, v, buf[:])
		return err == nil
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

func coversAllAsBytes(s *RecordSchema, members map[string]BinaryMember) bool {
	paths := s.LeafPaths()
	if len(paths) != len(members) {
		return false
	}
	for _, p := range paths {
		m, ok := members[p.Path]
		if !ok || m.Type != TypeByte || m.ByteWidth != 1 {
			return false
		}
	}
	return true
}

func writeBinaryValue(bw *bufio.Writer, e *BinaryEncoding, m BinaryMember, v any, buf []byte) error {
	order := e.ByteOrder
	switch m.Type {
	case TypeByte:
		b, _ := v.(byte)
		return bw.WriteByte(b)
	case TypeInt:
		n, _ := v.(int64)
		if m.ByteWidth == 8 {
			order.PutUint64(buf, uint64(n))
			_, err := bw.Write(buf[:8])
			return err
		}
		order.PutUint32(buf, uint32(int32(n)))
		_, err := bw.Write(buf[:4])
		return err
	case TypeDouble:
		f, _ := v.(float64)
		order.PutUint64(buf, math.Float64bits(f))
		_, err := bw.Write(buf[:8])
		return err
	case TypeTime:
		t, _ := v.(time.Time)
		order.PutUint64(buf, math.Float64bits(float64(t.UnixNano())/1e9))
		_, err := bw.Write(buf[:8])
		return err
	case TypeText:
		str, _ := v.(string)
		if len(str) > math.MaxUint16 {
			return fmt.Errorf("member %q: text longer than %d bytes", m.Ref, math.MaxUint16)
		}
		order.PutUint16(buf, uint16(len(str)))
		if _, err := bw.Write(buf[:2]); err != nil {
			return err
		}
		_, err := bw.WriteString(str)
		return err
	default:
		return fmt.Errorf("member %q: unsupported type %s", m.Ref, m.Type)
	}
}
