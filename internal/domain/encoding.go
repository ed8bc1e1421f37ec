package domain

import (
	"encoding/binary"
	"fmt"
)

// EncodingKind tags a RecordEncoding.
type EncodingKind uint8

const (
	EncodingBinary EncodingKind = iota + 1
	EncodingText
)

// RecordEncoding describes how records of a schema are serialized for
// downstream consumers. It is either *BinaryEncoding or *TextEncoding.
type RecordEncoding interface {
	Kind() EncodingKind
}

// ByteEncoding selects how binary blocks are wrapped.
type ByteEncoding string

const (
	ByteEncodingRaw    ByteEncoding = "raw"
	ByteEncodingBase64 ByteEncoding = "base64"
)

// BinaryMember binds one leaf path to its binary layout.
type BinaryMember struct {
	Ref       string
	Type      DataType
	ByteWidth int
}

// BinaryEncoding lays out leaf values back to back in member order.
type BinaryEncoding struct {
	ByteOrder    binary.ByteOrder
	ByteEncoding ByteEncoding
	Members      []BinaryMember
}

func (*BinaryEncoding) Kind() EncodingKind { return EncodingBinary }

// TextEncoding renders values as delimited text.
type TextEncoding struct {
	TokenSeparator string
	BlockSeparator string
}

func (*TextEncoding) Kind() EncodingKind { return EncodingText }

// NewTextEncoding returns a delimited text encoding.
func NewTextEncoding(tokenSep, blockSep string) *TextEncoding {
	return &TextEncoding{TokenSeparator: tokenSep, BlockSeparator: blockSep}
}

// DefaultByteWidth is the fixed binary width of a primitive type. Text has no
// fixed width and is length-prefixed by encoders.
func DefaultByteWidth(t DataType) int {
	switch t {
	case TypeByte:
		return 1
	case TypeInt:
		return 4
	case TypeDouble, TypeTime:
		return 8
	default:
		return 0
	}
}

// ValidateEncoding checks enc against s. Binary members must name existing
// leaf paths, with the leaf's type, in schema order.
func ValidateEncoding(s *RecordSchema, enc RecordEncoding) error {
	switch e := enc.(type) {
	case *TextEncoding:
		if e.TokenSeparator == "" || e.BlockSeparator == "" {
			return fmt.Errorf("text encoding: separators must be set")
		}
		if e.TokenSeparator == e.BlockSeparator {
			return fmt.Errorf("text encoding: token and block separators must differ")
		}
		return nil
	case *BinaryEncoding:
		if e.ByteOrder == nil {
			return fmt.Errorf("binary encoding: byte order must be set")
		}
		if len(e.Members) == 0 {
			return fmt.Errorf("binary encoding: no members")
		}
		paths := s.LeafPaths()
		next := 0
		for _, m := range e.Members {
			idx := -1
			for j := next; j < len(paths); j++ {
				if paths[j].Path == m.Ref {
					idx = j
					break
				}
			}
			if idx < 0 {
				return fmt.Errorf("binary encoding: member %q is not a leaf of %q or is out of order", m.Ref, s.Name())
			}
			if paths[idx].Type != m.Type {
				return fmt.Errorf("binary encoding: member %q declared %s, schema has %s", m.Ref, m.Type, paths[idx].Type)
			}
			if w := DefaultByteWidth(m.Type); w != 0 && m.ByteWidth != w {
				return fmt.Errorf("binary encoding: member %q width %d, want %d", m.Ref, m.ByteWidth, w)
			}
			next = idx + 1
		}
		return nil
	case nil:
		return fmt.Errorf("encoding is nil")
	default:
		return fmt.Errorf("unsupported encoding %T", enc)
	}
}
