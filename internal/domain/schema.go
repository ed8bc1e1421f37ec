package domain

import (
	"fmt"
	"strings"
)

// DataType is the primitive type carried by a scalar component.
type DataType uint8

const (
	TypeByte DataType = iota + 1
	TypeInt
	TypeDouble
	TypeText
	TypeTime
)

func (t DataType) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeInt:
		return "int"
	case TypeDouble:
		return "double"
	case TypeText:
		return "text"
	case TypeTime:
		return "time"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(t))
	}
}

// ComponentKind distinguishes the three shapes a schema node can take.
type ComponentKind uint8

const (
	KindScalar ComponentKind = iota + 1
	KindArray
	KindGroup
)

// Well-known unit codes and definitions.
const (
	UOMISOTime      = "http://www.opengis.net/def/uom/ISO-8601/0/Gregorian"
	DefSamplingTime = "http://www.opengis.net/def/property/OGC/0/SamplingTime"
	CRSWGS84Height  = "http://www.opengis.net/def/crs/EPSG/0/4979"
)

// Component is an immutable node of a record schema: a typed scalar, a fixed
// size array of one element component, or an ordered group of fields.
type Component struct {
	name       string
	kind       ComponentKind
	dataType   DataType
	definition string
	uom        string
	refFrame   string
	axisID     string
	count      int
	children   []*Component
}

// ComponentOption decorates a component at construction time.
type ComponentOption func(*Component)

// WithDefinition sets the semantic definition URI.
func WithDefinition(uri string) ComponentOption {
	return func(c *Component) { c.definition = uri }
}

// WithUOM sets the unit of measure code (UCUM) or href.
func WithUOM(code string) ComponentOption {
	return func(c *Component) { c.uom = code }
}

// WithReferenceFrame sets the reference frame URI and the axis the value lies on.
func WithReferenceFrame(frame, axis string) ComponentOption {
	return func(c *Component) {
		c.refFrame = frame
		c.axisID = axis
	}
}

// Scalar builds a leaf component.
func Scalar(name string, t DataType, opts ...ComponentOption) *Component {
	c := &Component{name: name, kind: KindScalar, dataType: t}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Array builds a fixed-size array whose elements all share elem's shape.
func Array(name string, count int, elem *Component, opts ...ComponentOption) *Component {
	c := &Component{name: name, kind: KindArray, count: count, children: []*Component{elem}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Group builds an ordered record of fields.
func Group(name string, fields []*Component, opts ...ComponentOption) *Component {
	c := &Component{name: name, kind: KindGroup, children: append([]*Component(nil), fields...)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Component) Name() string           { return c.name }
func (c *Component) Kind() ComponentKind    { return c.kind }
func (c *Component) DataType() DataType     { return c.dataType }
func (c *Component) Definition() string     { return c.definition }
func (c *Component) UOM() string            { return c.uom }
func (c *Component) ReferenceFrame() string { return c.refFrame }
func (c *Component) AxisID() string         { return c.axisID }

// Count is the element count of an array component, zero otherwise.
func (c *Component) Count() int { return c.count }

// Children returns a copy of the group fields, or the single array element.
func (c *Component) Children() []*Component {
	return append([]*Component(nil), c.children...)
}

// size is the number of scalar values one instance of c flattens to.
func (c *Component) size() int {
	switch c.kind {
	case KindScalar:
		return 1
	case KindArray:
		return c.count * c.children[0].size()
	default:
		n := 0
		for _, f := range c.children {
			n += f.size()
		}
		return n
	}
}

// leafType returns the single primitive type shared by every leaf under c.
func (c *Component) leafType() (DataType, bool) {
	if c.kind == KindScalar {
		return c.dataType, true
	}
	var t DataType
	for i, ch := range c.children {
		ct, ok := ch.leafType()
		if !ok {
			return 0, false
		}
		if i == 0 {
			t = ct
		} else if ct != t {
			return 0, false
		}
	}
	return t, t != 0
}

// walk visits leaves in record order, expanding arrays. It stops early when fn
// returns false.
func (c *Component) walk(fn func(*Component) bool) bool {
	switch c.kind {
	case KindScalar:
		return fn(c)
	case KindArray:
		for i := 0; i < c.count; i++ {
			if !c.children[0].walk(fn) {
				return false
			}
		}
		return true
	default:
		for _, f := range c.children {
			if !f.walk(fn) {
				return false
			}
		}
		return true
	}
}

func (c *Component) collectPaths(prefix string, out *[]LeafPath) {
	switch c.kind {
	case KindScalar:
		*out = append(*out, LeafPath{Path: prefix, Type: c.dataType})
	default:
		for _, ch := range c.children {
			p := ch.name
			if prefix != "" {
				p = prefix + "/" + ch.name
			}
			ch.collectPaths(p, out)
		}
	}
}

// LeafPath names a scalar relative to the schema root, e.g. "row/pixel/red".
type LeafPath struct {
	Path string
	Type DataType
}

// RecordSchema is the immutable description of the records an output produces.
type RecordSchema struct {
	root  *Component
	size  int
	paths []LeafPath
}

// NewRecordSchema freezes root into a schema. Arrays must have a positive count
// and exactly one element component; group fields must have unique names.
func NewRecordSchema(root *Component) (*RecordSchema, error) {
	if root == nil {
		return nil, fmt.Errorf("schema root is nil")
	}
	if err := checkComponent(root); err != nil {
		return nil, err
	}
	s := &RecordSchema{root: root, size: root.size()}
	if root.kind == KindScalar {
		s.paths = []LeafPath{{Path: root.name, Type: root.dataType}}
	} else {
		root.collectPaths("", &s.paths)
	}
	return s, nil
}

func checkComponent(c *Component) error {
	if c.name == "" {
		return fmt.Errorf("component without name")
	}
	switch c.kind {
	case KindScalar:
		if c.dataType < TypeByte || c.dataType > TypeTime {
			return fmt.Errorf("component %q: invalid data type %d", c.name, c.dataType)
		}
	case KindArray:
		if c.count <= 0 {
			return fmt.Errorf("array %q: element count must be > 0, got %d", c.name, c.count)
		}
		if len(c.children) != 1 || c.children[0] == nil {
			return fmt.Errorf("array %q: exactly one element component required", c.name)
		}
		return checkComponent(c.children[0])
	case KindGroup:
		if len(c.children) == 0 {
			return fmt.Errorf("group %q has no fields", c.name)
		}
		seen := make(map[string]struct{}, len(c.children))
		for _, f := range c.children {
			if f == nil {
				return fmt.Errorf("group %q: nil field", c.name)
			}
			if _, dup := seen[f.name]; dup {
				return fmt.Errorf("group %q: duplicate field %q", c.name, f.name)
			}
			seen[f.name] = struct{}{}
			if err := checkComponent(f); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("component %q: unknown kind %d", c.name, c.kind)
	}
	return nil
}

// Root returns the top-level component.
func (s *RecordSchema) Root() *Component { return s.root }

// Name is the root component name.
func (s *RecordSchema) Name() string { return s.root.name }

// Size is the number of scalar values in one record.
func (s *RecordSchema) Size() int { return s.size }

// LeafPaths lists every distinct scalar path in schema order. Array elements
// are not expanded.
func (s *RecordSchema) LeafPaths() []LeafPath {
	return append([]LeafPath(nil), s.paths...)
}

// Field looks up a component by slash-separated path.
func (s *RecordSchema) Field(path string) (*Component, bool) {
	cur := s.root
	if path == "" {
		return cur, true
	}
	for _, part := range strings.Split(path, "/") {
		var next *Component
		for _, ch := range cur.children {
			if ch.name == part {
				next = ch
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Validate reports ErrRecordShape when rec does not match the schema's size and
// leaf types position by position.
func (s *RecordSchema) Validate(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrRecordShape)
	}
	if rec.Len() != s.size {
		return fmt.Errorf("%w: schema %q expects %d values, record has %d", ErrRecordShape, s.Name(), s.size, rec.Len())
	}
	if rec.raw != nil {
		if t, ok := s.root.leafType(); !ok || t != TypeByte {
			return fmt.Errorf("%w: byte block for non-byte schema %q", ErrRecordShape, s.Name())
		}
		return nil
	}
	var (
		i   int
		err error
	)
	s.root.walk(func(c *Component) bool {
		if !valueMatches(c.dataType, rec.vals[i]) {
			err = fmt.Errorf("%w: field %q at position %d wants %s, got %T", ErrRecordShape, c.name, i, c.dataType, rec.vals[i])
			return false
		}
		i++
		return true
	})
	return err
}

// Describe renders an indented outline of the schema, one component per line.
func (s *RecordSchema) Describe() string {
	var b strings.Builder
	describe(&b, s.root, 0)
	return b.String()
}

func describe(b *strings.Builder, c *Component, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(c.name)
	switch c.kind {
	case KindScalar:
		fmt.Fprintf(b, " (%s", c.dataType)
		if c.uom != "" {
			fmt.Fprintf(b, ", uom=%s", c.uom)
		}
		if c.refFrame != "" {
			fmt.Fprintf(b, ", frame=%s, axis=%s", c.refFrame, c.axisID)
		}
		b.WriteString(")")
	case KindArray:
		fmt.Fprintf(b, " [%d]", c.count)
	}
	if c.definition != "" {
		fmt.Fprintf(b, " def=%s", c.definition)
	}
	b.WriteString("\n")
	for _, ch := range c.children {
		describe(b, ch, depth+1)
	}
}

// walkLeaves visits leaves in record order together with their schema path.
func (s *RecordSchema) walkLeaves(fn func(path string, c *Component) bool) {
	var visit func(prefix string, c *Component) bool
	visit = func(prefix string, c *Component) bool {
		switch c.kind {
		case KindScalar:
			return fn(prefix, c)
		case KindArray:
			for i := 0; i < c.count; i++ {
				if !visit(prefix, c.children[0]) {
					return false
				}
			}
			return true
		default:
			for _, f := range c.children {
				p := f.name
				if prefix != "" {
					p = prefix + "/" + f.name
				}
				if !visit(p, f) {
					return false
				}
			}
			return true
		}
	}
	if s.root.kind == KindScalar {
		fn(s.root.name, s.root)
		return
	}
	visit("", s.root)
}
