// ABOUTME: Structural type descriptors for the binary codec
// ABOUTME: Self-describing composites via ordered field lists

package layout

import (
	"strconv"
	"strings"
)

// Kind is the structural shape of a type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
	KindString
	KindBytes
	KindUUID
	KindDecimal
	KindDate
	KindTimestamp
	KindArray
	KindList
	KindMap
	KindOptional
	KindEnum
	KindObject
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindInt8:      "int8",
	KindInt16:     "int16",
	KindInt32:     "int32",
	KindInt64:     "int64",
	KindUint8:     "uint8",
	KindUint16:    "uint16",
	KindUint32:    "uint32",
	KindUint64:    "uint64",
	KindFloat32:   "float32",
	KindFloat64:   "float64",
	KindBool:      "bool",
	KindString:    "string",
	KindBytes:     "bytes",
	KindUUID:      "uuid",
	KindDecimal:   "decimal",
	KindDate:      "date",
	KindTimestamp: "timestamp",
	KindArray:     "array",
	KindList:      "list",
	KindMap:       "map",
	KindOptional:  "optional",
	KindEnum:      "enum",
	KindObject:    "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Type describes the structure of a value. Build it with the constructors in
// this file; the zero Type is Invalid.
type Type struct {
	kind     Kind
	name     string
	elem     *Type
	key      *Type
	length   int
	fields   []Field
	variants []string
}

// Field is one named member of an Object, in declaration order.
type Field struct {
	Name string
	Type Type
}

// F declares an object field.
func F(name string, t Type) Field { return Field{Name: name, Type: t} }

func scalar(k Kind) Type { return Type{kind: k} }

func Int8() Type    { return scalar(KindInt8) }
func Int16() Type   { return scalar(KindInt16) }
func Int32() Type   { return scalar(KindInt32) }
func Int64() Type   { return scalar(KindInt64) }
func Uint8() Type   { return scalar(KindUint8) }
func Uint16() Type  { return scalar(KindUint16) }
func Uint32() Type  { return scalar(KindUint32) }
func Uint64() Type  { return scalar(KindUint64) }
func Float32() Type { return scalar(KindFloat32) }
func Float64() Type { return scalar(KindFloat64) }
func Bool() Type    { return scalar(KindBool) }
func String() Type  { return scalar(KindString) }
func Bytes() Type   { return scalar(KindBytes) }
func UUID() Type    { return scalar(KindUUID) }
func Decimal() Type { return scalar(KindDecimal) }
func Date() Type    { return scalar(KindDate) }

// Timestamp is a hybrid logical clock timestamp.
func Timestamp() Type { return scalar(KindTimestamp) }

// Array is a fixed-length sequence of n elements.
func Array(elem Type, n int) Type {
	return Type{kind: KindArray, elem: &elem, length: n}
}

// List is a variable-length ordered collection.
func List(elem Type) Type {
	return Type{kind: KindList, elem: &elem}
}

// Map is an associative map. Keys must be of a comparable scalar kind.
func Map(key, value Type) Type {
	return Type{kind: KindMap, key: &key, elem: &value}
}

// Optional is a value that may be unset.
func Optional(elem Type) Type {
	return Type{kind: KindOptional, elem: &elem}
}

// Enum is a closed set of named variants; the first is the default.
func Enum(name string, variants ...string) Type {
	return Type{kind: KindEnum, name: name, variants: append([]string(nil), variants...)}
}

// Object is a composite with fields in the given order.
func Object(name string, fields ...Field) Type {
	return Type{kind: KindObject, name: name, fields: append([]Field(nil), fields...)}
}

// Kind returns the structural shape.
func (t Type) Kind() Kind { return t.kind }

// Name returns the declared name of an enum or object.
func (t Type) Name() string { return t.name }

// Elem returns the element type of arrays, lists and optionals, or the value
// type of maps.
func (t Type) Elem() (Type, bool) {
	if t.elem == nil {
		return Type{}, false
	}
	return *t.elem, true
}

// KeyType returns the key type of a map.
func (t Type) KeyType() (Type, bool) {
	if t.key == nil {
		return Type{}, false
	}
	return *t.key, true
}

// Len returns the length of an array.
func (t Type) Len() int { return t.length }

// Fields returns the ordered fields of an object.
func (t Type) Fields() []Field { return append([]Field(nil), t.fields...) }

// Field looks up an object field by name.
func (t Type) Field(name string) (Field, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Variants returns the ordered variant names of an enum.
func (t Type) Variants() []string { return append([]string(nil), t.variants...) }

// Key is the canonical identity of the type, including enum and object names.
// Handlers are cached by it.
func (t Type) Key() string {
	var b strings.Builder
	t.writeKey(&b)
	return b.String()
}

func (t Type) String() string { return t.Key() }

func (t Type) writeKey(b *strings.Builder) {
	b.WriteString(t.kind.String())
	switch t.kind {
	case KindArray:
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(t.length))
		b.WriteByte(']')
		writeParams(b, t.elem)
	case KindList, KindOptional:
		writeParams(b, t.elem)
	case KindMap:
		writeParams(b, t.key, t.elem)
	case KindEnum:
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(t.name))
		b.WriteByte('{')
		for i, v := range t.variants {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(v))
		}
		b.WriteByte('}')
	case KindObject:
		b.WriteByte(' ')
		b.WriteString(strconv.Quote(t.name))
		b.WriteByte('{')
		for i, f := range t.fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(f.Name))
			b.WriteByte(':')
			f.Type.writeKey(b)
		}
		b.WriteByte('}')
	}
}

func writeParams(b *strings.Builder, params ...*Type) {
	b.WriteByte('<')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		if p == nil {
			b.WriteString("nil")
			continue
		}
		p.writeKey(b)
	}
	b.WriteByte('>')
}
