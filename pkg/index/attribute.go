// ABOUTME: Entities and the attributes indices are built on
// ABOUTME: Attributes extract one typed value from an entity

package index

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/hlc"
	"github.com/nainya/eventcore/pkg/layout"
)

// Entity is a stored event or command instance.
type Entity struct {
	ID        uuid.UUID
	Type      string
	Timestamp hlc.HybridTimestamp
	Fields    layout.Record
}

// Attribute reads one value of type ValueType from entities of EntityType.
type Attribute struct {
	Name       string
	EntityType layout.Type
	ValueType  layout.Type
	Get        func(e *Entity) any

	handler layout.Handler
}

// NewAttribute creates an attribute with a custom accessor.
func NewAttribute(entityType layout.Type, name string, valueType layout.Type, get func(e *Entity) any) (*Attribute, error) {
	if entityType.Kind() != layout.KindObject {
		return nil, fmt.Errorf("%w: attribute %s on non-object %s", layout.ErrUnsupportedType, name, entityType)
	}
	if get == nil {
		return nil, fmt.Errorf("index: attribute %s has no accessor", name)
	}
	h, err := layout.Resolve(valueType)
	if err != nil {
		return nil, err
	}
	return &Attribute{
		Name:       name,
		EntityType: entityType,
		ValueType:  valueType,
		Get:        get,
		handler:    h,
	}, nil
}

// FieldAttribute creates an attribute reading a declared field of an object
// entity type.
func FieldAttribute(entityType layout.Type, field string) (*Attribute, error) {
	if entityType.Kind() != layout.KindObject {
		return nil, fmt.Errorf("%w: field %s of non-object %s", layout.ErrUnsupportedType, field, entityType)
	}
	f, ok := entityType.Field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %q", layout.ErrUnsupportedType, entityType.Name(), field)
	}
	return NewAttribute(entityType, field, f.Type, func(e *Entity) any {
		return e.Fields[field]
	})
}

// Handler returns the codec handler of the value type.
func (a *Attribute) Handler() (layout.Handler, error) {
	if a.handler != nil {
		return a.handler, nil
	}
	return layout.Resolve(a.ValueType)
}

// Value extracts the attribute value from e.
func (a *Attribute) Value(e *Entity) any {
	if e == nil || a.Get == nil {
		return nil
	}
	return a.Get(e)
}

// Encode returns the canonical encoding of v. Equal values encode equally.
func (a *Attribute) Encode(v any) ([]byte, error) {
	h, err := a.Handler()
	if err != nil {
		return nil, err
	}
	return layout.Marshal(h, v)
}

// OrderedKey returns the order-preserving key of v.
func (a *Attribute) OrderedKey(v any) ([]byte, error) {
	h, err := a.Handler()
	if err != nil {
		return nil, err
	}
	return OrderedKey(h, v)
}

// Text returns v as a string for string-matching queries. An unset optional
// has no text.
func (a *Attribute) Text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case layout.Option:
		if !x.Valid {
			return "", false
		}
		return a.Text(x.Value)
	}
	return "", false
}

func (a *Attribute) String() string {
	return a.EntityType.Name() + "." + a.Name
}

// sameAttributes reports whether both lists name the same attributes in order.
func sameAttributes(a, b []*Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && a[i].String() != b[i].String() {
			return false
		}
	}
	return true
}
