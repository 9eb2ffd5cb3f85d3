// ABOUTME: Attribute queries answered by indices or by scanning
// ABOUTME: Each query names the feature an index must support to serve it

package index

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nainya/eventcore/pkg/layout"
)

// Query selects entities by attribute values.
type Query interface {
	// Feature is the index feature required to answer the query.
	Feature() Feature
	Attributes() []*Attribute
	// Matches evaluates the query against one entity.
	Matches(e *Entity) (bool, error)
	String() string
}

// present reports whether v holds a value; unset optionals do not.
func present(v any) bool {
	if v == nil {
		return false
	}
	if o, ok := v.(layout.Option); ok {
		return o.Valid
	}
	return true
}

func equalValues(a *Attribute, x, y any) (bool, error) {
	kx, err := a.Encode(x)
	if err != nil {
		return false, err
	}
	ky, err := a.Encode(y)
	if err != nil {
		return false, err
	}
	return bytes.Equal(kx, ky), nil
}

// compareValues orders x against the bound y.
func compareValues(a *Attribute, x, y any) (int, error) {
	kx, err := a.OrderedKey(x)
	if err != nil {
		return 0, err
	}
	ky, err := a.OrderedKey(y)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(kx, ky), nil
}

// Equal matches entities whose attribute equals Value.
type Equal struct {
	Attr  *Attribute
	Value any
}

func (q Equal) Feature() Feature         { return EQ }
func (q Equal) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q Equal) String() string           { return fmt.Sprintf("%s = %v", q.Attr, q.Value) }

func (q Equal) Matches(e *Entity) (bool, error) {
	return equalValues(q.Attr, q.Attr.Value(e), q.Value)
}

// In matches entities whose attribute equals any of Values.
type In struct {
	Attr   *Attribute
	Values []any
}

func (q In) Feature() Feature         { return IN }
func (q In) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q In) String() string           { return fmt.Sprintf("%s in %v", q.Attr, q.Values) }

func (q In) Matches(e *Entity) (bool, error) {
	v := q.Attr.Value(e)
	for _, want := range q.Values {
		ok, err := equalValues(q.Attr, v, want)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// LessThan matches entities whose attribute is below Value.
type LessThan struct {
	Attr      *Attribute
	Value     any
	Inclusive bool
}

func (q LessThan) Feature() Feature         { return LT }
func (q LessThan) Attributes() []*Attribute { return []*Attribute{q.Attr} }

func (q LessThan) String() string {
	op := "<"
	if q.Inclusive {
		op = "<="
	}
	return fmt.Sprintf("%s %s %v", q.Attr, op, q.Value)
}

func (q LessThan) Matches(e *Entity) (bool, error) {
	v := q.Attr.Value(e)
	if !present(v) {
		return false, nil
	}
	c, err := compareValues(q.Attr, v, q.Value)
	return c < 0 || (q.Inclusive && c == 0), err
}

// GreaterThan matches entities whose attribute is above Value.
type GreaterThan struct {
	Attr      *Attribute
	Value     any
	Inclusive bool
}

func (q GreaterThan) Feature() Feature         { return GT }
func (q GreaterThan) Attributes() []*Attribute { return []*Attribute{q.Attr} }

func (q GreaterThan) String() string {
	op := ">"
	if q.Inclusive {
		op = ">="
	}
	return fmt.Sprintf("%s %s %v", q.Attr, op, q.Value)
}

func (q GreaterThan) Matches(e *Entity) (bool, error) {
	v := q.Attr.Value(e)
	if !present(v) {
		return false, nil
	}
	c, err := compareValues(q.Attr, v, q.Value)
	return c > 0 || (q.Inclusive && c == 0), err
}

// Between matches entities whose attribute lies between Lower and Upper.
type Between struct {
	Attr           *Attribute
	Lower, Upper   any
	LowerInclusive bool
	UpperInclusive bool
}

func (q Between) Feature() Feature         { return BT }
func (q Between) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q Between) String() string           { return fmt.Sprintf("%s between %v and %v", q.Attr, q.Lower, q.Upper) }

func (q Between) Matches(e *Entity) (bool, error) {
	v := q.Attr.Value(e)
	if !present(v) {
		return false, nil
	}
	lo, err := compareValues(q.Attr, v, q.Lower)
	if err != nil {
		return false, err
	}
	hi, err := compareValues(q.Attr, v, q.Upper)
	if err != nil {
		return false, err
	}
	return (lo > 0 || (q.LowerInclusive && lo == 0)) && (hi < 0 || (q.UpperInclusive && hi == 0)), nil
}

// StartsWith matches string attributes with the given prefix.
type StartsWith struct {
	Attr   *Attribute
	Prefix string
}

func (q StartsWith) Feature() Feature         { return SW }
func (q StartsWith) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q StartsWith) String() string           { return fmt.Sprintf("%s starts with %q", q.Attr, q.Prefix) }

func (q StartsWith) Matches(e *Entity) (bool, error) {
	s, ok := q.Attr.Text(q.Attr.Value(e))
	return ok && strings.HasPrefix(s, q.Prefix), nil
}

// EndsWith matches string attributes with the given suffix.
type EndsWith struct {
	Attr   *Attribute
	Suffix string
}

func (q EndsWith) Feature() Feature         { return EW }
func (q EndsWith) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q EndsWith) String() string           { return fmt.Sprintf("%s ends with %q", q.Attr, q.Suffix) }

func (q EndsWith) Matches(e *Entity) (bool, error) {
	s, ok := q.Attr.Text(q.Attr.Value(e))
	return ok && strings.HasSuffix(s, q.Suffix), nil
}

// Contains matches string attributes containing Substring.
type Contains struct {
	Attr      *Attribute
	Substring string
}

func (q Contains) Feature() Feature         { return SC }
func (q Contains) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q Contains) String() string           { return fmt.Sprintf("%s contains %q", q.Attr, q.Substring) }

func (q Contains) Matches(e *Entity) (bool, error) {
	s, ok := q.Attr.Text(q.Attr.Value(e))
	return ok && strings.Contains(s, q.Substring), nil
}

// Has matches entities where the attribute holds a value.
type Has struct {
	Attr *Attribute
}

func (q Has) Feature() Feature         { return HS }
func (q Has) Attributes() []*Attribute { return []*Attribute{q.Attr} }
func (q Has) String() string           { return fmt.Sprintf("has %s", q.Attr) }

func (q Has) Matches(e *Entity) (bool, error) {
	return present(q.Attr.Value(e)), nil
}

// EqualAll matches entities whose attributes equal Values pairwise.
type EqualAll struct {
	Attrs  []*Attribute
	Values []any
}

func (q EqualAll) Feature() Feature         { return EQ }
func (q EqualAll) Attributes() []*Attribute { return q.Attrs }
func (q EqualAll) String() string           { return fmt.Sprintf("%v = %v", q.Attrs, q.Values) }

func (q EqualAll) Matches(e *Entity) (bool, error) {
	if len(q.Attrs) != len(q.Values) {
		return false, fmt.Errorf("index: %d attributes compared to %d values", len(q.Attrs), len(q.Values))
	}
	for i, a := range q.Attrs {
		ok, err := equalValues(a, a.Value(e), q.Values[i])
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// InAll matches entities whose attributes equal any of Tuples pairwise.
type InAll struct {
	Attrs  []*Attribute
	Tuples [][]any
}

func (q InAll) Feature() Feature         { return IN }
func (q InAll) Attributes() []*Attribute { return q.Attrs }
func (q InAll) String() string           { return fmt.Sprintf("%v in %v", q.Attrs, q.Tuples) }

func (q InAll) Matches(e *Entity) (bool, error) {
	for _, tuple := range q.Tuples {
		ok, err := EqualAll{Attrs: q.Attrs, Values: tuple}.Matches(e)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
