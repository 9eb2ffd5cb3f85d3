// ABOUTME: Ordered indices on a concurrent skip list
// ABOUTME: Navigable answers range and prefix queries, Suffix answers ends-with

package memory

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/zhangyunhao116/skipmap"

	"github.com/nainya/eventcore/pkg/index"
	"github.com/nainya/eventcore/pkg/layout"
)

const idLen = len(uuid.UUID{})

type orderedSet = skipmap.FuncMap[[]byte, uuid.UUID]

func newOrderedSet() *orderedSet {
	return skipmap.NewFunc[[]byte, uuid.UUID](func(a, b []byte) bool {
		return bytes.Compare(a, b) < 0
	})
}

// entryKey appends the entity ID so equal values map to distinct entries.
func entryKey(valueKey []byte, id uuid.UUID) []byte {
	k := make([]byte, 0, len(valueKey)+idLen)
	k = append(k, valueKey...)
	return append(k, id[:]...)
}

func valueKey(entry []byte) []byte { return entry[:len(entry)-idLen] }

// NavigableIndex keeps entities ordered by attribute value.
type NavigableIndex struct {
	attr     *index.Attribute
	optional bool
	text     bool
	entries  *orderedSet
}

// NewNavigableIndex creates an ordered index. The attribute's value type must
// be orderable.
func NewNavigableIndex(attr *index.Attribute) (*NavigableIndex, error) {
	h, err := attr.Handler()
	if err != nil {
		return nil, err
	}
	if !index.Orderable(h) {
		return nil, fmt.Errorf("%w: %s", index.ErrNotOrderable, attr.ValueType)
	}
	inner := h
	optional := h.Kind() == layout.KindOptional
	if optional {
		inner = h.Nested()[0]
	}
	return &NavigableIndex{
		attr:     attr,
		optional: optional,
		text:     inner.Kind() == layout.KindString || inner.Kind() == layout.KindBytes,
		entries:  newOrderedSet(),
	}, nil
}

func (n *NavigableIndex) Attributes() []*index.Attribute { return []*index.Attribute{n.attr} }

func (n *NavigableIndex) Features() index.FeatureSet {
	return index.Features(index.EQ, index.IN, index.LT, index.GT, index.BT, index.SW, index.QZ)
}

func (n *NavigableIndex) Len() int { return n.entries.Len() }

func (n *NavigableIndex) Add(e *index.Entity) error {
	k, err := n.attr.OrderedKey(n.attr.Value(e))
	if err != nil {
		return fmt.Errorf("memory: navigable index on %s: %w", n.attr, err)
	}
	n.entries.Store(entryKey(k, e.ID), e.ID)
	return nil
}

func (n *NavigableIndex) Remove(e *index.Entity) error {
	k, err := n.attr.OrderedKey(n.attr.Value(e))
	if err != nil {
		return fmt.Errorf("memory: navigable index on %s: %w", n.attr, err)
	}
	n.entries.Delete(entryKey(k, e.ID))
	return nil
}

// unset reports whether a value key encodes an unset optional.
func (n *NavigableIndex) unset(vk []byte) bool {
	return n.optional && len(vk) > 0 && vk[0] == 0
}

// scan visits entries in order until visit returns false.
func (n *NavigableIndex) scan(visit func(vk []byte, id uuid.UUID) bool) {
	n.entries.Range(func(k []byte, id uuid.UUID) bool {
		return visit(valueKey(k), id)
	})
}

func (n *NavigableIndex) Retrieve(q index.Query) ([]uuid.UUID, error) {
	var out []uuid.UUID
	switch q := q.(type) {
	case index.Equal, index.In:
		values, _ := equalityValues(q)
		seen := make(idSet)
		for _, v := range values {
			k, err := n.attr.OrderedKey(v)
			if err != nil {
				return nil, err
			}
			n.scan(func(vk []byte, id uuid.UUID) bool {
				c := bytes.Compare(vk, k)
				if c == 0 {
					seen[id] = struct{}{}
				}
				return c <= 0
			})
		}
		return seen.ids(), nil

	case index.LessThan:
		k, err := n.attr.OrderedKey(q.Value)
		if err != nil {
			return nil, err
		}
		n.scan(func(vk []byte, id uuid.UUID) bool {
			c := bytes.Compare(vk, k)
			if c > 0 || (c == 0 && !q.Inclusive) {
				return false
			}
			if !n.unset(vk) {
				out = append(out, id)
			}
			return true
		})

	case index.GreaterThan:
		k, err := n.attr.OrderedKey(q.Value)
		if err != nil {
			return nil, err
		}
		n.scan(func(vk []byte, id uuid.UUID) bool {
			c := bytes.Compare(vk, k)
			if (c > 0 || (c == 0 && q.Inclusive)) && !n.unset(vk) {
				out = append(out, id)
			}
			return true
		})

	case index.Between:
		lo, err := n.attr.OrderedKey(q.Lower)
		if err != nil {
			return nil, err
		}
		hi, err := n.attr.OrderedKey(q.Upper)
		if err != nil {
			return nil, err
		}
		n.scan(func(vk []byte, id uuid.UUID) bool {
			c := bytes.Compare(vk, hi)
			if c > 0 || (c == 0 && !q.UpperInclusive) {
				return false
			}
			c = bytes.Compare(vk, lo)
			if (c > 0 || (c == 0 && q.LowerInclusive)) && !n.unset(vk) {
				out = append(out, id)
			}
			return true
		})

	case index.StartsWith:
		if !n.text {
			return nil, unsupportedQuery("navigable", q)
		}
		prefix := index.EscapedPrefix(q.Prefix)
		if n.optional {
			prefix = append([]byte{1}, prefix...)
		}
		n.scan(func(vk []byte, id uuid.UUID) bool {
			if bytes.HasPrefix(vk, prefix) {
				out = append(out, id)
				return true
			}
			return bytes.Compare(vk, prefix) < 0
		})

	default:
		return nil, unsupportedQuery("navigable", q)
	}
	return out, nil
}

// SuffixIndex orders string values by their reversed bytes so that a suffix
// becomes a key prefix.
type SuffixIndex struct {
	attr    *index.Attribute
	entries *orderedSet
}

// NewSuffixIndex creates an ends-with index on a string attribute.
func NewSuffixIndex(attr *index.Attribute) (*SuffixIndex, error) {
	h, err := attr.Handler()
	if err != nil {
		return nil, err
	}
	if h.Kind() == layout.KindOptional {
		h = h.Nested()[0]
	}
	if h.Kind() != layout.KindString {
		return nil, fmt.Errorf("%w: suffix index on %s value", layout.ErrUnsupportedType, attr.ValueType)
	}
	return &SuffixIndex{attr: attr, entries: newOrderedSet()}, nil
}

func (s *SuffixIndex) Attributes() []*index.Attribute { return []*index.Attribute{s.attr} }
func (s *SuffixIndex) Features() index.FeatureSet     { return index.Features(index.EW) }
func (s *SuffixIndex) Len() int                       { return s.entries.Len() }

func reversed(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// key returns the entry key of e, or false when e holds no string.
func (s *SuffixIndex) key(e *index.Entity) ([]byte, bool) {
	text, ok := s.attr.Text(s.attr.Value(e))
	if !ok {
		return nil, false
	}
	k := append(index.EscapedPrefix(reversed(text)), 0)
	return entryKey(k, e.ID), true
}

func (s *SuffixIndex) Add(e *index.Entity) error {
	if k, ok := s.key(e); ok {
		s.entries.Store(k, e.ID)
	}
	return nil
}

func (s *SuffixIndex) Remove(e *index.Entity) error {
	if k, ok := s.key(e); ok {
		s.entries.Delete(k)
	}
	return nil
}

func (s *SuffixIndex) Retrieve(q index.Query) ([]uuid.UUID, error) {
	ew, ok := q.(index.EndsWith)
	if !ok {
		return nil, unsupportedQuery("suffix", q)
	}
	prefix := index.EscapedPrefix(reversed(ew.Suffix))
	var out []uuid.UUID
	s.entries.Range(func(k []byte, id uuid.UUID) bool {
		if bytes.HasPrefix(k, prefix) {
			out = append(out, id)
			return true
		}
		return bytes.Compare(k, prefix) < 0
	})
	return out, nil
}
