// ABOUTME: Compound index over several attributes of one entity type
// ABOUTME: Keys concatenate the canonical encodings of every attribute

package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/index"
)

// CompoundIndex maps value tuples to the entities holding them.
type CompoundIndex struct {
	attrs []*index.Attribute

	mu      sync.RWMutex
	buckets map[string]idSet
	size    int
}

// NewCompoundIndex creates an index on the tuple of attrs.
func NewCompoundIndex(attrs []*index.Attribute) (*CompoundIndex, error) {
	if len(attrs) < 2 {
		return nil, fmt.Errorf("memory: compound index needs at least two attributes, got %d", len(attrs))
	}
	for _, a := range attrs {
		if _, err := a.Handler(); err != nil {
			return nil, err
		}
	}
	return &CompoundIndex{
		attrs:   append([]*index.Attribute(nil), attrs...),
		buckets: make(map[string]idSet),
	}, nil
}

func (c *CompoundIndex) Attributes() []*index.Attribute {
	return append([]*index.Attribute(nil), c.attrs...)
}

func (c *CompoundIndex) Features() index.FeatureSet {
	return index.Features(index.COMPOUND, index.EQ, index.IN, index.QZ)
}

func (c *CompoundIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// tupleKey concatenates encodings; each encoding is self-delimiting so the
// concatenation identifies the tuple.
func (c *CompoundIndex) tupleKey(values []any) (string, error) {
	if len(values) != len(c.attrs) {
		return "", fmt.Errorf("memory: %d values for %d attributes", len(values), len(c.attrs))
	}
	var key []byte
	for i, a := range c.attrs {
		part, err := a.Encode(values[i])
		if err != nil {
			return "", fmt.Errorf("memory: compound index on %s: %w", a, err)
		}
		key = append(key, part...)
	}
	return string(key), nil
}

func (c *CompoundIndex) entityKey(e *index.Entity) (string, error) {
	values := make([]any, len(c.attrs))
	for i, a := range c.attrs {
		values[i] = a.Value(e)
	}
	return c.tupleKey(values)
}

func (c *CompoundIndex) Add(e *index.Entity) error {
	key, err := c.entityKey(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[key]
	if !ok {
		b = make(idSet)
		c.buckets[key] = b
	}
	if _, dup := b[e.ID]; !dup {
		b[e.ID] = struct{}{}
		c.size++
	}
	return nil
}

func (c *CompoundIndex) Remove(e *index.Entity) error {
	key, err := c.entityKey(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.buckets[key]
	if _, ok := b[e.ID]; ok {
		delete(b, e.ID)
		c.size--
		if len(b) == 0 {
			delete(c.buckets, key)
		}
	}
	return nil
}

func (c *CompoundIndex) Retrieve(q index.Query) ([]uuid.UUID, error) {
	var tuples [][]any
	switch q := q.(type) {
	case index.EqualAll:
		tuples = [][]any{q.Values}
	case index.InAll:
		tuples = q.Tuples
	default:
		return nil, unsupportedQuery("compound", q)
	}

	out := make(idSet)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range tuples {
		key, err := c.tupleKey(t)
		if err != nil {
			return nil, err
		}
		for id := range c.buckets[key] {
			out[id] = struct{}{}
		}
	}
	return out.ids(), nil
}
