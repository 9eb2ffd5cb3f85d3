// ABOUTME: Hash and unique indices keyed by canonical value encodings
// ABOUTME: Unique rejects a second entity for an indexed value

package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/index"
)

func errSingleAttribute(n int) error {
	return fmt.Errorf("memory: index takes one attribute, got %d", n)
}

func unsupportedQuery(name string, q index.Query) error {
	return fmt.Errorf("%w: %s index cannot answer %s", index.ErrUnsupportedQuery, name, q)
}

// equalityValues extracts the values of an Equal or In query on attr.
func equalityValues(q index.Query) ([]any, bool) {
	switch q := q.(type) {
	case index.Equal:
		return []any{q.Value}, true
	case index.In:
		return q.Values, true
	}
	return nil, false
}

// HashIndex maps each value to the entities holding it.
type HashIndex struct {
	attr *index.Attribute

	mu      sync.RWMutex
	buckets map[string]idSet
	size    int
}

// NewHashIndex creates a hash index on attr.
func NewHashIndex(attr *index.Attribute) (*HashIndex, error) {
	if _, err := attr.Handler(); err != nil {
		return nil, err
	}
	return &HashIndex{attr: attr, buckets: make(map[string]idSet)}, nil
}

func (h *HashIndex) Attributes() []*index.Attribute { return []*index.Attribute{h.attr} }
func (h *HashIndex) Features() index.FeatureSet     { return index.Features(index.EQ, index.IN, index.QZ) }

func (h *HashIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

func (h *HashIndex) Add(e *index.Entity) error {
	key, err := h.attr.Encode(h.attr.Value(e))
	if err != nil {
		return fmt.Errorf("memory: hash index on %s: %w", h.attr, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buckets[string(key)]
	if !ok {
		b = make(idSet)
		h.buckets[string(key)] = b
	}
	if _, dup := b[e.ID]; !dup {
		b[e.ID] = struct{}{}
		h.size++
	}
	return nil
}

func (h *HashIndex) Remove(e *index.Entity) error {
	key, err := h.attr.Encode(h.attr.Value(e))
	if err != nil {
		return fmt.Errorf("memory: hash index on %s: %w", h.attr, err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	b := h.buckets[string(key)]
	if _, ok := b[e.ID]; ok {
		delete(b, e.ID)
		h.size--
		if len(b) == 0 {
			delete(h.buckets, string(key))
		}
	}
	return nil
}

func (h *HashIndex) Retrieve(q index.Query) ([]uuid.UUID, error) {
	values, ok := equalityValues(q)
	if !ok {
		return nil, unsupportedQuery("hash", q)
	}
	out := make(idSet)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, v := range values {
		key, err := h.attr.Encode(v)
		if err != nil {
			return nil, err
		}
		for id := range h.buckets[string(key)] {
			out[id] = struct{}{}
		}
	}
	return out.ids(), nil
}

// UniqueIndex maps each value to exactly one entity.
type UniqueIndex struct {
	attr *index.Attribute

	mu      sync.RWMutex
	entries map[string]uuid.UUID
}

// NewUniqueIndex creates a unique index on attr.
func NewUniqueIndex(attr *index.Attribute) (*UniqueIndex, error) {
	if _, err := attr.Handler(); err != nil {
		return nil, err
	}
	return &UniqueIndex{attr: attr, entries: make(map[string]uuid.UUID)}, nil
}

func (u *UniqueIndex) Attributes() []*index.Attribute { return []*index.Attribute{u.attr} }

func (u *UniqueIndex) Features() index.FeatureSet {
	return index.Features(index.UNIQUE, index.EQ, index.IN, index.QZ)
}

func (u *UniqueIndex) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.entries)
}

func (u *UniqueIndex) Add(e *index.Entity) error {
	v := u.attr.Value(e)
	key, err := u.attr.Encode(v)
	if err != nil {
		return fmt.Errorf("memory: unique index on %s: %w", u.attr, err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if owner, ok := u.entries[string(key)]; ok && owner != e.ID {
		return fmt.Errorf("%w: %s = %v held by %s", index.ErrUniqueViolation, u.attr, v, owner)
	}
	u.entries[string(key)] = e.ID
	return nil
}

func (u *UniqueIndex) Remove(e *index.Entity) error {
	key, err := u.attr.Encode(u.attr.Value(e))
	if err != nil {
		return fmt.Errorf("memory: unique index on %s: %w", u.attr, err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.entries[string(key)] == e.ID {
		delete(u.entries, string(key))
	}
	return nil
}

func (u *UniqueIndex) Retrieve(q index.Query) ([]uuid.UUID, error) {
	values, ok := equalityValues(q)
	if !ok {
		return nil, unsupportedQuery("unique", q)
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(idSet)
	for _, v := range values {
		key, err := u.attr.Encode(v)
		if err != nil {
			return nil, err
		}
		if id, ok := u.entries[string(key)]; ok {
			out[id] = struct{}{}
		}
	}
	return out.ids(), nil
}
