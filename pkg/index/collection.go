// ABOUTME: Indexed view over the entities of one type
// ABOUTME: Keeps attached indices in sync and routes queries to them

package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/layout"
)

// IndexedCollection holds the entities of one type together with the indices
// created for it. Reads may run concurrently; mutations are serialized.
type IndexedCollection struct {
	entityType layout.Type
	recorder   Recorder

	mu       sync.RWMutex
	entities map[uuid.UUID]*Entity
	indices  []Index
}

func newIndexedCollection(entityType layout.Type, recorder Recorder) *IndexedCollection {
	return &IndexedCollection{
		entityType: entityType,
		recorder:   recorder,
		entities:   make(map[uuid.UUID]*Entity),
	}
}

// EntityType returns the type of the held entities.
func (c *IndexedCollection) EntityType() layout.Type { return c.entityType }

// Len returns the number of entities.
func (c *IndexedCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// Indices returns the attached indices in creation order.
func (c *IndexedCollection) Indices() []Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Index(nil), c.indices...)
}

// Get returns the entity with the given ID.
func (c *IndexedCollection) Get(id uuid.UUID) (*Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[id]
	return e, ok
}

// Add inserts e, replacing an entity with the same ID. When an index rejects
// e the collection is left unchanged.
func (c *IndexedCollection) Add(e *Entity) error {
	if e == nil {
		return fmt.Errorf("index: nil entity")
	}
	if e.Type != "" && e.Type != c.entityType.Name() {
		return fmt.Errorf("index: %s entity added to %s collection", e.Type, c.entityType.Name())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	old, replacing := c.entities[e.ID]
	if replacing {
		for _, idx := range c.indices {
			if err := idx.Remove(old); err != nil {
				return err
			}
		}
	}

	for i, idx := range c.indices {
		if err := idx.Add(e); err != nil {
			for _, added := range c.indices[:i] {
				_ = added.Remove(e)
			}
			if replacing {
				for _, restore := range c.indices {
					_ = restore.Add(old)
				}
			}
			return err
		}
	}
	c.entities[e.ID] = e
	return nil
}

// Remove deletes the entity with the given ID and reports whether it existed.
func (c *IndexedCollection) Remove(id uuid.UUID) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entities[id]
	if !ok {
		return false, nil
	}
	for _, idx := range c.indices {
		if err := idx.Remove(e); err != nil {
			return false, err
		}
	}
	delete(c.entities, id)
	return true, nil
}

// attach adds idx to the collection and loads the current entities into it.
func (c *IndexedCollection) attach(idx Index) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.indices {
		if existing == idx {
			return nil
		}
	}
	for _, e := range c.entities {
		if err := idx.Add(e); err != nil {
			return fmt.Errorf("index: loading %s: %w", c.entityType.Name(), err)
		}
	}
	c.indices = append(c.indices, idx)
	return nil
}

// Retrieve returns the entities matching q ordered by timestamp, then ID. The
// first attached index over the query's attributes that serves its feature
// answers it; otherwise every entity is evaluated.
func (c *IndexedCollection) Retrieve(q Query) ([]*Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Entity
	if idx := c.indexFor(q); idx != nil {
		ids, err := idx.Retrieve(q)
		if err != nil {
			return nil, err
		}
		out = make([]*Entity, 0, len(ids))
		for _, id := range ids {
			if e, ok := c.entities[id]; ok {
				out = append(out, e)
			}
		}
		c.recorder.QueryServed(c.entityType.Name(), "index")
	} else {
		for _, e := range c.entities {
			ok, err := q.Matches(e)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, e)
			}
		}
		c.recorder.QueryServed(c.entityType.Name(), "scan")
	}

	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Timestamp.Compare(out[j].Timestamp); cmp != 0 {
			return cmp < 0
		}
		return string(out[i].ID[:]) < string(out[j].ID[:])
	})
	return out, nil
}

func (c *IndexedCollection) indexFor(q Query) Index {
	for _, idx := range c.indices {
		if idx.Features().Has(q.Feature()) && sameAttributes(idx.Attributes(), q.Attributes()) {
			return idx
		}
	}
	return nil
}
