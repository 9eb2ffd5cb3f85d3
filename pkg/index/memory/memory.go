// ABOUTME: In-memory index backend and its capability table
// ABOUTME: Hash, unique, navigable, suffix and compound indices

// Package memory provides in-memory indices for the index engine.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/index"
	"github.com/nainya/eventcore/pkg/layout"
)

// EngineName identifies engines built by NewEngine.
const EngineName = "memory"

// Capabilities returns the backend capabilities in resolution order. Hash
// precedes Unique so plain equality requests do not impose uniqueness.
func Capabilities() []index.Capability {
	return []index.Capability{
		{
			Name:     "Hash",
			Features: index.Features(index.EQ, index.IN, index.QZ),
			New:      single(NewHashIndex),
		},
		{
			Name:     "Unique",
			Features: index.Features(index.UNIQUE, index.EQ, index.IN, index.QZ),
			New:      single(NewUniqueIndex),
		},
		{
			Name:     "Navigable",
			Features: index.Features(index.EQ, index.IN, index.LT, index.GT, index.BT, index.SW, index.QZ),
			New:      single(NewNavigableIndex),
		},
		{
			Name:     "Suffix",
			Features: index.Features(index.EW),
			New:      single(NewSuffixIndex),
		},
		{
			Name:     "Compound",
			Features: index.Features(index.COMPOUND, index.EQ, index.IN, index.QZ),
			New: func(attrs []*index.Attribute) (index.Index, error) {
				idx, err := NewCompoundIndex(attrs)
				if err != nil {
					return nil, err
				}
				return idx, nil
			},
		},
	}
}

// NewEngine creates an index engine over the memory capabilities.
func NewEngine(opts ...index.EngineOption) *index.Engine {
	return index.NewEngine(EngineName, Capabilities(), opts...)
}

func single[T index.Index](fn func(*index.Attribute) (T, error)) func([]*index.Attribute) (index.Index, error) {
	return func(attrs []*index.Attribute) (index.Index, error) {
		if len(attrs) != 1 {
			return nil, errSingleAttribute(len(attrs))
		}
		idx, err := fn(attrs[0])
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
}

type idSet map[uuid.UUID]struct{}

func (s idSet) ids() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Journal keeps appended entities in memory, grouped by entity type.
type Journal struct {
	mu       sync.RWMutex
	entities map[string][]*index.Entity
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{entities: make(map[string][]*index.Entity)}
}

// Append records e.
func (j *Journal) Append(e *index.Entity) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entities[e.Type] = append(j.entities[e.Type], e)
}

// Replay calls fn for every entity of entityType in append order.
func (j *Journal) Replay(ctx context.Context, entityType layout.Type, fn func(e *index.Entity) error) error {
	j.mu.RLock()
	entities := append([]*index.Entity(nil), j.entities[entityType.Name()]...)
	j.mu.RUnlock()

	for _, e := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Repository is a fixed list of entity types.
type Repository []layout.Type

// EntityTypes returns the listed types.
func (r Repository) EntityTypes() []layout.Type { return r }
