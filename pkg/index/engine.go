// ABOUTME: Index engine resolving feature requests to backend capabilities
// ABOUTME: Explicit Configuring/Running/Stopped lifecycle with per-type caches

package index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nainya/eventcore/pkg/layout"
)

// State is the lifecycle state of an Engine.
type State int32

const (
	Configuring State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithRecorder sets the recorder notified of resolutions and queries.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithRegistry sets the registry used to validate entity types on start.
func WithRegistry(r *layout.Registry) EngineOption {
	return func(e *Engine) { e.registry = r }
}

// Engine resolves index requests against an ordered, immutable list of
// capabilities. The first capability whose features cover a request wins.
type Engine struct {
	name         string
	capabilities []Capability
	log          zerolog.Logger
	recorder     Recorder
	registry     *layout.Registry

	mu         sync.Mutex
	state      State
	journal    Journal
	repository Repository

	typesMu sync.Mutex
	types   map[string]*typeIndices
}

// typeIndices holds what has been built for one entity type. Its mutex
// serializes index creation and collection population for that type.
type typeIndices struct {
	mu         sync.Mutex
	entries    []indexEntry
	collection *IndexedCollection
}

type indexEntry struct {
	capability string
	attrs      []*Attribute
	index      Index
}

// NewEngine creates an engine in the Configuring state.
func NewEngine(name string, capabilities []Capability, opts ...EngineOption) *Engine {
	e := &Engine{
		name:         name,
		capabilities: append([]Capability(nil), capabilities...),
		log:          zerolog.Nop(),
		recorder:     nopRecorder{},
		registry:     layout.Default(),
		types:        make(map[string]*typeIndices),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("engine", name).Logger()
	return e
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

func (e *Engine) String() string { return e.name }

// Capabilities returns a copy of the capability list in registration order.
func (e *Engine) Capabilities() []Capability {
	return append([]Capability(nil), e.capabilities...)
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetJournal sets the journal replayed into new collections.
func (e *Engine) SetJournal(j Journal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Configuring {
		return illegalState("set journal", e.state)
	}
	e.journal = j
	return nil
}

// SetRepository sets the repository whose entity types are validated on start.
func (e *Engine) SetRepository(r Repository) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Configuring {
		return illegalState("set repository", e.state)
	}
	e.repository = r
	return nil
}

// Start moves the engine to Running. Every entity type of the repository must
// resolve to an object handler; otherwise the engine stays Configuring.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Configuring {
		return illegalState("start", e.state)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	types := 0
	if e.repository != nil {
		for _, t := range e.repository.EntityTypes() {
			h, err := e.registry.Resolve(t)
			if err != nil {
				return fmt.Errorf("index: entity type %s: %w", t.Name(), err)
			}
			if h.Kind() != layout.KindObject {
				return fmt.Errorf("%w: entity type %s is a %s", layout.ErrUnsupportedType, t, h.Kind())
			}
			types++
		}
	}

	e.state = Running
	e.log.Info().
		Int("capabilities", len(e.capabilities)).
		Int("entity_types", types).
		Bool("journal", e.journal != nil).
		Msg("index engine started")
	return nil
}

// Stop moves the engine to Stopped. Built indices stay readable.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Stopped {
		return illegalState("stop", e.state)
	}
	e.state = Stopped
	e.log.Info().Msg("index engine stopped")
	return nil
}

// IndexOnAttribute returns an index on attr supporting all features.
func (e *Engine) IndexOnAttribute(attr *Attribute, features ...Feature) (Index, error) {
	if attr == nil {
		return nil, fmt.Errorf("index: nil attribute")
	}
	return e.resolve([]*Attribute{attr}, features, false)
}

// IndexOnAttributes returns a compound index on attrs supporting all
// features. Only capabilities advertising COMPOUND are considered.
func (e *Engine) IndexOnAttributes(attrs []*Attribute, features ...Feature) (Index, error) {
	if len(attrs) == 0 {
		return nil, fmt.Errorf("index: no attributes")
	}
	entityType := attrs[0].EntityType.Name()
	for _, a := range attrs {
		if a == nil {
			return nil, fmt.Errorf("index: nil attribute")
		}
		if a.EntityType.Name() != entityType {
			return nil, fmt.Errorf("index: attributes span entity types %s and %s", entityType, a.EntityType.Name())
		}
	}
	return e.resolve(attrs, features, true)
}

func (e *Engine) resolve(attrs []*Attribute, features []Feature, compound bool) (Index, error) {
	if s := e.State(); s == Stopped {
		return nil, illegalState("resolve index", s)
	}

	want := Features(features...)
	if compound {
		want |= Features(COMPOUND)
	}

	var capability *Capability
	for i := range e.capabilities {
		c := &e.capabilities[i]
		if compound && !c.Features.Has(COMPOUND) {
			continue
		}
		if c.Features.Contains(want) {
			capability = c
			break
		}
	}
	if capability == nil {
		e.recorder.IndexResolved(e.name, "", "unsupported")
		return nil, &IndexNotSupportedError{
			Attributes: append([]*Attribute(nil), attrs...),
			Features:   append([]Feature(nil), features...),
			Engine:     e.name,
		}
	}

	ti := e.typeIndices(attrs[0].EntityType.Name())
	ti.mu.Lock()
	defer ti.mu.Unlock()

	for _, entry := range ti.entries {
		if entry.capability == capability.Name && sameAttributes(entry.attrs, attrs) {
			e.recorder.IndexResolved(e.name, capability.Name, "cached")
			return entry.index, nil
		}
	}

	idx, err := capability.New(append([]*Attribute(nil), attrs...))
	if err != nil {
		e.recorder.IndexResolved(e.name, capability.Name, "error")
		return nil, fmt.Errorf("index: %s index on %s: %w", capability.Name, attributeList(attrs), err)
	}
	if ti.collection != nil {
		if err := ti.collection.attach(idx); err != nil {
			e.recorder.IndexResolved(e.name, capability.Name, "error")
			return nil, err
		}
	}
	ti.entries = append(ti.entries, indexEntry{capability: capability.Name, attrs: attrs, index: idx})

	e.recorder.IndexResolved(e.name, capability.Name, "created")
	e.log.Debug().
		Str("capability", capability.Name).
		Str("attributes", attributeList(attrs)).
		Stringer("features", want).
		Msg("index created")
	return idx, nil
}

// IndexedCollection returns the indexed view of entityType, building it on
// first use. A configured journal is replayed into a new collection.
func (e *Engine) IndexedCollection(ctx context.Context, entityType layout.Type) (*IndexedCollection, error) {
	if entityType.Kind() != layout.KindObject {
		return nil, fmt.Errorf("%w: entity type %s is not an object", layout.ErrUnsupportedType, entityType)
	}
	e.mu.Lock()
	state, journal := e.state, e.journal
	e.mu.Unlock()
	if state == Stopped {
		return nil, illegalState("open collection", state)
	}

	ti := e.typeIndices(entityType.Name())
	ti.mu.Lock()
	defer ti.mu.Unlock()
	if ti.collection != nil {
		return ti.collection, nil
	}

	c := newIndexedCollection(entityType, e.recorder)
	for _, entry := range ti.entries {
		if err := c.attach(entry.index); err != nil {
			return nil, err
		}
	}
	if journal != nil {
		n := 0
		err := journal.Replay(ctx, entityType, func(ent *Entity) error {
			n++
			return c.Add(ent)
		})
		if err != nil {
			return nil, fmt.Errorf("index: replaying %s: %w", entityType.Name(), err)
		}
		e.log.Debug().Str("entity_type", entityType.Name()).Int("entities", n).Msg("collection replayed")
	}
	ti.collection = c
	return c, nil
}

func (e *Engine) typeIndices(name string) *typeIndices {
	e.typesMu.Lock()
	defer e.typesMu.Unlock()
	ti, ok := e.types[name]
	if !ok {
		ti = &typeIndices{}
		e.types[name] = ti
	}
	return ti
}

func attributeList(attrs []*Attribute) string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}
