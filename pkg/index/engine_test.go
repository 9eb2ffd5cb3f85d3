// ABOUTME: Tests for capability resolution and the engine lifecycle
// ABOUTME: Uses a recording fake backend to observe constructor calls

package index

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/eventcore/pkg/layout"
)

var accountType = layout.Object("Account",
	layout.F("email", layout.String()),
	layout.F("name", layout.String()),
	layout.F("balance", layout.Int64()),
	layout.F("nickname", layout.Optional(layout.String())),
)

func accountAttr(t *testing.T, field string) *Attribute {
	t.Helper()
	a, err := FieldAttribute(accountType, field)
	require.NoError(t, err)
	return a
}

// fakeIndex stores entities and answers queries by scanning them.
type fakeIndex struct {
	capability string
	attrs      []*Attribute
	features   FeatureSet

	mu       sync.Mutex
	entities map[uuid.UUID]*Entity
}

func (f *fakeIndex) Attributes() []*Attribute { return f.attrs }
func (f *fakeIndex) Features() FeatureSet     { return f.features }

func (f *fakeIndex) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities)
}

func (f *fakeIndex) Add(e *Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities[e.ID] = e
	return nil
}

func (f *fakeIndex) Remove(e *Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entities, e.ID)
	return nil
}

func (f *fakeIndex) Retrieve(q Query) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for _, e := range f.entities {
		ok, err := q.Matches(e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e.ID)
		}
	}
	return out, nil
}

type fakeBackend struct {
	mu    sync.Mutex
	built map[string]int
}

func (b *fakeBackend) capability(name string, fs ...Feature) Capability {
	set := Features(fs...)
	return Capability{
		Name:     name,
		Features: set,
		New: func(attrs []*Attribute) (Index, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.built == nil {
				b.built = make(map[string]int)
			}
			b.built[name]++
			return &fakeIndex{capability: name, attrs: attrs, features: set, entities: make(map[uuid.UUID]*Entity)}, nil
		},
	}
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.built[name]
}

func newTestEngine(b *fakeBackend, opts ...EngineOption) *Engine {
	return NewEngine("fake", []Capability{
		b.capability("Specialized", EQ, LT),
		b.capability("General", EQ, IN, LT, GT),
		b.capability("Compound", COMPOUND, EQ, IN),
	}, opts...)
}

type resolutionLog struct {
	mu       sync.Mutex
	outcomes []string
	paths    []string
}

func (r *resolutionLog) IndexResolved(engine, capability, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, capability+":"+outcome)
}

func (r *resolutionLog) QueryServed(entityType, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func TestIndexOnAttributeFirstMatchWins(t *testing.T) {
	tests := []struct {
		features []Feature
		want     string
	}{
		{[]Feature{EQ}, "Specialized"},
		{[]Feature{EQ, LT}, "Specialized"},
		{[]Feature{IN}, "General"},
		{[]Feature{GT}, "General"},
		{[]Feature{EQ, IN, LT, GT}, "General"},
		{nil, "Specialized"},
	}

	for _, tt := range tests {
		t.Run(Features(tt.features...).String(), func(t *testing.T) {
			e := newTestEngine(&fakeBackend{})
			idx, err := e.IndexOnAttribute(accountAttr(t, "email"), tt.features...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, idx.(*fakeIndex).capability)
		})
	}
}

func TestIndexOnAttributesRequiresCompound(t *testing.T) {
	b := &fakeBackend{}
	e := newTestEngine(b)
	attrs := []*Attribute{accountAttr(t, "email"), accountAttr(t, "name")}

	idx, err := e.IndexOnAttributes(attrs, EQ)
	require.NoError(t, err)
	assert.Equal(t, "Compound", idx.(*fakeIndex).capability)
	assert.Equal(t, 0, b.count("Specialized"))

	_, err = e.IndexOnAttributes(attrs, LT)
	var notSupported *IndexNotSupportedError
	require.ErrorAs(t, err, &notSupported)
	assert.Equal(t, []Feature{LT}, notSupported.Features)
}

func TestIndexOnAttributesWithoutCompoundCapability(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine("plain", []Capability{b.capability("Everything", EQ, IN, LT, GT, BT, SW, EW)})

	_, err := e.IndexOnAttributes([]*Attribute{accountAttr(t, "email"), accountAttr(t, "name")}, EQ)
	require.ErrorIs(t, err, ErrIndexNotSupported)
	assert.Equal(t, 0, b.count("Everything"))
}

func TestIndexNotSupportedCarriesContext(t *testing.T) {
	rec := &resolutionLog{}
	e := newTestEngine(&fakeBackend{}, WithRecorder(rec))
	attr := accountAttr(t, "name")

	_, err := e.IndexOnAttribute(attr, SW, EQ)
	require.ErrorIs(t, err, ErrIndexNotSupported)

	var notSupported *IndexNotSupportedError
	require.True(t, errors.As(err, &notSupported))
	assert.Equal(t, []*Attribute{attr}, notSupported.Attributes)
	assert.Equal(t, []Feature{SW, EQ}, notSupported.Features)
	assert.Equal(t, "fake", notSupported.Engine)
	assert.Equal(t, "index: index SW, EQ on Account.name is not supported by fake", err.Error())
	assert.Equal(t, []string{":unsupported"}, rec.outcomes)
}

func TestIndexOnAttributeCachesPerEntityType(t *testing.T) {
	b := &fakeBackend{}
	rec := &resolutionLog{}
	e := newTestEngine(b, WithRecorder(rec))

	first, err := e.IndexOnAttribute(accountAttr(t, "email"), EQ)
	require.NoError(t, err)
	second, err := e.IndexOnAttribute(accountAttr(t, "email"), EQ)
	require.NoError(t, err)
	other, err := e.IndexOnAttribute(accountAttr(t, "name"), EQ)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, b.count("Specialized"))
	assert.Equal(t, []string{"Specialized:created", "Specialized:cached", "Specialized:created"}, rec.outcomes)
}

func TestCapabilitiesAreCopied(t *testing.T) {
	b := &fakeBackend{}
	caps := []Capability{b.capability("A", EQ)}
	e := NewEngine("copy", caps)
	caps[0].Name = "mutated"

	assert.Equal(t, "A", e.Capabilities()[0].Name)
}

type staticRepository []layout.Type

func (r staticRepository) EntityTypes() []layout.Type { return r }

type sliceJournal struct {
	mu       sync.Mutex
	entities []*Entity
	replays  int
}

func (j *sliceJournal) Replay(ctx context.Context, entityType layout.Type, fn func(e *Entity) error) error {
	j.mu.Lock()
	j.replays++
	j.mu.Unlock()
	for _, e := range j.entities {
		if e.Type != entityType.Name() {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func TestEngineLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(&fakeBackend{})
	assert.Equal(t, Configuring, e.State())

	require.NoError(t, e.SetJournal(&sliceJournal{}))
	require.NoError(t, e.SetRepository(staticRepository{accountType}))
	require.NoError(t, e.Start(ctx))
	assert.Equal(t, Running, e.State())

	require.ErrorIs(t, e.SetJournal(&sliceJournal{}), ErrIllegalState)
	require.ErrorIs(t, e.SetRepository(staticRepository{}), ErrIllegalState)
	require.ErrorIs(t, e.Start(ctx), ErrIllegalState)

	_, err := e.IndexOnAttribute(accountAttr(t, "email"), EQ)
	require.NoError(t, err)

	require.NoError(t, e.Stop())
	assert.Equal(t, Stopped, e.State())
	require.ErrorIs(t, e.Stop(), ErrIllegalState)
	require.ErrorIs(t, e.SetJournal(&sliceJournal{}), ErrIllegalState)

	_, err = e.IndexOnAttribute(accountAttr(t, "email"), EQ)
	require.ErrorIs(t, err, ErrIllegalState)
}

func TestEngineStartRejectsNonObjectEntityTypes(t *testing.T) {
	e := newTestEngine(&fakeBackend{})
	require.NoError(t, e.SetRepository(staticRepository{accountType, layout.List(layout.Int8())}))

	err := e.Start(context.Background())
	require.ErrorIs(t, err, layout.ErrUnsupportedType)
	assert.Equal(t, Configuring, e.State())

	require.NoError(t, e.SetRepository(staticRepository{accountType}))
	require.NoError(t, e.Start(context.Background()))
}

func account(email, name string, balance int64) *Entity {
	return &Entity{
		ID:     uuid.New(),
		Type:   "Account",
		Fields: layout.Record{"email": email, "name": name, "balance": balance},
	}
}

func TestIndexedCollectionBuiltOnceWithReplay(t *testing.T) {
	ctx := context.Background()
	j := &sliceJournal{entities: []*Entity{
		account("a@example.com", "Ann", 10),
		account("b@example.com", "Bob", 20),
		{ID: uuid.New(), Type: "Other"},
	}}
	e := newTestEngine(&fakeBackend{})
	require.NoError(t, e.SetJournal(j))
	require.NoError(t, e.Start(ctx))

	first, err := e.IndexedCollection(ctx, accountType)
	require.NoError(t, err)
	second, err := e.IndexedCollection(ctx, accountType)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 1, j.replays)

	_, err = e.IndexedCollection(ctx, layout.String())
	require.ErrorIs(t, err, layout.ErrUnsupportedType)
}

func TestIndexedCollectionConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	j := &sliceJournal{entities: []*Entity{account("a@example.com", "Ann", 10)}}
	e := newTestEngine(&fakeBackend{})
	require.NoError(t, e.SetJournal(j))

	const goroutines = 16
	got := make([]*IndexedCollection, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := e.IndexedCollection(ctx, accountType)
			if err != nil {
				t.Error(err)
				return
			}
			got[i] = c
		}(i)
	}
	wg.Wait()

	for _, c := range got {
		require.Same(t, got[0], c)
	}
	assert.Equal(t, 1, j.replays)
}

func TestIndicesAttachToCollection(t *testing.T) {
	ctx := context.Background()
	rec := &resolutionLog{}
	e := newTestEngine(&fakeBackend{}, WithRecorder(rec))
	email := accountAttr(t, "email")

	before, err := e.IndexOnAttribute(email, EQ)
	require.NoError(t, err)

	c, err := e.IndexedCollection(ctx, accountType)
	require.NoError(t, err)
	ann := account("a@example.com", "Ann", 10)
	require.NoError(t, c.Add(ann))
	require.NoError(t, c.Add(account("b@example.com", "Bob", 20)))
	assert.Equal(t, 2, before.Len())

	after, err := e.IndexOnAttribute(accountAttr(t, "balance"), GT)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Len(), "existing entities are loaded into new indices")
	assert.Len(t, c.Indices(), 2)

	got, err := c.Retrieve(Equal{Attr: email, Value: "a@example.com"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ann.ID, got[0].ID)

	_, err = c.Retrieve(StartsWith{Attr: accountAttr(t, "name"), Prefix: "B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"index", "scan"}, rec.paths)
}
