package memory

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/eventcore/pkg/hlc"
	"github.com/nainya/eventcore/pkg/index"
	"github.com/nainya/eventcore/pkg/layout"
)

var orderType = layout.Object("OrderPlaced",
	layout.F("customer", layout.String()),
	layout.F("sku", layout.String()),
	layout.F("quantity", layout.Int32()),
	layout.F("total", layout.Decimal()),
	layout.F("coupon", layout.Optional(layout.String())),
	layout.F("items", layout.List(layout.String())),
)

func attr(t *testing.T, field string) *index.Attribute {
	t.Helper()
	a, err := index.FieldAttribute(orderType, field)
	require.NoError(t, err)
	return a
}

func order(customer, sku string, quantity int32, coupon layout.Option) *index.Entity {
	return &index.Entity{
		ID:   uuid.New(),
		Type: "OrderPlaced",
		Fields: layout.Record{
			"customer": customer,
			"sku":      sku,
			"quantity": quantity,
			"coupon":   coupon,
		},
	}
}

func ids(entities []*index.Entity) []uuid.UUID {
	out := make([]uuid.UUID, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

func sortedIDs(in []uuid.UUID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = id.String()
	}
	sort.Strings(out)
	return out
}

func capabilityOf(idx index.Index) string {
	switch idx.(type) {
	case *HashIndex:
		return "Hash"
	case *UniqueIndex:
		return "Unique"
	case *NavigableIndex:
		return "Navigable"
	case *SuffixIndex:
		return "Suffix"
	case *CompoundIndex:
		return "Compound"
	}
	return fmt.Sprintf("%T", idx)
}

func TestCapabilityResolution(t *testing.T) {
	tests := []struct {
		field    string
		features []index.Feature
		want     string
	}{
		{"customer", []index.Feature{index.EQ}, "Hash"},
		{"customer", []index.Feature{index.IN, index.QZ}, "Hash"},
		{"sku", []index.Feature{index.UNIQUE}, "Unique"},
		{"sku", []index.Feature{index.UNIQUE, index.EQ}, "Unique"},
		{"quantity", []index.Feature{index.LT}, "Navigable"},
		{"quantity", []index.Feature{index.EQ, index.BT}, "Navigable"},
		{"customer", []index.Feature{index.SW}, "Navigable"},
		{"customer", []index.Feature{index.EW}, "Suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+index.Features(tt.features...).String(), func(t *testing.T) {
			e := NewEngine()
			idx, err := e.IndexOnAttribute(attr(t, tt.field), tt.features...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, capabilityOf(idx))
		})
	}
}

func TestUnsupportedRequests(t *testing.T) {
	e := NewEngine()

	_, err := e.IndexOnAttribute(attr(t, "customer"), index.SC)
	var notSupported *index.IndexNotSupportedError
	require.ErrorAs(t, err, &notSupported)
	assert.Equal(t, EngineName, notSupported.Engine)

	_, err = e.IndexOnAttribute(attr(t, "customer"), index.EW, index.EQ)
	require.ErrorIs(t, err, index.ErrIndexNotSupported)

	_, err = e.IndexOnAttributes([]*index.Attribute{attr(t, "customer"), attr(t, "sku")}, index.LT)
	require.ErrorIs(t, err, index.ErrIndexNotSupported)
}

func TestCapabilitiesThatCannotBuild(t *testing.T) {
	e := NewEngine()

	_, err := e.IndexOnAttribute(attr(t, "total"), index.LT)
	require.ErrorIs(t, err, index.ErrNotOrderable)

	_, err = e.IndexOnAttribute(attr(t, "quantity"), index.EW)
	require.ErrorIs(t, err, layout.ErrUnsupportedType)

	_, err = NewCompoundIndex([]*index.Attribute{attr(t, "customer")})
	require.Error(t, err)
}

func TestHashIndex(t *testing.T) {
	customer := attr(t, "customer")
	idx, err := NewHashIndex(customer)
	require.NoError(t, err)

	a := order("ann", "sku-1", 1, layout.None())
	b := order("bob", "sku-2", 2, layout.None())
	c := order("ann", "sku-3", 3, layout.None())
	for _, e := range []*index.Entity{a, b, c} {
		require.NoError(t, idx.Add(e))
	}
	require.NoError(t, idx.Add(a))
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Retrieve(index.Equal{Attr: customer, Value: "ann"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, c.ID}, got)

	got, err = idx.Retrieve(index.In{Attr: customer, Values: []any{"bob", "cat"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, got)

	require.NoError(t, idx.Remove(a))
	require.NoError(t, idx.Remove(a))
	assert.Equal(t, 2, idx.Len())
	got, err = idx.Retrieve(index.Equal{Attr: customer, Value: "ann"})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID}, got)

	_, err = idx.Retrieve(index.StartsWith{Attr: customer, Prefix: "a"})
	require.ErrorIs(t, err, index.ErrUnsupportedQuery)
}

func TestUniqueIndexRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	sku := attr(t, "sku")
	_, err := e.IndexOnAttribute(sku, index.UNIQUE)
	require.NoError(t, err)
	hash, err := e.IndexOnAttribute(attr(t, "customer"), index.EQ)
	require.NoError(t, err)

	c, err := e.IndexedCollection(ctx, orderType)
	require.NoError(t, err)

	first := order("ann", "sku-1", 1, layout.None())
	require.NoError(t, c.Add(first))

	dup := order("bob", "sku-1", 2, layout.None())
	err = c.Add(dup)
	require.ErrorIs(t, err, index.ErrUniqueViolation)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, hash.Len())
	_, ok := c.Get(dup.ID)
	assert.False(t, ok)

	// Replacing an entity keeps its own value.
	updated := *first
	updated.Fields = layout.Record{"customer": "ann", "sku": "sku-1", "quantity": int32(5)}
	require.NoError(t, c.Add(&updated))

	got, err := c.Retrieve(index.Equal{Attr: sku, Value: "sku-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(5), got[0].Fields["quantity"])

	ok, err = c.Remove(first.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.Add(dup))
}

func TestNavigableIndexRanges(t *testing.T) {
	quantity := attr(t, "quantity")
	idx, err := NewNavigableIndex(quantity)
	require.NoError(t, err)

	byQuantity := make(map[int32]uuid.UUID)
	for _, q := range []int32{-3, 0, 4, 4, 9, 15} {
		e := order("ann", "sku", q, layout.None())
		require.NoError(t, idx.Add(e))
		byQuantity[q] = e.ID
	}
	assert.Equal(t, 6, idx.Len())

	count := func(q index.Query) int {
		t.Helper()
		got, err := idx.Retrieve(q)
		require.NoError(t, err)
		return len(got)
	}

	assert.Equal(t, 2, count(index.Equal{Attr: quantity, Value: int32(4)}))
	assert.Equal(t, 3, count(index.In{Attr: quantity, Values: []any{int32(-3), int32(4), int32(7)}}))
	assert.Equal(t, 2, count(index.LessThan{Attr: quantity, Value: int32(4)}))
	assert.Equal(t, 4, count(index.LessThan{Attr: quantity, Value: int32(4), Inclusive: true}))
	assert.Equal(t, 2, count(index.GreaterThan{Attr: quantity, Value: int32(4)}))
	assert.Equal(t, 4, count(index.GreaterThan{Attr: quantity, Value: int32(4), Inclusive: true}))
	assert.Equal(t, 2, count(index.Between{Attr: quantity, Lower: int32(0), Upper: int32(9)}))
	assert.Equal(t, 5, count(index.Between{Attr: quantity, Lower: int32(0), Upper: int32(15), LowerInclusive: true, UpperInclusive: true}))
	assert.Equal(t, 0, count(index.Between{Attr: quantity, Lower: int32(10), Upper: int32(1)}))

	got, err := idx.Retrieve(index.LessThan{Attr: quantity, Value: int32(0)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{byQuantity[-3]}, got)

	_, err = idx.Retrieve(index.StartsWith{Attr: quantity, Prefix: "1"})
	require.ErrorIs(t, err, index.ErrUnsupportedQuery)
}

func TestNavigableIndexStartsWith(t *testing.T) {
	customer := attr(t, "customer")
	idx, err := NewNavigableIndex(customer)
	require.NoError(t, err)

	names := []string{"al", "alice", "al\x00x", "alan", "bob", "a", ""}
	byName := make(map[string]uuid.UUID)
	for _, n := range names {
		e := order(n, "sku", 1, layout.None())
		require.NoError(t, idx.Add(e))
		byName[n] = e.ID
	}

	got, err := idx.Retrieve(index.StartsWith{Attr: customer, Prefix: "al"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{byName["al"], byName["alice"], byName["al\x00x"], byName["alan"]}, got)

	got, err = idx.Retrieve(index.StartsWith{Attr: customer, Prefix: ""})
	require.NoError(t, err)
	assert.Len(t, got, len(names))

	got, err = idx.Retrieve(index.StartsWith{Attr: customer, Prefix: "z"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNavigableIndexSkipsUnsetOptionals(t *testing.T) {
	coupon := attr(t, "coupon")
	idx, err := NewNavigableIndex(coupon)
	require.NoError(t, err)

	none := order("ann", "sku", 1, layout.None())
	spring := order("bob", "sku", 1, layout.Some("SPRING"))
	summer := order("cat", "sku", 1, layout.Some("SUMMER"))
	for _, e := range []*index.Entity{none, spring, summer} {
		require.NoError(t, idx.Add(e))
	}

	got, err := idx.Retrieve(index.LessThan{Attr: coupon, Value: layout.Some("SUMMER")})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{spring.ID}, got)

	got, err = idx.Retrieve(index.StartsWith{Attr: coupon, Prefix: "S"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{spring.ID, summer.ID}, got)

	got, err = idx.Retrieve(index.Equal{Attr: coupon, Value: layout.None()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{none.ID}, got)
}

func TestSuffixIndex(t *testing.T) {
	customer := attr(t, "customer")
	idx, err := NewSuffixIndex(customer)
	require.NoError(t, err)

	byName := make(map[string]uuid.UUID)
	for _, n := range []string{"ann@example.com", "bob@example.org", "cat@mail.example.com", "com"} {
		e := order(n, "sku", 1, layout.None())
		require.NoError(t, idx.Add(e))
		byName[n] = e.ID
	}

	got, err := idx.Retrieve(index.EndsWith{Attr: customer, Suffix: "example.com"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{byName["ann@example.com"], byName["cat@mail.example.com"]}, got)

	got, err = idx.Retrieve(index.EndsWith{Attr: customer, Suffix: "com"})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	e := &index.Entity{ID: byName["com"], Type: "OrderPlaced", Fields: layout.Record{"customer": "com"}}
	require.NoError(t, idx.Remove(e))
	assert.Equal(t, 3, idx.Len())

	_, err = idx.Retrieve(index.Equal{Attr: customer, Value: "com"})
	require.ErrorIs(t, err, index.ErrUnsupportedQuery)
}

func TestCompoundIndex(t *testing.T) {
	ctx := context.Background()
	e := NewEngine()
	customer, sku := attr(t, "customer"), attr(t, "sku")
	pair := []*index.Attribute{customer, sku}

	idx, err := e.IndexOnAttributes(pair, index.EQ)
	require.NoError(t, err)
	assert.Equal(t, "Compound", capabilityOf(idx))

	c, err := e.IndexedCollection(ctx, orderType)
	require.NoError(t, err)
	a := order("ann", "sku-1", 1, layout.None())
	b := order("ann", "sku-2", 1, layout.None())
	x := order("bob", "sku-1", 1, layout.None())
	for _, ent := range []*index.Entity{a, b, x} {
		require.NoError(t, c.Add(ent))
	}

	got, err := c.Retrieve(index.EqualAll{Attrs: pair, Values: []any{"ann", "sku-1"}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, ids(got))

	got, err = c.Retrieve(index.InAll{Attrs: pair, Tuples: [][]any{{"ann", "sku-2"}, {"bob", "sku-1"}, {"cat", "sku-1"}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{b.ID, x.ID}, ids(got))

	_, err = idx.Retrieve(index.EqualAll{Attrs: pair, Values: []any{"ann"}})
	require.Error(t, err)

	again, err := e.IndexOnAttributes([]*index.Attribute{attr(t, "customer"), attr(t, "sku")}, index.IN)
	require.NoError(t, err)
	assert.Same(t, idx, again)
}

func TestJournalReplay(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()
	for i := 0; i < 5; i++ {
		j.Append(order(fmt.Sprintf("customer-%d", i), "sku", int32(i), layout.None()))
	}
	j.Append(&index.Entity{ID: uuid.New(), Type: "Refund"})

	e := NewEngine()
	require.NoError(t, e.SetJournal(j))
	require.NoError(t, e.SetRepository(Repository{orderType}))
	require.NoError(t, e.Start(ctx))

	quantity := attr(t, "quantity")
	_, err := e.IndexOnAttribute(quantity, index.GT)
	require.NoError(t, err)

	c, err := e.IndexedCollection(ctx, orderType)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())

	got, err := c.Retrieve(index.GreaterThan{Attr: quantity, Value: int32(2)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = j.Replay(cancelled, orderType, func(*index.Entity) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

// Results served by indices must equal the results of a full scan.
func TestIndexedResultsMatchScan(t *testing.T) {
	ctx := context.Background()
	indexed := NewEngine()
	scanned := NewEngine()

	customer, quantity, coupon := attr(t, "customer"), attr(t, "quantity"), attr(t, "coupon")
	_, err := indexed.IndexOnAttribute(customer, index.EQ)
	require.NoError(t, err)
	_, err = indexed.IndexOnAttribute(customer, index.SW)
	require.NoError(t, err)
	_, err = indexed.IndexOnAttribute(customer, index.EW)
	require.NoError(t, err)
	_, err = indexed.IndexOnAttribute(quantity, index.BT)
	require.NoError(t, err)
	_, err = indexed.IndexOnAttribute(coupon, index.LT, index.GT)
	require.NoError(t, err)

	ic, err := indexed.IndexedCollection(ctx, orderType)
	require.NoError(t, err)
	sc, err := scanned.IndexedCollection(ctx, orderType)
	require.NoError(t, err)

	clock, err := hlc.NewClock(hlc.NewManualProvider(hlc.FromTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	customers := []string{"ann", "annabel", "bob", "rob", "", "zed"}
	coupons := []layout.Option{layout.None(), layout.Some("A"), layout.Some("B")}
	for i := 0; i < 60; i++ {
		ts, err := clock.Update()
		require.NoError(t, err)
		ent := order(customers[i%len(customers)], "sku", int32(i%13-6), coupons[i%len(coupons)])
		ent.Timestamp = ts
		require.NoError(t, ic.Add(ent))
		require.NoError(t, sc.Add(ent))
	}

	queries := []index.Query{
		index.Equal{Attr: customer, Value: "bob"},
		index.In{Attr: customer, Values: []any{"ann", "zed", "nobody"}},
		index.StartsWith{Attr: customer, Prefix: "ann"},
		index.EndsWith{Attr: customer, Suffix: "ob"},
		index.Between{Attr: quantity, Lower: int32(-2), Upper: int32(3), LowerInclusive: true},
		index.LessThan{Attr: coupon, Value: layout.Some("B")},
		index.GreaterThan{Attr: coupon, Value: layout.Some("A"), Inclusive: true},
	}
	for _, q := range queries {
		t.Run(q.String(), func(t *testing.T) {
			want, err := sc.Retrieve(q)
			require.NoError(t, err)
			got, err := ic.Retrieve(q)
			require.NoError(t, err)
			assert.Equal(t, ids(want), ids(got))
			assert.NotEmpty(t, got)
		})
	}
	assert.Equal(t, sortedIDs(ids(mustRetrieveAll(t, ic))), sortedIDs(ids(mustRetrieveAll(t, sc))))
}

func mustRetrieveAll(t *testing.T, c *index.IndexedCollection) []*index.Entity {
	t.Helper()
	got, err := c.Retrieve(index.Has{Attr: attr(t, "sku")})
	require.NoError(t, err)
	return got
}
