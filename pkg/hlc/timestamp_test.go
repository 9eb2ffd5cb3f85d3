// ABOUTME: Tests for NTP values and hybrid timestamps
// ABOUTME: Verifies field-wise ordering, packing and comparable integers

package hlc

import (
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNTPFromTimeEpoch(t *testing.T) {
	n := FromTime(time.Unix(0, 0))
	assert.Equal(t, uint32(unixToNTP), n.Seconds())
	assert.Equal(t, uint32(0), n.Fraction())
	assert.Equal(t, uint64(unixToNTP)<<32, Epoch.LogicalTime)
}

func TestNTPTimeRoundtrip(t *testing.T) {
	times := []time.Time{
		time.Unix(0, 0).UTC(),
		time.Date(2016, 5, 1, 12, 30, 15, 123456789, time.UTC),
		time.Date(2035, 12, 31, 23, 59, 59, 999999999, time.UTC),
		time.Date(2040, 1, 1, 0, 0, 0, 500, time.UTC), // era 1
	}
	for _, tm := range times {
		got := FromTime(tm).Time()
		assert.True(t, tm.Equal(got), "expected %s, got %s", tm, got)
	}
}

func TestNTPAdd(t *testing.T) {
	base := FromTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, base.Seconds()+2, base.Add(2*time.Second).Seconds())
	assert.Equal(t, base, base.Add(-time.Second))

	half := base.Add(500 * time.Millisecond)
	assert.Equal(t, base.Seconds(), half.Seconds())
	assert.Equal(t, uint32(1<<31), half.Fraction())

	// fraction carries into seconds
	assert.Equal(t, base.Seconds()+1, half.Add(600*time.Millisecond).Seconds())
}

func TestCompareNTPFieldWise(t *testing.T) {
	assert.Equal(t, 0, CompareNTP(42, 42))
	assert.Equal(t, -1, CompareNTP(1<<32, 2<<32))
	assert.Equal(t, 1, CompareNTP(2<<32, 1<<32|0xFFFFFFFF))
	assert.Equal(t, -1, CompareNTP(5<<32|1, 5<<32|2))

	// seconds with the MSB set still compare as larger seconds
	assert.Equal(t, 1, CompareNTP(0x80000000<<32, 0x7FFFFFFF<<32|0xFFFFFFFF))
}

func TestHybridTimestampCompare(t *testing.T) {
	a := HybridTimestamp{LogicalTime: 10 << 32, LogicalCounter: 1}
	b := HybridTimestamp{LogicalTime: 10 << 32, LogicalCounter: 2}
	c := HybridTimestamp{LogicalTime: 11 << 32}

	assert.Equal(t, 0, a.Compare(a))
	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.True(t, c.After(a))
	assert.True(t, a.Equal(HybridTimestamp{LogicalTime: 10 << 32, LogicalCounter: 1}))
}

func TestHybridTimestampPacked(t *testing.T) {
	ts := HybridTimestamp{LogicalTime: 0x0000_1234_5678_9ABC, LogicalCounter: 0x1_0005}

	packed := ts.Timestamp()
	assert.Equal(t, uint64(0x0000_1234_5678_0005), packed)

	back := FromPacked(packed)
	assert.Equal(t, uint64(0x0000_1234_5678_0000), back.LogicalTime)
	assert.Equal(t, uint64(5), back.LogicalCounter)
}

func TestComparableIntegerLayout(t *testing.T) {
	ts := HybridTimestamp{LogicalTime: 1<<32 | 2, LogicalCounter: 3}

	want := new(big.Int).Lsh(big.NewInt(1), 96)
	want.Add(want, new(big.Int).Lsh(big.NewInt(2), 64))
	want.Add(want, big.NewInt(3))

	assert.Equal(t, 0, want.Cmp(ts.ComparableInteger()))
}

func TestComparableIntegerAgreesWithCompare(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	gen := func() HybridTimestamp {
		// small ranges so equal fields are common
		return HybridTimestamp{
			LogicalTime:    uint64(rnd.Intn(4))<<62 | uint64(rnd.Intn(3))<<32 | uint64(rnd.Intn(3)),
			LogicalCounter: uint64(rnd.Intn(3)),
		}
	}

	for i := 0; i < 2000; i++ {
		a, b := gen(), gen()
		require.Equal(t, 0, a.Compare(a))
		require.Equal(t, a.Compare(b), a.ComparableInteger().Cmp(b.ComparableInteger()),
			"a=%v b=%v", a, b)
	}
}

func TestComparableIntegerKeepsLargeCounter(t *testing.T) {
	a := HybridTimestamp{LogicalTime: 1 << 32, LogicalCounter: 1 << 40}
	b := HybridTimestamp{LogicalTime: 1 << 32, LogicalCounter: 1<<40 + 1}

	zero := HybridTimestamp{LogicalTime: 1 << 32}

	// the packed form wraps the counter, the integer form does not
	assert.Equal(t, zero.Timestamp(), a.Timestamp())
	assert.Equal(t, 1, a.ComparableInteger().Cmp(zero.ComparableInteger()))
	assert.Equal(t, -1, a.ComparableInteger().Cmp(b.ComparableInteger()))
}

func TestHybridTimestampString(t *testing.T) {
	s := Epoch.String()
	assert.Contains(t, s, "1970-01-01T00:00:00Z@0")
}
