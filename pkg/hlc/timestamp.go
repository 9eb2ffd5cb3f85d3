// ABOUTME: Hybrid logical clock timestamp value
// ABOUTME: Total order, packed 64-bit key and lossless comparable integer

package hlc

import (
	"fmt"
	"math/big"
	"time"
)

// CounterBits is the number of counter bits kept by the packed form.
const CounterBits = 16

const counterMask = 1<<CounterBits - 1

// Epoch is the timestamp of 1970-01-01T00:00:00Z with a zero counter. It is the
// zero-equivalent used when no timestamp has been recorded.
var Epoch = HybridTimestamp{LogicalTime: uint64(FromTime(time.Unix(0, 0)))}

// HybridTimestamp is a point in hybrid logical time: an NTP-shaped physical
// component plus a logical counter that orders events sharing it.
type HybridTimestamp struct {
	LogicalTime    uint64
	LogicalCounter uint64
}

// FromPacked reverses Timestamp. Only the low 16 bits of the counter survive
// packing, so the result equals the original only if its counter fit.
func FromPacked(packed uint64) HybridTimestamp {
	return HybridTimestamp{
		LogicalTime:    packed &^ counterMask,
		LogicalCounter: packed & counterMask,
	}
}

// Compare orders timestamps by logical time (seconds, then fraction) and then
// by counter. It returns -1, 0 or 1.
func (ts HybridTimestamp) Compare(o HybridTimestamp) int {
	if c := CompareNTP(ts.LogicalTime, o.LogicalTime); c != 0 {
		return c
	}
	switch {
	case ts.LogicalCounter < o.LogicalCounter:
		return -1
	case ts.LogicalCounter > o.LogicalCounter:
		return 1
	}
	return 0
}

// Before reports whether ts orders strictly before o.
func (ts HybridTimestamp) Before(o HybridTimestamp) bool { return ts.Compare(o) < 0 }

// After reports whether ts orders strictly after o.
func (ts HybridTimestamp) After(o HybridTimestamp) bool { return ts.Compare(o) > 0 }

// Equal reports whether both timestamps denote the same point.
func (ts HybridTimestamp) Equal(o HybridTimestamp) bool { return ts.Compare(o) == 0 }

// Timestamp packs the high 48 bits of the logical time with the low 16 bits of
// the counter into one sortable key. A counter of 2^16 or more wraps.
func (ts HybridTimestamp) Timestamp() uint64 {
	return ts.LogicalTime&^counterMask | ts.LogicalCounter&counterMask
}

// ComparableInteger encodes seconds, fraction and the full counter as
// seconds<<96 | fraction<<64 | counter. Two timestamps have equal integers iff
// Compare returns 0, and integer order agrees with Compare.
func (ts HybridTimestamp) ComparableInteger() *big.Int {
	t := NTPTime(ts.LogicalTime)
	n := new(big.Int).SetUint64(uint64(t.Seconds()))
	n.Lsh(n, 32)
	n.Or(n, new(big.Int).SetUint64(uint64(t.Fraction())))
	n.Lsh(n, 64)
	return n.Or(n, new(big.Int).SetUint64(ts.LogicalCounter))
}

// Time returns the physical component as wall-clock time.
func (ts HybridTimestamp) Time() time.Time {
	return NTPTime(ts.LogicalTime).Time()
}

func (ts HybridTimestamp) String() string {
	return fmt.Sprintf("<HybridTimestamp logical=%s@%d packed=%d>",
		ts.Time().Format(time.RFC3339Nano), ts.LogicalCounter, ts.Timestamp())
}
