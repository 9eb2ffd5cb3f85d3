// ABOUTME: NTP-shaped 64-bit time values (32-bit seconds, 32-bit fraction)
// ABOUTME: Field-wise comparison and conversion to and from time.Time

package hlc

import "time"

const (
	// seconds between 1900-01-01 (NTP era 0) and 1970-01-01
	unixToNTP = 2208988800
	// era 1 starts when the 32-bit seconds field wraps (2036-02-07T06:28:16Z)
	era1Offset = 1 << 32
	fracScale  = 1 << 32
)

// NTPTime is a 64-bit NTP timestamp: seconds since 1900 in the high 32 bits and
// a binary fraction of a second in the low 32 bits.
type NTPTime uint64

// Seconds returns the seconds field.
func (n NTPTime) Seconds() uint32 {
	return uint32(n >> 32)
}

// Fraction returns the fractional-second field.
func (n NTPTime) Fraction() uint32 {
	return uint32(n)
}

// FromTime converts a wall-clock time into NTP form. Times at or after
// 2036-02-07 wrap into era 1, where the seconds MSB is clear.
func FromTime(t time.Time) NTPTime {
	secs := uint32(t.Unix() + unixToNTP)
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return NTPTime(uint64(secs)<<32 | frac)
}

// Time converts back to a wall-clock time in UTC. A seconds field with the MSB
// clear is read as era 1.
func (n NTPTime) Time() time.Time {
	secs := int64(n.Seconds())
	if secs&0x80000000 == 0 {
		secs += era1Offset
	}
	nanos := (uint64(n.Fraction())*uint64(time.Second) + fracScale/2) >> 32
	return time.Unix(secs-unixToNTP, int64(nanos)).UTC()
}

// Add advances the timestamp by a non-negative duration. Negative durations
// are ignored.
func (n NTPTime) Add(d time.Duration) NTPTime {
	if d <= 0 {
		return n
	}
	secs := uint64(d / time.Second)
	nanos := uint64(d % time.Second)
	return n + NTPTime(secs<<32+(nanos<<32)/uint64(time.Second))
}

// CompareNTP compares two NTP values by their seconds field and then their
// fraction field. It returns -1, 0 or 1.
func CompareNTP(a, b uint64) int {
	ta, tb := NTPTime(a), NTPTime(b)
	if ta.Seconds() != tb.Seconds() {
		if ta.Seconds() < tb.Seconds() {
			return -1
		}
		return 1
	}
	switch {
	case ta.Fraction() < tb.Fraction():
		return -1
	case ta.Fraction() > tb.Fraction():
		return 1
	}
	return 0
}
