// ABOUTME: Structural fingerprints of resolved types
// ABOUTME: xxhash64 over kind tags, nested fingerprints, variant and field names

package layout

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies the structural shape of a type. Two types with the
// same shape have equal fingerprints regardless of their declared names.
type Fingerprint [8]byte

// Equal reports whether both fingerprints describe the same shape.
func (f Fingerprint) Equal(o Fingerprint) bool { return f == o }

// Hex returns the fingerprint as 16 lowercase hex digits.
func (f Fingerprint) Hex() string { return hex.EncodeToString(f[:]) }

func (f Fingerprint) String() string { return f.Hex() }

// fingerprint hashes t given the already resolved nested handlers.
func fingerprint(t Type, nested []Handler) Fingerprint {
	d := xxhash.New()
	var scratch [8]byte

	putUint := func(v uint64) {
		binary.BigEndian.PutUint64(scratch[:], v)
		_, _ = d.Write(scratch[:])
	}
	putName := func(s string) {
		putUint(uint64(len(s)))
		_, _ = d.WriteString(s)
	}

	_, _ = d.Write([]byte{byte(t.kind)})
	switch t.kind {
	case KindEnum:
		putUint(uint64(len(t.variants)))
		for _, v := range t.variants {
			putName(v)
		}
	case KindObject:
		putUint(uint64(len(t.fields)))
		for i, f := range t.fields {
			putName(f.Name)
			fp := nested[i].Fingerprint()
			_, _ = d.Write(fp[:])
		}
	default:
		if t.kind == KindArray {
			putUint(uint64(t.length))
		}
		for _, n := range nested {
			fp := n.Fingerprint()
			_, _ = d.Write(fp[:])
		}
	}

	var out Fingerprint
	binary.BigEndian.PutUint64(out[:], d.Sum64())
	return out
}
