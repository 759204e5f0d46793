package item

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Fingerprint is the canonical identity of a stack: the coarse fields plus
// a SHA-256 digest over the metadata that clients can rewrite (display name,
// lore, enchantments, unbreakable flag, custom model data). Two fingerprints
// are equal iff every field is equal. The zero value is the empty sentinel
// for an absent/air slot.
//
// Fingerprints are computed fresh on every comparison so they always reflect
// current item state; they are never cached across ticks or mutated.
type Fingerprint struct {
	Material   string
	Amount     int
	Durability int
	MetaHash   string
}

// NewFingerprint returns the fingerprint of s. Air maps to the empty
// sentinel. It never fails: SHA-256 is part of the Go runtime, so the
// "missing hash provider" failure mode of other platforms cannot occur here.
func NewFingerprint(s Stack) Fingerprint {
	if s.IsAir() {
		return Fingerprint{}
	}
	return Fingerprint{
		Material:   s.Material,
		Amount:     s.Amount,
		Durability: s.Durability,
		MetaHash:   metaHash(s),
	}
}

func (f Fingerprint) IsEmpty() bool {
	return f == Fingerprint{}
}

// Matches reports whether s is field-for-field identical to the stack this
// fingerprint was taken from, including the metadata digest. This is the
// check that defeats NBT injection: a stack whose lore or enchantments were
// rewritten client-side hashes differently even when material and amount
// still look right.
func (f Fingerprint) Matches(s Stack) bool {
	return f == NewFingerprint(s)
}

// metaHash digests the mutable metadata into hex. Fields are written with
// length prefixes and enchantments in sorted key order so the serialization
// is canonical.
func metaHash(s Stack) string {
	h := sha256.New()
	var tmp [8]byte

	writeString := func(v string) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(len(v)))
		h.Write(tmp[:])
		h.Write([]byte(v))
	}
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
		h.Write(tmp[:])
	}

	writeString(s.Name)
	writeInt(len(s.Lore))
	for _, line := range s.Lore {
		writeString(line)
	}

	keys := make([]string, 0, len(s.Enchantments))
	for k := range s.Enchantments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeInt(len(keys))
	for _, k := range keys {
		writeString(k)
		writeInt(s.Enchantments[k])
	}

	if s.Unbreakable {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	writeInt(s.CustomModelData)

	return hex.EncodeToString(h.Sum(nil))
}
