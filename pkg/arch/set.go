package arch

import (
	"math/bits"
	"strings"

	"github.com/goccy/go-json"
)

// An ArchSet is a set of architectures keyed by Arch.Index.
type ArchSet uint64

// Of returns the set holding archs.
func Of(archs ...Arch) ArchSet {
	var s ArchSet
	for _, a := range archs {
		s = s.Set(a.Index)
	}
	return s
}

func (s ArchSet) Has(i uint8) bool { return i < 64 && s&(1<<i) != 0 }

func (s ArchSet) Set(i uint8) ArchSet {
	if i >= 64 {
		return s
	}
	return s | 1<<i
}

func (s ArchSet) Union(o ArchSet) ArchSet { return s | o }
func (s ArchSet) Empty() bool             { return s == 0 }
func (s ArchSet) Count() int              { return bits.OnesCount64(uint64(s)) }

// Indices returns the set bits in ascending order.
func (s ArchSet) Indices() []uint8 {
	var idx []uint8
	for v := uint64(s); v != 0; v &= v - 1 {
		idx = append(idx, uint8(bits.TrailingZeros64(v)))
	}
	return idx
}

// Archs returns the members of the set ordered by index.
func (s ArchSet) Archs() []Arch {
	var archs []Arch
	for _, i := range s.Indices() {
		if a, ok := ByIndex(i); ok {
			archs = append(archs, a)
		}
	}
	return archs
}

func (s ArchSet) Names() []string {
	var names []string
	for _, a := range s.Archs() {
		names = append(names, a.Name)
	}
	return names
}

func (s ArchSet) String() string {
	return strings.Join(s.Names(), ", ")
}

func (s ArchSet) MarshalJSON() ([]byte, error) {
	names := s.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

func (s *ArchSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var set ArchSet
	for _, n := range names {
		a, ok := Lookup(n)
		if !ok {
			return ErrUnrecognizedCPU
		}
		set = set.Set(a.Index)
	}
	*s = set
	return nil
}
