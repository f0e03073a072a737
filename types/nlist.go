package types

import (
	"encoding/binary"
	"strings"
)

const (
	Nlist32Size = 12
	Nlist64Size = 16
)

// An Nlist32 is a 32-bit symbol table entry.
type Nlist32 struct {
	Name  uint32
	Type  NLType
	Sect  uint8
	Desc  NLDesc
	Value uint32
}

// Put32 encodes n into b and returns Nlist32Size.
func (n *Nlist32) Put32(b []byte, o binary.ByteOrder) uint32 {
	o.PutUint32(b, n.Name)
	b[4], b[5] = byte(n.Type), n.Sect
	o.PutUint16(b[6:], uint16(n.Desc))
	o.PutUint32(b[8:], n.Value)
	return Nlist32Size
}

// An Nlist64 is a 64-bit symbol table entry.
type Nlist64 struct {
	Name  uint32
	Type  NLType
	Sect  uint8
	Desc  NLDesc
	Value uint64
}

// Put64 encodes n into b and returns Nlist64Size.
func (n *Nlist64) Put64(b []byte, o binary.ByteOrder) uint32 {
	o.PutUint32(b, n.Name)
	b[4], b[5] = byte(n.Type), n.Sect
	o.PutUint16(b[6:], uint16(n.Desc))
	o.PutUint64(b[8:], n.Value)
	return Nlist64Size
}

// NLType is the n_type byte: stab bits, the private-external bit, a 3-bit
// type and the external bit.
type NLType uint8

const (
	N_STAB NLType = 0xe0
	N_PEXT NLType = 0x10
	N_TYPE NLType = 0x0e
	N_EXT  NLType = 0x01
)

// Values of the N_TYPE bits.
const (
	N_UNDF NLType = 0x0
	N_ABS  NLType = 0x2
	N_INDR NLType = 0xa
	N_PBUD NLType = 0xc
	N_SECT NLType = 0xe
)

func (t NLType) IsDebugSym() bool           { return t&N_STAB != 0 }
func (t NLType) IsPrivateExternalSym() bool { return t&N_PEXT != 0 }
func (t NLType) IsExternalSym() bool        { return t&N_EXT != 0 }
func (t NLType) IsDefinedInSection() bool   { return t&N_TYPE == N_SECT }

var nlTypeNames = map[NLType]string{
	N_UNDF: "undefined",
	N_ABS:  "absolute",
	N_INDR: "indirect",
	N_PBUD: "prebound",
	N_SECT: "section",
}

func (t NLType) String() string {
	if t.IsDebugSym() {
		return "stab"
	}
	parts := []string{nlTypeNames[t&N_TYPE]}
	if t.IsPrivateExternalSym() {
		parts = append(parts, "private_external")
	}
	if t.IsExternalSym() {
		parts = append(parts, "external")
	}
	return strings.Join(parts, "|")
}

// NLDesc is the n_desc field of a symbol table entry.
type NLDesc uint16

const (
	N_WEAK_REF NLDesc = 0x0040
	N_WEAK_DEF NLDesc = 0x0080
)

func (d NLDesc) WeakDefinition() bool { return d&N_WEAK_DEF != 0 }
