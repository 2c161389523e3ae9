// Package objtype defines the object types a git packfile can carry.
package objtype

import "fmt"

// Type is a git object type. Values match the 3-bit type field packfile
// object headers use.
type Type uint8

const (
	Invalid  Type = 0 // 0b000
	Commit   Type = 1 // 0b001
	Tree     Type = 2 // 0b010
	Blob     Type = 3 // 0b011
	Tag      Type = 4 // 0b100
	reserved Type = 5 // 0b101
	OfsDelta Type = 6 // 0b110
	RefDelta Type = 7 // 0b111
)

func (t Type) String() string {
	switch t {
	case Invalid:
		return "OBJ_INVALID"
	case Commit:
		return "OBJ_COMMIT"
	case Tree:
		return "OBJ_TREE"
	case Blob:
		return "OBJ_BLOB"
	case Tag:
		return "OBJ_TAG"
	case reserved:
		return "OBJ_RESERVED"
	case OfsDelta:
		return "OBJ_OFS_DELTA"
	case RefDelta:
		return "OBJ_REF_DELTA"
	default:
		return fmt.Sprintf("objtype.Type(%d)", uint8(t))
	}
}

// Bytes returns the header token git uses for loose/pack object headers,
// e.g. "commit" for Commit.
func (t Type) Bytes() []byte {
	switch t {
	case Commit:
		return []byte("commit")
	case Tree:
		return []byte("tree")
	case Blob:
		return []byte("blob")
	case Tag:
		return []byte("tag")
	default:
		return []byte("unknown")
	}
}

// IsValid reports whether t is a non-reserved, non-zero type code.
func (t Type) IsValid() bool {
	switch t {
	case Commit, Tree, Blob, Tag, OfsDelta, RefDelta:
		return true
	default:
		return false
	}
}

// IsDelta reports whether t is one of the two delta encodings.
func (t Type) IsDelta() bool {
	return t == OfsDelta || t == RefDelta
}
