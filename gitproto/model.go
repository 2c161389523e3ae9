// Package gitproto holds the wire-level data types shared by the
// ref-advertisement parser (C3) and the pack negotiator (C5): RefLine,
// Advertisement, and the fetch-response section types (Acknowledgements,
// ShallowInfo, WantedRef).
//
// Grounded on protocol/model.go, whose documentation comments (quoting the
// protocol-v2 ABNF for acknowledgments/shallow-info/ready) are kept nearly
// verbatim since they describe the wire format, not teacher-specific code.
// protocol/model.go left Acks/Shallow/WantedRefs unparsed (each field has a
// "TODO: parse this" comment) and Packfile typed `any // TODO` — this
// package gives each of them a structured type, since the pack negotiator
// (C5) in SPEC_FULL.md needs structured values, not raw strings. The
// negotiator fills Acknowledgements and ShallowInfo; it never fills
// WantedRef.
package gitproto

import (
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/refname"
)

// RefLine is one parsed line of a ls-refs response or a RepoRef in an
// Advertisement: "<oid> <refname> [symref-target:<r>] [peeled:<oid>]".
type RefLine struct {
	Oid          hash.Hash
	RefName      refname.Name
	SymrefTarget string // empty unless this line carried symref-target:
	Peeled       hash.Hash // nil unless this line carried peeled:
}

// Advertisement is the full set of refs a server disclosed in response to
// ls-refs, plus any symref mappings gathered along the way (most commonly
// HEAD -> refs/heads/<default>).
type Advertisement struct {
	Refs    []RefLine
	Symrefs map[string]string
}

// Branches returns the subset of Refs located under refs/heads/.
func (a Advertisement) Branches() []RefLine {
	return a.filterCategory("heads")
}

// Tags returns the subset of Refs located under refs/tags/.
func (a Advertisement) Tags() []RefLine {
	return a.filterCategory("tags")
}

func (a Advertisement) filterCategory(category string) []RefLine {
	var out []RefLine
	for _, r := range a.Refs {
		if r.RefName.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// FindBranch returns the RefLine for refs/heads/<name>, if advertised.
func (a Advertisement) FindBranch(name string) (RefLine, bool) {
	full := "refs/heads/" + name
	for _, r := range a.Refs {
		if r.RefName.Full == full {
			return r, true
		}
	}
	return RefLine{}, false
}

// Acknowledgements is the parsed "acknowledgments" section of a fetch
// response.
//
//	acknowledgments = PKT-LINE("acknowledgments" LF)
//	    (nak | *ack)
//	    (ready)
//	ready = PKT-LINE("ready" LF)
//	nak = PKT-LINE("NAK" LF)
//	ack = PKT-LINE("ACK" SP obj-id LF)
//
// Invariant: Nack == true implies Acks is empty.
type Acknowledgements struct {
	Nack  bool
	Ready bool
	Acks  []hash.Hash
}

// Shallowness distinguishes a newly-imposed shallow boundary from a
// boundary being lifted.
type Shallowness string

const (
	Shallow   Shallowness = "shallow"
	Unshallow Shallowness = "unshallow"
)

// ShallowInfo is one line of the fetch response's "shallow-info" section:
// the server informing the client of a shallow boundary or its removal.
type ShallowInfo struct {
	Shallowness Shallowness
	Object      hash.Hash
}

// WantedRef pairs a resolved object with the ref name the client asked for
// it under (only present when the request used want-ref).
type WantedRef struct {
	Object  hash.Hash
	RefName refname.Name
}
