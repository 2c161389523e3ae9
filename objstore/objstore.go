// Package objstore implements the minimal object store (C6): given a
// decoded packfile, it extracts just enough from each commit object (its
// parent oids) to answer ancestry queries, and leaves trees/blobs opaque.
//
// Grounded on protocol/object/identity.go's line-oriented parsing idiom
// (find a delimiter, slice around it, validate what remains) applied here
// to a commit object's "parent <oid>\n" header lines instead of an
// identity line. The store itself — append-only, growing across
// deepening rounds — is new: nanogit has no concept of a local object
// store since it always addresses a remote directly over the wire.
package objstore

import (
	"bufio"
	"bytes"
	"crypto"
	"io"
	"sort"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/objtype"
	"github.com/nanoci/shalo/packfile"
)

// Store holds the commits known locally for one repository's clone
// session. It is append-only: Ingest merges a newly received pack's
// commits into the existing set, and accumulated state is never pruned.
type Store struct {
	algo     crypto.Hash
	hashSize int

	commits map[string][]hash.Hash // oid (hex) -> parent oids
	objects packfile.Baseline      // all resolved objects, for REF_DELTA bases spanning rounds

	shallow  map[string]bool // oids treated as having no further parents
	rawPacks [][]byte        // verbatim bytes of every pack ingested this session, oldest first
}

// New returns an empty Store for one repository. algo and hashSize must
// match the remote's announced object format.
func New(algo crypto.Hash, hashSize int) *Store {
	return &Store{
		algo:     algo,
		hashSize: hashSize,
		commits:  make(map[string][]hash.Hash),
		objects:  make(packfile.Baseline),
		shallow:  make(map[string]bool),
	}
}

// Ingest decodes pack (a raw packfile byte stream) and merges its commits
// into the store. Trees, blobs, and tags are resolved (so later deltas in
// the same or a future pack can reference them) but not further parsed.
func (s *Store) Ingest(pack io.Reader) error {
	fresh, err := packfile.Decode(pack, s.algo, s.hashSize, s.objects)
	if err != nil {
		return err
	}

	for oid, obj := range fresh {
		s.objects[oid] = obj
		if obj.Type == objtype.Commit {
			parents, err := parseParents(obj.Content)
			if err != nil {
				return &errs.ProtocolError{Context: "commit object " + oid, Err: err}
			}
			s.commits[oid] = parents
		}
	}
	return nil
}

// RecordRawPack retains pack's verbatim bytes alongside the already-decoded
// commits, so a caller that wants a working tree usable by an external git
// binary (per §9's object-store minimality note) can hand every ingested
// pack to a real pack-indexing tool without re-fetching. Callers pass the
// same bytes given to Ingest.
func (s *Store) RecordRawPack(pack []byte) {
	s.rawPacks = append(s.rawPacks, pack)
}

// RawPacks returns every pack recorded via RecordRawPack, oldest first.
func (s *Store) RawPacks() [][]byte {
	return s.rawPacks
}

// ShallowOids returns the oids currently recorded as shallow boundaries, in
// lexicographic order.
func (s *Store) ShallowOids() []hash.Hash {
	oids := make([]string, 0, len(s.shallow))
	for oid := range s.shallow {
		oids = append(oids, oid)
	}
	sort.Strings(oids)
	out := make([]hash.Hash, len(oids))
	for i, oid := range oids {
		out[i] = hash.MustFromHex(oid)
	}
	return out
}

// MarkShallow records oid as a shallow boundary: ancestry walks stop there
// even if the commit's parents happen to be known (e.g. from a later,
// deeper fetch that passed through the same commit before the boundary was
// lifted).
func (s *Store) MarkShallow(oid hash.Hash) {
	s.shallow[oid.String()] = true
}

// Unshallow removes a previously recorded shallow boundary.
func (s *Store) Unshallow(oid hash.Hash) {
	delete(s.shallow, oid.String())
}

// Has reports whether oid is a known commit.
func (s *Store) Has(oid hash.Hash) bool {
	_, ok := s.commits[oid.String()]
	return ok
}

// Parents returns the parent oids of oid, or nil if oid is unknown or has
// no parents.
func (s *Store) Parents(oid hash.Hash) []hash.Hash {
	return s.commits[oid.String()]
}

// Reachable returns the set of commit oids reachable from tip by walking
// parent links, stopping at shallow boundaries. The walk is bounded by the
// size of the known commit set and deduplicates via a visited-set, so it
// terminates even on merge-heavy histories.
func (s *Store) Reachable(tip hash.Hash) map[string]hash.Hash {
	visited := make(map[string]hash.Hash)
	queue := []hash.Hash{tip}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		key := cur.String()
		if _, seen := visited[key]; seen {
			continue
		}
		if !s.Has(cur) {
			continue
		}
		visited[key] = cur
		if s.shallow[key] {
			continue
		}
		queue = append(queue, s.Parents(cur)...)
	}

	return visited
}

// Covers reports whether tagOid is reachable from tipOid, respecting
// shallow boundaries.
func (s *Store) Covers(tagOid, tipOid hash.Hash) bool {
	_, ok := s.Reachable(tipOid)[tagOid.String()]
	return ok
}

// ReachableDistances returns, for every commit reachable from tip, its
// shortest ancestry distance (0 for tip itself, 1 for its parents, and so
// on). Used to break ties between multiple tags covering the same tip by
// preferring the one closest by ancestry distance.
func (s *Store) ReachableDistances(tip hash.Hash) map[string]int {
	distances := make(map[string]int)
	type item struct {
		oid   hash.Hash
		depth int
	}
	queue := []item{{tip, 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		key := cur.oid.String()
		if _, seen := distances[key]; seen {
			continue
		}
		if !s.Has(cur.oid) {
			continue
		}
		distances[key] = cur.depth
		if s.shallow[key] {
			continue
		}
		for _, p := range s.Parents(cur.oid) {
			queue = append(queue, item{p, cur.depth + 1})
		}
	}

	return distances
}

// SortedOids returns every known commit oid in lexicographic order, so
// callers get the same order across runs.
func (s *Store) SortedOids() []string {
	oids := make([]string, 0, len(s.commits))
	for oid := range s.commits {
		oids = append(oids, oid)
	}
	sort.Strings(oids)
	return oids
}

// Count returns the number of commits currently known. Used by the
// deepen loop to detect a round that introduced no new commits.
func (s *Store) Count() int {
	return len(s.commits)
}

// parseParents extracts "parent <oid>" header lines from a commit object's
// content, stopping at the first line that isn't a recognized header
// field (the blank line separating headers from the commit message, most
// commonly).
func parseParents(content []byte) ([]hash.Hash, error) {
	var parents []hash.Hash
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		if !bytes.HasPrefix([]byte(line), []byte("parent ")) {
			continue
		}
		oidHex := line[len("parent "):]
		oid, err := hash.FromHex(oidHex)
		if err != nil {
			return nil, err
		}
		parents = append(parents, oid)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return parents, nil
}
