// Package deepen implements the fetch-deepen loop (C7): starting from depth
// 1 and doubling on each round, it keeps asking the negotiator for a deeper
// fetch of a resolved branch tip until a locally-known tag becomes
// reachable, the repository root is reached, or a configured maximum depth
// is exceeded.
//
// Structurally mirrors retry.ExponentialBackoffRetrier's attempt-indexed
// schedule computation (retry/retrier.go): there, each attempt computes a
// growing delay and the loop body sleeps; here, each round computes a
// growing depth and the loop body fetches. No code is shared since the two
// schedules serve different units (a duration vs. a commit count) and the
// termination conditions differ (attempt cap vs. tag coverage).
package deepen

import (
	"bytes"
	"context"
	"sort"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/gitproto"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/log"
	"github.com/nanoci/shalo/negotiate"
	"github.com/nanoci/shalo/objstore"
)

// TagRef pairs an advertised tag's name with its peeled (commit) oid.
type TagRef struct {
	Name   string
	Peeled hash.Hash
}

// Result is the outcome of running the loop to completion.
type Result struct {
	Tip         hash.Hash
	CoveringTag string // empty if no tag was ever covered
	FinalDepth  int
}

// Options configures one repository's deepen loop.
type Options struct {
	Tip      hash.Hash
	Tags     []TagRef // G, the set of tagged commits to watch for
	MaxDepth int
}

// Do runs the loop against store, issuing fetch rounds through negotiate.Do
// via fetcher. store accumulates commits across rounds (it is the same
// *objstore.Store the caller will keep using after the loop returns).
func Do(ctx context.Context, fetcher negotiate.Fetcher, store *objstore.Store, opts Options) (Result, error) {
	logger := log.FromContext(ctx)

	if len(opts.Tags) == 0 {
		if err := fetchRound(ctx, fetcher, store, opts.Tip, 1, nil); err != nil {
			return Result{}, err
		}
		return Result{Tip: opts.Tip, FinalDepth: 1}, nil
	}

	depth := 1
	var shallowBoundaries []hash.Hash
	lastCount := store.Count()

	for {
		if depth > opts.MaxDepth {
			return Result{}, &errs.MaxDepthExceededError{MaxDepth: opts.MaxDepth, Fatal: true}
		}

		if err := fetchRound(ctx, fetcher, store, opts.Tip, depth, shallowBoundaries); err != nil {
			return Result{}, err
		}

		reachable := store.Reachable(opts.Tip)
		if tag, ok := bestCoveringTag(store, opts.Tip, opts.Tags, reachable); ok {
			logger.Debug("tag coverage reached", "tag", tag, "depth", depth)
			return Result{Tip: opts.Tip, CoveringTag: tag, FinalDepth: depth}, nil
		}

		count := store.Count()
		if count == lastCount {
			logger.Debug("repository root reached without tag coverage", "depth", depth)
			return Result{Tip: opts.Tip, FinalDepth: depth}, nil
		}
		lastCount = count

		shallowBoundaries = shallowBoundariesFromReachable(store, reachable)
		depth *= 2
	}
}

func fetchRound(ctx context.Context, fetcher negotiate.Fetcher, store *objstore.Store, tip hash.Hash, depth int, shallow []hash.Hash) error {
	resp, err := negotiate.Do(ctx, fetcher, negotiate.Request{
		Want:       []hash.Hash{tip},
		Shallow:    shallow,
		Deepen:     depth,
		IncludeTag: true,
	})
	if err != nil {
		return err
	}

	if err := store.Ingest(bytes.NewReader(resp.Pack)); err != nil {
		return err
	}
	store.RecordRawPack(resp.Pack)

	for _, si := range resp.Shallow {
		switch si.Shallowness {
		case gitproto.Shallow:
			store.MarkShallow(si.Object)
		case gitproto.Unshallow:
			store.Unshallow(si.Object)
		}
	}

	return nil
}

// bestCoveringTag returns the name of the tag in tags whose peeled commit is
// reachable, preferring the one closest to tip by ancestry distance and
// breaking remaining ties lexicographically by tag name.
func bestCoveringTag(store *objstore.Store, tip hash.Hash, tags []TagRef, reachable map[string]hash.Hash) (string, bool) {
	type candidate struct {
		name     string
		distance int
	}
	var candidates []candidate

	distances := store.ReachableDistances(tip)
	for _, tag := range tags {
		key := tag.Peeled.String()
		if _, ok := reachable[key]; !ok {
			continue
		}
		candidates = append(candidates, candidate{name: tag.Name, distance: distances[key]})
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates[0].name, true
}

// shallowBoundariesFromReachable re-derives the current shallow frontier: the
// reachable commits whose parents are not themselves known, which is what
// the next round's "shallow <oid>" re-announcement lines must list.
func shallowBoundariesFromReachable(store *objstore.Store, reachable map[string]hash.Hash) []hash.Hash {
	var boundaries []hash.Hash
	for _, oid := range reachable {
		parents := store.Parents(oid)
		for _, p := range parents {
			if _, known := reachable[p.String()]; !known {
				boundaries = append(boundaries, oid)
				break
			}
		}
		if len(parents) == 0 {
			boundaries = append(boundaries, oid)
		}
	}
	return boundaries
}
