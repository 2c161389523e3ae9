// Package driver implements the multi-repository orchestration (C8): for
// each repository URL it runs C3 (ref advertisement) through C7 (fetch
// deepen) in isolation and collects a FetchResult, aborting the whole run on
// the first worker failure.
//
// Grounded on the deleted legacy clone.go's per-repository loop shape
// (reconstructed fresh, since that file implemented full CRUD cloning, out
// of scope here) and golang.org/x/sync/errgroup, already an indirect
// dependency of the reference stack, for the optional bounded-parallelism
// mode described in spec §5.
package driver

import (
	"context"
	"crypto"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/nanoci/shalo/checkout"
	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/deepen"
	"github.com/nanoci/shalo/gitproto"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/log"
	"github.com/nanoci/shalo/negotiate"
	"github.com/nanoci/shalo/objstore"
	"github.com/nanoci/shalo/refadv"
	"github.com/nanoci/shalo/resolve"
	"github.com/nanoci/shalo/transport"
	"golang.org/x/sync/errgroup"
)

// RepoSpec is one repository to clone, as given on the command line.
type RepoSpec struct {
	// URL is absolute, or relative to Options.BaseURL.
	URL string
	// LocalPath is where the repository is materialized. When empty, Run
	// derives it from the URL's last path element, minus any ".git".
	LocalPath string
}

// FetchResult is the outcome for one repository, per spec §4.2's RepoRef
// lifecycle note ("FetchResult is emitted once per repository").
type FetchResult struct {
	URL            string
	LocalPath      string
	ResolvedBranch string
	Tip            hash.Hash
	CoveringTag    string
	FinalDepth     int
}

// Options configures one driver run, shared across every repository.
type Options struct {
	BaseURL         string
	Branch          string
	BranchFallbacks []resolve.Rule
	DefaultBranch   string
	BranchPrefixes  []string
	TagPrefixes     []string
	MaxDepth        int
	// Concurrency <= 1 runs strictly sequentially; > 1 spawns that many
	// errgroup workers, per spec §5.
	Concurrency int
	// Checkout, when true, materializes a real working tree at each
	// repository's LocalPath after the fetch-deepen loop finishes (clone
	// only; find-branch never sets this).
	Checkout bool
}

// Fetcher is the transport surface both refadv and negotiate need. A plain
// *transport.Transport satisfies it; declared here so tests can substitute a
// fake without issuing real HTTP.
type Fetcher interface {
	UploadPack(ctx context.Context, body []byte) ([]byte, error)
}

// TransportFactory builds a fresh, worker-private transport for one
// repository URL.
type TransportFactory func(ctx context.Context, repoURL string) (Fetcher, error)

// DefaultTransportFactory builds a real transport.Transport.
func DefaultTransportFactory(ctx context.Context, repoURL string) (Fetcher, error) {
	return transport.New(repoURL)
}

// Run executes C3 through C7 for every repo in repos, in input order, and
// returns their FetchResults in that same input order regardless of which
// worker finished first. The first repository to fail aborts the run: all
// in-flight workers are cancelled and the aggregate error is returned.
func Run(ctx context.Context, repos []RepoSpec, opts Options, newTransport TransportFactory) ([]FetchResult, error) {
	if newTransport == nil {
		newTransport = DefaultTransportFactory
	}

	resolved, err := resolveURLs(repos, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	results := make([]FetchResult, len(resolved))

	if opts.Concurrency <= 1 {
		for i, r := range resolved {
			res, err := cloneOne(ctx, r, opts, newTransport)
			if err != nil {
				return nil, fmt.Errorf("repository %s: %w", r.URL, err)
			}
			results[i] = res
		}
		return results, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.Concurrency)
	for i, r := range resolved {
		i, r := i, r
		group.Go(func() error {
			res, err := cloneOne(groupCtx, r, opts, newTransport)
			if err != nil {
				return fmt.Errorf("repository %s: %w", r.URL, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func resolveURLs(repos []RepoSpec, base string) ([]RepoSpec, error) {
	out := make([]RepoSpec, len(repos))
	for i, r := range repos {
		resolvedURL := r.URL
		if base != "" && !strings.Contains(r.URL, "://") {
			u, err := url.JoinPath(base, r.URL)
			if err != nil {
				return nil, fmt.Errorf("joining base URL %q with %q: %w", base, r.URL, err)
			}
			resolvedURL = u
		}
		localPath := r.LocalPath
		if localPath == "" {
			localPath = repoNameFromURL(resolvedURL)
		}
		out[i] = RepoSpec{URL: resolvedURL, LocalPath: localPath}
	}
	return out, nil
}

func repoNameFromURL(repoURL string) string {
	trimmed := strings.TrimSuffix(repoURL, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

// cloneOne runs C3 -> C4 -> C5-C7 for a single repository, owning a private
// Transport and object store for the duration.
func cloneOne(ctx context.Context, repo RepoSpec, opts Options, newTransport TransportFactory) (FetchResult, error) {
	logger := log.FromContext(ctx)

	t, err := newTransport(ctx, repo.URL)
	if err != nil {
		return FetchResult{}, err
	}

	adv, err := refadv.List(ctx, t, refadv.Options{
		RepoURL:        repo.URL,
		BranchPrefixes: opts.BranchPrefixes,
		TagPrefixes:    opts.TagPrefixes,
	})
	if err != nil {
		return FetchResult{}, err
	}

	branch, err := resolve.Resolve(adv, opts.Branch, opts.BranchFallbacks, opts.DefaultBranch)
	if err != nil {
		return FetchResult{}, err
	}

	ref, ok := adv.FindBranch(branch)
	if !ok {
		return FetchResult{}, &errs.WantNotAdvertisedError{Oid: branch}
	}

	store := objstore.New(crypto.SHA1, 20)
	result, err := deepen.Do(ctx, t, store, deepen.Options{
		Tip:      ref.Oid,
		Tags:     tagRefs(adv),
		MaxDepth: opts.MaxDepth,
	})
	if err != nil {
		return FetchResult{}, err
	}

	logger.Info("repository fetched", "repo", repo.URL, "branch", branch, "depth", result.FinalDepth, "tag", result.CoveringTag)

	if opts.Checkout {
		branchRef := "refs/heads/" + branch
		if err := checkout.Materialize(ctx, repo.LocalPath, branchRef, result.Tip, store.RawPacks(), store.ShallowOids()); err != nil {
			return FetchResult{}, err
		}
	}

	return FetchResult{
		URL:            repo.URL,
		LocalPath:      repo.LocalPath,
		ResolvedBranch: branch,
		Tip:            result.Tip,
		CoveringTag:    result.CoveringTag,
		FinalDepth:     result.FinalDepth,
	}, nil
}

func tagRefs(adv gitproto.Advertisement) []deepen.TagRef {
	tags := adv.Tags()
	out := make([]deepen.TagRef, 0, len(tags))
	for _, t := range tags {
		peeled := t.Peeled
		if peeled.IsZero() {
			peeled = t.Oid
		}
		out = append(out, deepen.TagRef{Name: t.RefName.Location, Peeled: peeled})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var _ negotiate.Fetcher = (*transport.Transport)(nil)
