// Package checkout shells out to an external git binary to materialize a
// working tree from the commits a clone run has ingested. Checkout is
// explicitly an external collaborator, not part of the core (§9): the
// repository directory it produces only needs to be usable by a real git
// binary, not produced by one end to end.
//
// Grounded on the buildkite-agent git-job.go idiom of invoking git through
// exec.CommandContext and folding CombinedOutput into the returned error so
// the failing git invocation's own diagnostic text survives.
package checkout

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/hash"
)

// CheckEmptyTarget refuses to operate on a non-empty directory, per §5's
// "workers must refuse to operate on a non-empty target unless explicitly
// authorized". dir not existing at all is fine; Materialize creates it.
func CheckEmptyTarget(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checkout: reading target directory %q: %w", dir, err)
	}
	if len(entries) > 0 {
		return &errs.TargetConflictError{Path: dir}
	}
	return nil
}

// Materialize turns the raw packs and shallow boundary a clone run
// accumulated into a directory a real git binary can check out from: it
// initializes a git repository, indexes every pack, writes the shallow
// file, points branchRef at tip, and detaches the working tree there.
//
// Per §9's object-store minimality note, the core itself never produces a
// full object database; Materialize is the one place raw pack bytes meet a
// real git binary, and it is only ever invoked after the core has already
// finished resolving the branch and deepening to tag coverage.
func Materialize(ctx context.Context, dir string, branchRef string, tip hash.Hash, rawPacks [][]byte, shallowOids []hash.Hash) error {
	if err := CheckEmptyTarget(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkout: creating target directory %q: %w", dir, err)
	}

	if err := initRepo(ctx, dir); err != nil {
		return err
	}
	for _, pack := range rawPacks {
		if err := indexPack(ctx, dir, pack); err != nil {
			return err
		}
	}
	if err := writeShallowFile(dir, shallowOids); err != nil {
		return err
	}
	if err := updateRef(ctx, dir, branchRef, tip); err != nil {
		return err
	}
	return Run(ctx, dir, tip)
}

// Run detaches repoDir's working tree at commit, equivalent to
// `git -C <repoDir> checkout --detach <commit>`.
func Run(ctx context.Context, repoDir string, commit hash.Hash) error {
	return runGit(ctx, repoDir, nil, "checkout", "--detach", commit.String())
}

func initRepo(ctx context.Context, repoDir string) error {
	return runGit(ctx, repoDir, nil, "init")
}

// indexPack hands one raw pack to `git index-pack --stdin`, which writes
// the pack into .git/objects/pack and generates its matching .idx.
func indexPack(ctx context.Context, repoDir string, pack []byte) error {
	return runGit(ctx, repoDir, bytes.NewReader(pack), "index-pack", "--stdin")
}

func updateRef(ctx context.Context, repoDir, ref string, oid hash.Hash) error {
	return runGit(ctx, repoDir, nil, "update-ref", ref, oid.String())
}

// writeShallowFile writes .git/shallow directly: it is a plain oid-per-line
// list, the same format git itself maintains, so no subprocess is needed.
func writeShallowFile(repoDir string, oids []hash.Hash) error {
	if len(oids) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, oid := range oids {
		buf.WriteString(oid.String())
		buf.WriteByte('\n')
	}
	gitDir := repoDir + "/.git"
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		return fmt.Errorf("checkout: creating %q: %w", gitDir, err)
	}
	path := gitDir + "/shallow"
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("checkout: writing shallow file %q: %w", path, err)
	}
	return nil
}

func runGit(ctx context.Context, repoDir string, stdin io.Reader, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", repoDir}, args...)...)
	cmd.Stdin = stdin
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("checkout: git %v: %w: %s", args, err, out)
	}
	return nil
}
