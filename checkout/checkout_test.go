package checkout_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/nanoci/shalo/checkout"
	"github.com/nanoci/shalo/hash"
	"github.com/stretchr/testify/require"
)

// stubGit writes a fake "git" executable onto PATH that records its
// arguments to recordPath instead of touching a real repository, and
// returns an exit code controlled by exitCode.
func stubGit(t *testing.T, recordPath string, exitCode int) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub relies on a POSIX shell shebang")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\necho \"$@\" > " + recordPath + "\nexit " + itoa(exitCode) + "\n"
	path := filepath.Join(dir, "git")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func oid(t *testing.T, hex string) hash.Hash {
	t.Helper()
	h, err := hash.FromHex(hex)
	require.NoError(t, err)
	return h
}

func TestRun_InvokesGitCheckoutDetachWithOid(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "record.txt")
	stubGit(t, record, 0)

	commit := oid(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	err := checkout.Run(context.Background(), "/some/repo", commit)
	require.NoError(t, err)

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	require.Equal(t, "-C /some/repo checkout --detach aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n", string(data))
}

func TestRun_PropagatesGitFailure(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "record.txt")
	stubGit(t, record, 1)

	commit := oid(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	err := checkout.Run(context.Background(), "/some/repo", commit)
	require.Error(t, err)
}

// stubGitAppend is like stubGit but appends each invocation's args as its
// own line, so a sequence of calls (as Materialize makes) can be checked.
func stubGitAppend(t *testing.T, recordPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub relies on a POSIX shell shebang")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\necho \"$@\" >> " + recordPath + "\nexit 0\n"
	path := filepath.Join(dir, "git")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestMaterialize_RunsInitIndexUpdateRefAndCheckout(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record.txt")
	stubGitAppend(t, record)

	target := filepath.Join(t.TempDir(), "repo")
	tip := oid(t, "cccccccccccccccccccccccccccccccccccccccc")
	shallow := []hash.Hash{oid(t, "dddddddddddddddddddddddddddddddddddddddd")}

	err := checkout.Materialize(context.Background(), target, "refs/heads/main", tip, [][]byte{[]byte("pack-one")}, shallow)
	require.NoError(t, err)

	data, err := os.ReadFile(record)
	require.NoError(t, err)
	lines := string(data)
	require.Contains(t, lines, "-C "+target+" init\n")
	require.Contains(t, lines, "-C "+target+" index-pack --stdin\n")
	require.Contains(t, lines, "-C "+target+" update-ref refs/heads/main cccccccccccccccccccccccccccccccccccccccc\n")
	require.Contains(t, lines, "-C "+target+" checkout --detach cccccccccccccccccccccccccccccccccccccccc\n")

	shallowFile, err := os.ReadFile(filepath.Join(target, ".git", "shallow"))
	require.NoError(t, err)
	require.Equal(t, "dddddddddddddddddddddddddddddddddddddddd\n", string(shallowFile))
}

func TestCheckEmptyTarget_AllowsNonexistentDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet-created")
	require.NoError(t, checkout.CheckEmptyTarget(dir))
}

func TestCheckEmptyTarget_RejectsNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	err := checkout.CheckEmptyTarget(dir)
	require.Error(t, err)
}
