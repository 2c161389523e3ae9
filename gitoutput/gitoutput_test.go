package gitoutput_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nanoci/shalo/driver"
	"github.com/nanoci/shalo/gitoutput"
	"github.com/nanoci/shalo/hash"
	"github.com/stretchr/testify/require"
)

func oid(t *testing.T, hex string) hash.Hash {
	t.Helper()
	h, err := hash.FromHex(hex)
	require.NoError(t, err)
	return h
}

func TestWriteTagFile_OneLinePerRepoInInputOrder(t *testing.T) {
	results := []driver.FetchResult{
		{LocalPath: "repo-a", CoveringTag: "v1.2", Tip: oid(t, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		{LocalPath: "repo-b", CoveringTag: "", Tip: oid(t, "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tags.txt")
	require.NoError(t, gitoutput.WriteTagFile(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"repo-a v1.2 aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa\n"+
			"repo-b - bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb\n",
		string(data))
}

func TestWriteTagFile_FallsBackToURLWhenLocalPathEmpty(t *testing.T) {
	results := []driver.FetchResult{
		{URL: "https://example.com/r.git", Tip: oid(t, "cccccccccccccccccccccccccccccccccccccccc")},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "tags.txt")
	require.NoError(t, gitoutput.WriteTagFile(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "https://example.com/r.git - ")
}

func TestWriteManifestFile_StableFieldOrder(t *testing.T) {
	results := []driver.FetchResult{
		{
			URL: "https://example.com/r.git", LocalPath: "r",
			ResolvedBranch: "main", Tip: oid(t, "dddddddddddddddddddddddddddddddddddddddd"),
			CoveringTag: "v2", FinalDepth: 8,
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, gitoutput.WriteManifestFile(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"https://example.com/r.git\tr\tmain\tdddddddddddddddddddddddddddddddddddddddd\tv2\t8\n",
		string(data))
}

func TestWriteManifestFile_EmptyCoveringTagAndBranchBecomePlaceholder(t *testing.T) {
	results := []driver.FetchResult{
		{URL: "https://example.com/r.git", LocalPath: "r", Tip: oid(t, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"), FinalDepth: 1},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.txt")
	require.NoError(t, gitoutput.WriteManifestFile(path, results))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"https://example.com/r.git\tr\t-\teeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee\t-\t1\n",
		string(data))
}
