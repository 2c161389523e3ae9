package deepen_test

import (
	"bytes"
	"context"
	"crypto"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/nanoci/shalo/deepen"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/objstore"
	"github.com/nanoci/shalo/objtype"
	"github.com/nanoci/shalo/pktline"
	"github.com/stretchr/testify/require"
)

func commitContent(parents ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("tree deadbeefdeadbeefdeadbeefdeadbeefdeadbeef\n")
	for _, p := range parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	buf.WriteString("author a <a@b> 0 +0000\ncommitter a <a@b> 0 +0000\n\nmsg\n")
	return buf.Bytes()
}

func writeObjectHeader(buf *bytes.Buffer, typ objtype.Type, size int) {
	first := byte(typ) << 4
	rest := size >> 4
	if rest > 0 {
		first |= 0x80
	}
	first |= byte(size & 0x0f)
	buf.WriteByte(first)
	size = rest
	for size > 0 {
		b := byte(size & 0x7f)
		size >>= 7
		if size > 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
	}
}

func buildPack(t *testing.T, contents [][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("PACK")
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], 2)
	buf.Write(v[:])
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(contents)))
	buf.Write(n[:])
	for _, c := range contents {
		writeObjectHeader(&buf, objtype.Commit, len(c))
		w := zlib.NewWriter(&buf)
		_, err := w.Write(c)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	buf.Write(make([]byte, 20))
	return buf.Bytes()
}

func buildResponse(t *testing.T, shallowLines []string, pack []byte) []byte {
	t.Helper()
	frames := []pktline.Frame{}
	if len(shallowLines) > 0 {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte("shallow-info\n")})
		for _, l := range shallowLines {
			frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte(l + "\n")})
		}
	}
	frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte("packfile\n")})
	frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: append([]byte{pktline.ChannelPack}, pack...)})
	frames = append(frames, pktline.Frame{Kind: pktline.Flush})

	b, err := pktline.Format(frames...)
	require.NoError(t, err)
	return b
}

type roundFetcher struct {
	t         *testing.T
	responses [][]byte
	calls     int
}

func (f *roundFetcher) UploadPack(ctx context.Context, body []byte) ([]byte, error) {
	require.Less(f.t, f.calls, len(f.responses), "unexpected extra fetch round")
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

// buildChain constructs a 4-commit linear history c0 <- c1 <- c2 <- c3 and
// returns their oids oldest-first along with each commit's raw content.
func buildChain(t *testing.T) ([]hash.Hash, [][]byte) {
	t.Helper()
	var oids []hash.Hash
	var contents [][]byte
	var parent string
	for i := 0; i < 4; i++ {
		var parents []string
		if parent != "" {
			parents = []string{parent}
		}
		c := commitContent(parents...)
		oid, err := hash.Object(crypto.SHA1, objtype.Commit, c)
		require.NoError(t, err)
		oids = append(oids, oid)
		contents = append(contents, c)
		parent = oid.String()
	}
	return oids, contents
}

func TestDo_GeometricDeepenUntilTagCovered(t *testing.T) {
	oids, contents := buildChain(t) // c0, c1, c2, c3(tip)
	c0, c1, c2, c3 := oids[0], oids[1], oids[2], oids[3]

	responses := [][]byte{
		buildResponse(t, []string{"shallow " + c3.String()}, buildPack(t, [][]byte{contents[3]})),
		buildResponse(t, []string{"unshallow " + c3.String(), "shallow " + c2.String()}, buildPack(t, [][]byte{contents[2]})),
		buildResponse(t, []string{"unshallow " + c2.String()}, buildPack(t, [][]byte{contents[1], contents[0]})),
	}
	fetcher := &roundFetcher{t: t, responses: responses}
	store := objstore.New(crypto.SHA1, 20)

	result, err := deepen.Do(context.Background(), fetcher, store, deepen.Options{
		Tip:      c3,
		Tags:     []deepen.TagRef{{Name: "v1", Peeled: c1}},
		MaxDepth: 64,
	})
	require.NoError(t, err)
	require.Equal(t, c3, result.Tip)
	require.Equal(t, "v1", result.CoveringTag)
	require.Equal(t, 4, result.FinalDepth)
	require.Equal(t, 3, fetcher.calls)
	require.True(t, store.Covers(c0, c3))
}

func TestDo_NoTagsAdvertisedDoesSingleDepthOneFetch(t *testing.T) {
	oids, contents := buildChain(t)
	c3 := oids[3]

	responses := [][]byte{
		buildResponse(t, nil, buildPack(t, [][]byte{contents[3]})),
	}
	fetcher := &roundFetcher{t: t, responses: responses}
	store := objstore.New(crypto.SHA1, 20)

	result, err := deepen.Do(context.Background(), fetcher, store, deepen.Options{Tip: c3, MaxDepth: 64})
	require.NoError(t, err)
	require.Equal(t, 1, result.FinalDepth)
	require.Equal(t, "", result.CoveringTag)
	require.Equal(t, 1, fetcher.calls)
}

func TestDo_RootReachedWithoutCoverageReturnsNoTag(t *testing.T) {
	oids, contents := buildChain(t)
	c3 := oids[3]
	untaggedPeeled := oids[0] // a tag whose peeled commit is never reached because the chain stops before it via a no-new-commits round

	responses := [][]byte{
		buildResponse(t, []string{"shallow " + c3.String()}, buildPack(t, [][]byte{contents[3]})),
		buildResponse(t, nil, buildPack(t, nil)), // empty pack: no new commits, simulates hitting the repository root
	}
	fetcher := &roundFetcher{t: t, responses: responses}
	store := objstore.New(crypto.SHA1, 20)

	result, err := deepen.Do(context.Background(), fetcher, store, deepen.Options{
		Tip:      c3,
		Tags:     []deepen.TagRef{{Name: "v0", Peeled: untaggedPeeled}},
		MaxDepth: 64,
	})
	require.NoError(t, err)
	require.Equal(t, "", result.CoveringTag)
	require.Equal(t, 2, result.FinalDepth)
}

func TestDo_MaxDepthExceeded(t *testing.T) {
	oids, contents := buildChain(t)
	c3 := oids[3]

	// MaxDepth 0 is below the first round's depth of 1, so the loop gives
	// up before issuing any fetch (the queued response is never consumed)
	// and reports the uncovered tag as an error.
	responses := [][]byte{
		buildResponse(t, nil, buildPack(t, [][]byte{contents[3]})),
	}
	fetcher := &roundFetcher{t: t, responses: responses}
	store := objstore.New(crypto.SHA1, 20)

	_, err := deepen.Do(context.Background(), fetcher, store, deepen.Options{
		Tip:      c3,
		Tags:     []deepen.TagRef{{Name: "v1", Peeled: oids[0]}},
		MaxDepth: 0,
	})
	require.Error(t, err)
}
