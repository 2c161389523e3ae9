package packfile_test

import (
	"bytes"
	"crypto"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/objtype"
	"github.com/nanoci/shalo/packfile"
	"github.com/stretchr/testify/require"
)

// buildPack assembles a minimal v2 packfile containing the given
// non-delta objects, in order, with a zero trailing checksum (Decode does
// not verify it).
func buildPack(t *testing.T, objs []struct {
	typ  objtype.Type
	data []byte
}) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("PACK")
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], 2)
	buf.Write(v[:])
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(objs)))
	buf.Write(n[:])

	for _, o := range objs {
		writeObjectHeader(&buf, o.typ, len(o.data))
		w := zlib.NewWriter(&buf)
		_, err := w.Write(o.data)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	buf.Write(make([]byte, 20)) // trailing checksum, unchecked
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

func TestDecode_SingleCommit(t *testing.T) {
	content := []byte("tree deadbeefdeadbeefdeadbeefdeadbeefdeadbeef\nauthor a <a@b> 0 +0000\ncommitter a <a@b> 0 +0000\n\nmsg\n")
	pack := buildPack(t, []struct {
		typ  objtype.Type
		data []byte
	}{{objtype.Commit, content}})

	objs, err := packfile.Decode(bytes.NewReader(pack), crypto.SHA1, 20, nil)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	wantOid, err := hash.Object(crypto.SHA1, objtype.Commit, content)
	require.NoError(t, err)
	obj, ok := objs[wantOid.String()]
	require.True(t, ok)
	require.Equal(t, objtype.Commit, obj.Type)
	require.Equal(t, content, obj.Content)
}

func TestDecode_TruncatedPackReturnsTruncatedError(t *testing.T) {
	pack := buildPack(t, []struct {
		typ  objtype.Type
		data []byte
	}{{objtype.Commit, []byte("hello")}})

	truncated := pack[:len(pack)-25]
	_, err := packfile.Decode(bytes.NewReader(truncated), crypto.SHA1, 20, nil)
	require.Error(t, err)
}
