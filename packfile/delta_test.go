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

// encodeOffsetDelta encodes back (the distance from a OFS_DELTA entry back
// to its base entry) using the pack format's offset-delta varint: every
// byte but the last carries the continuation bit, and each byte beyond the
// first folds in a +1 bias, per readOffsetDelta's decode side.
func encodeOffsetDelta(back int64) []byte {
	var stack []byte
	stack = append(stack, byte(back&0x7f))
	back >>= 7
	for back > 0 {
		back--
		stack = append(stack, 0x80|byte(back&0x7f))
		back >>= 7
	}
	// stack was built least-significant-first; the wire order is
	// most-significant-first.
	out := make([]byte, len(stack))
	for i, b := range stack {
		out[len(stack)-1-i] = b
	}
	return out
}

// encodeCopyInstruction builds a single-byte-offset, single-byte-size
// copy-from-base instruction: instruction byte with bit0 (offset byte 0)
// and bit4 (size byte 0) set, followed by the two literal bytes.
func encodeCopyInstruction(offset, size byte) []byte {
	return []byte{0x80 | 0x01 | 0x10, offset, size}
}

// encodeInsertInstruction builds an insert-literal instruction: the
// instruction byte directly gives the literal length (1-127), followed by
// the literal bytes themselves.
func encodeInsertInstruction(literal []byte) []byte {
	out := make([]byte, 0, 1+len(literal))
	out = append(out, byte(len(literal)))
	return append(out, literal...)
}

// buildDeltaStream assembles a delta instruction stream: varint base size,
// varint target size, then the caller's instructions in order.
func buildDeltaStream(baseSize, targetSize int, instructions ...[]byte) []byte {
	var buf bytes.Buffer
	var v [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(v[:], uint64(baseSize))
	buf.Write(v[:n])
	n = binary.PutUvarint(v[:], uint64(targetSize))
	buf.Write(v[:n])
	for _, ins := range instructions {
		buf.Write(ins)
	}
	return buf.Bytes()
}

func writeDeflated(t *testing.T, buf *bytes.Buffer, data []byte) {
	t.Helper()
	w := zlib.NewWriter(buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

// TestDecode_ResolvesOfsDeltaAndRefDeltaChains builds a three-object pack
// (one full commit, one OFS_DELTA entry against it, one REF_DELTA entry
// against it) by hand and asserts both delta entries reconstruct their
// intended content, exercising the copy/insert instruction decoder that
// buildPack's non-delta helper never touches.
func TestDecode_ResolvesOfsDeltaAndRefDeltaChains(t *testing.T) {
	baseContent := []byte("0123456789ABCDEFGHIJ")

	var buf bytes.Buffer
	buf.WriteString("PACK")
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], 2)
	buf.Write(v[:])
	binary.BigEndian.PutUint32(v[:], 3) // base + ofs-delta + ref-delta
	buf.Write(v[:])

	baseOffset := int64(buf.Len())
	writeObjectHeader(&buf, objtype.Commit, len(baseContent))
	writeDeflated(t, &buf, baseContent)

	// OFS_DELTA: copy base[5:15] ("56789ABCDE"), then insert "-XYZ-".
	ofsDeltaStream := buildDeltaStream(len(baseContent), 15,
		encodeCopyInstruction(5, 10),
		encodeInsertInstruction([]byte("-XYZ-")))
	ofsOffset := int64(buf.Len())
	writeObjectHeader(&buf, objtype.OfsDelta, len(ofsDeltaStream))
	buf.Write(encodeOffsetDelta(ofsOffset - baseOffset))
	writeDeflated(t, &buf, ofsDeltaStream)

	// REF_DELTA: copy base[15:20] ("FGHIJ"), then insert "-ZZZ".
	refDeltaStream := buildDeltaStream(len(baseContent), 9,
		encodeCopyInstruction(15, 5),
		encodeInsertInstruction([]byte("-ZZZ")))
	baseOid, err := hash.Object(crypto.SHA1, objtype.Commit, baseContent)
	require.NoError(t, err)
	writeObjectHeader(&buf, objtype.RefDelta, len(refDeltaStream))
	buf.Write(baseOid)
	writeDeflated(t, &buf, refDeltaStream)

	buf.Write(make([]byte, 20)) // trailing checksum, unchecked

	objs, err := packfile.Decode(bytes.NewReader(buf.Bytes()), crypto.SHA1, 20, nil)
	require.NoError(t, err)
	require.Len(t, objs, 3)

	wantOfs, err := hash.Object(crypto.SHA1, objtype.Commit, []byte("56789ABCDE-XYZ-"))
	require.NoError(t, err)
	ofsObj, ok := objs[wantOfs.String()]
	require.True(t, ok, "ofs-delta result not found among decoded objects")
	require.Equal(t, objtype.Commit, ofsObj.Type)
	require.Equal(t, []byte("56789ABCDE-XYZ-"), ofsObj.Content)

	wantRef, err := hash.Object(crypto.SHA1, objtype.Commit, []byte("FGHIJ-ZZZ"))
	require.NoError(t, err)
	refObj, ok := objs[wantRef.String()]
	require.True(t, ok, "ref-delta result not found among decoded objects")
	require.Equal(t, objtype.Commit, refObj.Type)
	require.Equal(t, []byte("FGHIJ-ZZZ"), refObj.Content)
}

// TestDecode_RefDeltaAgainstBaselineObject exercises the baseline map
// path: a REF_DELTA entry whose base was ingested in an earlier round (not
// present in this pack at all), as deepen's multi-round fetch produces.
func TestDecode_RefDeltaAgainstBaselineObject(t *testing.T) {
	baseContent := []byte("baseline-object-content")
	baseOid, err := hash.Object(crypto.SHA1, objtype.Commit, baseContent)
	require.NoError(t, err)
	baseline := packfile.Baseline{
		baseOid.String(): {Type: objtype.Commit, Content: baseContent},
	}

	deltaStream := buildDeltaStream(len(baseContent), len(baseContent)+5,
		encodeCopyInstruction(0, byte(len(baseContent))),
		encodeInsertInstruction([]byte("-more")))

	var buf bytes.Buffer
	buf.WriteString("PACK")
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], 2)
	buf.Write(v[:])
	binary.BigEndian.PutUint32(v[:], 1)
	buf.Write(v[:])

	writeObjectHeader(&buf, objtype.RefDelta, len(deltaStream))
	buf.Write(baseOid)
	writeDeflated(t, &buf, deltaStream)
	buf.Write(make([]byte, 20))

	objs, err := packfile.Decode(bytes.NewReader(buf.Bytes()), crypto.SHA1, 20, baseline)
	require.NoError(t, err)
	require.Len(t, objs, 1)

	wantContent := append(append([]byte{}, baseContent...), []byte("-more")...)
	wantOid, err := hash.Object(crypto.SHA1, objtype.Commit, wantContent)
	require.NoError(t, err)
	obj, ok := objs[wantOid.String()]
	require.True(t, ok)
	require.Equal(t, wantContent, obj.Content)
}

func TestDecode_RefDeltaMissingBaseIsProtocolError(t *testing.T) {
	missingOid := hash.MustFromHex("1111111111111111111111111111111111111111")
	deltaStream := buildDeltaStream(5, 5, encodeInsertInstruction([]byte("hello")))

	var buf bytes.Buffer
	buf.WriteString("PACK")
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], 2)
	buf.Write(v[:])
	binary.BigEndian.PutUint32(v[:], 1)
	buf.Write(v[:])

	writeObjectHeader(&buf, objtype.RefDelta, len(deltaStream))
	buf.Write(missingOid)
	writeDeflated(t, &buf, deltaStream)
	buf.Write(make([]byte, 20))

	_, err := packfile.Decode(bytes.NewReader(buf.Bytes()), crypto.SHA1, 20, nil)
	require.Error(t, err)
}
