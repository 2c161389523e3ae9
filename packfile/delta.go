package packfile

import (
	"encoding/binary"
	"fmt"
)

// applyDelta reconstructs an object's content by replaying delta's
// instruction stream against base.
//
// Grounded on gg-scm.io/pkg/git/packfile/delta.go's DeltaReader: a header
// of two varints (base size, checked against len(base); target size,
// checked against the length of the rebuilt object) followed by a stream of instructions, each
// either a copy-from-base (high bit set, offset/size encoded in the
// low 7 bits as a presence bitmask for up to 4+3 following bytes) or an
// insert-literal (low 7 bits directly give the number of literal bytes
// that follow in the delta stream).
func applyDelta(base, delta []byte) ([]byte, error) {
	r := &byteSliceReader{b: delta}

	baseSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("packfile: delta header: %w", err)
	}
	if int(baseSize) != len(base) {
		return nil, fmt.Errorf("packfile: delta base size mismatch: header says %d, have %d", baseSize, len(base))
	}
	targetSize, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("packfile: delta header: %w", err)
	}

	out := make([]byte, 0, targetSize)
	for r.pos < len(r.b) {
		instruction := r.b[r.pos]
		r.pos++

		switch {
		case instruction&0x80 != 0:
			offset, size, err := readCopyInstruction(instruction, r)
			if err != nil {
				return nil, fmt.Errorf("packfile: delta copy instruction: %w", err)
			}
			if int64(offset)+int64(size) > int64(len(base)) {
				return nil, fmt.Errorf("packfile: delta copy out of bounds: offset=%d size=%d base=%d", offset, size, len(base))
			}
			out = append(out, base[offset:offset+size]...)
		case instruction != 0:
			n := int(instruction)
			if r.pos+n > len(r.b) {
				return nil, fmt.Errorf("packfile: delta insert runs past end of instruction stream")
			}
			out = append(out, r.b[r.pos:r.pos+n]...)
			r.pos += n
		default:
			return nil, fmt.Errorf("packfile: delta instruction byte 0 is reserved")
		}
	}

	if int64(len(out)) != int64(targetSize) {
		return nil, fmt.Errorf("packfile: delta produced %d bytes, header promised %d", len(out), targetSize)
	}
	return out, nil
}

// readCopyInstruction parses the offset/size fields that follow a
// copy-from-base instruction byte: up to 4 offset bytes and 3 size bytes,
// each present only if its corresponding bit is set.
func readCopyInstruction(instruction byte, r *byteSliceReader) (offset, size uint32, err error) {
	for i := 0; i < 4; i++ {
		if instruction&(1<<i) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		offset |= uint32(b) << (8 * i)
	}
	for i := 0; i < 3; i++ {
		if instruction&(1<<(4+i)) == 0 {
			continue
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		size |= uint32(b) << (8 * i)
	}
	if size == 0 {
		size = 0x10000
	}
	return offset, size, nil
}

type byteSliceReader struct {
	b   []byte
	pos int
}

func (r *byteSliceReader) ReadByte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, fmt.Errorf("packfile: delta: unexpected end of instruction stream")
	}
	b := r.b[r.pos]
	r.pos++
	return b, nil
}
