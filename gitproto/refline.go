package gitproto

import (
	"fmt"
	"strings"

	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/refname"
)

// ParseRefLine parses one ls-refs response packet of the form:
//
//	<oid> SP <refname> *(SP <attribute>)
//
// where each attribute is either "symref-target:<target>" or
// "peeled:<oid>". Both attributes are optional and may appear in either
// order, matching the grammar in protocol-v2's ls-refs documentation.
//
// Grounded on the byte-splitting idiom of the teacher's legacy ref-line
// parser (split on space, validate the oid field, strip attribute
// suffixes) adapted to protocol v2's ls-refs grammar rather than v0/v1's
// capabilities^{} suffix grammar, since that's what C3 issues (spec §4.3).
func ParseRefLine(line []byte) (RefLine, error) {
	text := strings.TrimRight(string(line), "\n")
	fields := strings.Split(text, " ")
	if len(fields) < 2 {
		return RefLine{}, fmt.Errorf("gitproto: malformed ref line %q: need at least oid and refname", text)
	}

	oid, err := hash.FromHex(fields[0])
	if err != nil {
		return RefLine{}, fmt.Errorf("gitproto: malformed ref line %q: bad oid: %w", text, err)
	}

	name, err := refname.Parse(fields[1])
	if err != nil {
		return RefLine{}, fmt.Errorf("gitproto: malformed ref line %q: bad refname: %w", text, err)
	}

	out := RefLine{Oid: oid, RefName: name}
	for _, attr := range fields[2:] {
		switch {
		case strings.HasPrefix(attr, "symref-target:"):
			out.SymrefTarget = strings.TrimPrefix(attr, "symref-target:")
		case strings.HasPrefix(attr, "peeled:"):
			peeled, err := hash.FromHex(strings.TrimPrefix(attr, "peeled:"))
			if err != nil {
				return RefLine{}, fmt.Errorf("gitproto: malformed ref line %q: bad peeled oid: %w", text, err)
			}
			out.Peeled = peeled
		case attr == "":
			// tolerate a stray double space
		default:
			return RefLine{}, fmt.Errorf("gitproto: malformed ref line %q: unknown attribute %q", text, attr)
		}
	}

	return out, nil
}
