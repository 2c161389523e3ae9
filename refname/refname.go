// Package refname validates and decomposes git ref names of the form
// "refs/<category>/<location>", per git-check-ref-format.
package refname

import (
	"errors"
	"strings"
)

// Name is a parsed, validated ref name.
type Name struct {
	// Full is the entire raw ref name, refs/ prefix included (or "HEAD").
	Full string
	// Category is the path segment right after "refs/", e.g. "heads".
	Category string
	// Location is everything after Category, e.g. "main" or "feature/x".
	Location string
}

// HEAD is the one ref name that never lives under refs/.
var HEAD = Name{Full: "HEAD", Category: "HEAD", Location: "HEAD"}

// Parse validates in against git-check-ref-format and decomposes it.
//
//   - HEAD is always valid and returned as the HEAD constant.
//   - Otherwise in must start with "refs/" and contain at least one further
//     slash (the category separator).
//   - No component may be empty, start with '.', or end with ".lock"; no
//     component may be the bare string "@".
//   - "..", "//", and "@{" may not appear anywhere; the name may not end
//     with '.'.
//   - Components may not contain control characters, space, '~', '^', ':',
//     '?', '*', '[', DEL, or a backslash.
//
// See https://git-scm.com/docs/git-check-ref-format.
func Parse(in string) (Name, error) {
	if in == "HEAD" {
		return HEAD, nil
	}

	n := Name{Full: in}
	if !strings.HasPrefix(in, "refs/") {
		return n, errors.New("refname: does not start with refs/")
	}
	body := in[len("refs/"):]

	sep := strings.IndexByte(body, '/')
	if sep == -1 {
		return n, errors.New("refname: missing category separator")
	}

	if strings.Contains(body, "..") {
		return n, errors.New("refname: contains `..`")
	}
	if strings.Contains(body, "//") {
		return n, errors.New("refname: contains consecutive slashes")
	}
	if strings.Contains(body, "@{") {
		return n, errors.New("refname: contains `@{`")
	}
	if strings.HasSuffix(body, ".") {
		return n, errors.New("refname: ends with `.`")
	}

	for _, component := range strings.Split(body, "/") {
		if err := validateComponent(component); err != nil {
			return n, err
		}
	}

	n.Category = body[:sep]
	n.Location = body[sep+1:]
	return n, nil
}

func validateComponent(component string) error {
	if component == "" {
		return errors.New("refname: empty component")
	}
	if component == "@" {
		return errors.New("refname: component is bare `@`")
	}
	if strings.HasPrefix(component, ".") {
		return errors.New("refname: component starts with `.`")
	}
	if strings.HasSuffix(component, ".lock") {
		return errors.New("refname: component ends with `.lock`")
	}
	if strings.ContainsFunc(component, isInvalidRune) {
		return errors.New("refname: component contains a disallowed character")
	}
	return nil
}

func isInvalidRune(r rune) bool {
	return r < 0o040 || r == 0o177 || r == ' ' || r == '~' || r == '^' ||
		r == ':' || r == '?' || r == '*' || r == '[' || r == '\\'
}

// UnderHeads reports whether name, taken as a branch name (without the
// "refs/heads/" prefix), would parse to a ref located directly under
// refs/heads/ with no further path separators escaping that namespace.
//
// This backs the branch resolver's BranchInvalid check: a candidate that
// itself contains "/" is still a legal ref location (e.g. "feature/x"), but
// one that tries to climb out via ".." or an absolute "refs/" prefix is not.
func UnderHeads(branch string) bool {
	if branch == "" {
		return false
	}
	if strings.HasPrefix(branch, "refs/") || strings.HasPrefix(branch, "/") {
		return false
	}
	full := "refs/heads/" + branch
	n, err := Parse(full)
	if err != nil {
		return false
	}
	return n.Category == "heads"
}
