// Package gitconfig parses the command-line configuration shared by the
// find-branch and clone subcommands: the --branch-fallback pattern grammar
// and the prefix-filter/default-branch settings that feed resolve.Resolve
// and refadv.Options.
//
// Grounded on the flag-to-domain-object translation idiom of
// cli/internal/refparse/refparse.go (parsing a CLI string into a structured
// value, returning a descriptive error on malformed input) applied to the
// classical sed-style substitution syntax spec §6 specifies for
// --branch-fallback rather than refparse's ref-or-hash grammar.
package gitconfig

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nanoci/shalo/resolve"
)

// ParseFallbackRule parses one --branch-fallback value of the form
// "/<regex>/<replacement>/", where the delimiter is the pattern's first
// rune (conventionally '/', but any rune not used inside the pattern or
// replacement works, matching classical sed usage).
//
// The replacement half uses classical "$1"-style backreferences; since
// Go's regexp.ReplaceAllString parses "$1x" as the single named group
// "1x" rather than group 1 followed by a literal "x", bare numeric
// backreferences are rewritten to Go's "${1}"-braced form before the rule
// is compiled.
func ParseFallbackRule(spec string) (resolve.Rule, error) {
	if len(spec) < 2 {
		return resolve.Rule{}, fmt.Errorf("gitconfig: fallback rule %q too short", spec)
	}

	delim := rune(spec[0])
	parts := splitUnescaped(spec[1:], delim)
	if len(parts) != 2 {
		return resolve.Rule{}, fmt.Errorf("gitconfig: fallback rule %q must have the form %c<regex>%c<replacement>%c", spec, delim, delim, delim)
	}

	pattern := parts[0]
	replacement := bracesBackreferences(parts[1])

	rule, err := resolve.NewRule(pattern, replacement)
	if err != nil {
		return resolve.Rule{}, fmt.Errorf("gitconfig: fallback rule %q: %w", spec, err)
	}
	return rule, nil
}

// ParseFallbackRules parses every value of a repeated --branch-fallback
// flag, in declaration order (the order the resolver tries them in at each
// BFS level).
func ParseFallbackRules(specs []string) ([]resolve.Rule, error) {
	rules := make([]resolve.Rule, 0, len(specs))
	for _, s := range specs {
		rule, err := ParseFallbackRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// splitUnescaped splits s on delim, honoring a leading backslash as an
// escape for a literal delim rune inside a field, and requires the final
// field to be the empty string after the rule's closing delimiter (i.e.
// s must end with delim).
func splitUnescaped(s string, delim rune) []string {
	var fields []string
	var cur strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) && runes[i+1] == delim {
			cur.WriteRune(delim)
			i++
			continue
		}
		if r == delim {
			fields = append(fields, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		// Trailing content after the last delimiter: the rule didn't end
		// with one, which is a malformed spec. Returning no fields makes
		// the caller's field-count check reject it.
		return nil
	}
	return fields
}

var bareBackref = regexp.MustCompile(`\$(\d+)`)

// bracesBackreferences rewrites "$1" into "${1}" so Go's regexp package
// doesn't greedily fold trailing literal digits/letters into the group
// name.
func bracesBackreferences(replacement string) string {
	return bareBackref.ReplaceAllString(replacement, "${$1}")
}
