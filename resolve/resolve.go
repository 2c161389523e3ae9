// Package resolve implements the branch resolver (C4): BFS over a primary
// branch name and an ordered set of regex fallback rules, terminating on a
// match against a ref advertisement or on a configured default.
//
// Not directly grounded on a teacher file — nanogit has no fallback-chain
// concept, since it addresses repositories by an already-known ref. The
// termination-safety check at construction time follows the "strictly-
// shortening" approximation prescribed directly (a decidable conservative
// rule for an otherwise-undecidable rewrite-system termination problem).
// refname.UnderHeads is reused from the teacher-derived refname package for
// the BranchInvalid check.
package resolve

import (
	"regexp"
	"strings"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/gitproto"
	"github.com/nanoci/shalo/refname"
)

// Rule is one (match-pattern, replacement-template) fallback substitution,
// applied with standard $1-style backreferences.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// maxProbeIterations bounds the simulated self-application performed by
// NewRule to detect non-terminating rules.
const maxProbeIterations = 64

// terminationSeeds are synthetic candidates NewRule repeatedly rewrites to
// check the strictly-shortening contract. They're chosen to exercise both
// the spec's own example patterns (dash-delimited candidate names) and
// pathological identity-matching patterns like `^(.*)$`.
var terminationSeeds = []string{
	"aw-optim-decode",
	"feature-x-y-z",
	strings.Repeat("a", 40),
}

// NewRule compiles pattern and validates the termination condition: the
// rule is rejected unless, for every seed candidate, repeated self-
// application strictly shrinks the string until it stops matching, within
// maxProbeIterations rounds. This is the decidable, conservative
// approximation §9 calls for in place of deciding general rewrite-system
// termination: it directly simulates what the BFS in Resolve will do,
// rather than reasoning about the replacement template symbolically.
func NewRule(pattern, replacement string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, err
	}

	for _, seed := range append(append([]string{}, terminationSeeds...), pattern) {
		if !terminates(re, replacement, seed) {
			return Rule{}, &errs.FallbackNonTerminatingError{Pattern: pattern, Replacement: replacement}
		}
	}

	return Rule{Pattern: re, Replacement: replacement}, nil
}

// terminates reports whether repeatedly applying re/replacement to seed
// either stops matching or strictly shrinks the string at every step,
// within maxProbeIterations rounds.
func terminates(re *regexp.Regexp, replacement, seed string) bool {
	cur := seed
	for i := 0; i < maxProbeIterations; i++ {
		if !re.MatchString(cur) {
			return true
		}
		next := re.ReplaceAllString(cur, replacement)
		if len(next) >= len(cur) {
			return false
		}
		cur = next
	}
	return false
}

// apply runs r against candidate and reports the result and whether r
// matched at all.
func (r Rule) apply(candidate string) (result string, matched bool) {
	if !r.Pattern.MatchString(candidate) {
		return "", false
	}
	return r.Pattern.ReplaceAllString(candidate, r.Replacement), true
}

// Resolve runs the BFS described in spec §4.4 against adv: pop a candidate,
// check refs/heads/<candidate>, else expand with every rule in order,
// enqueueing unseen results; when the queue is empty, fall back to
// defaultBranch, or fail with BranchUnresolved.
func Resolve(adv gitproto.Advertisement, primary string, rules []Rule, defaultBranch string) (string, error) {
	visited := map[string]bool{primary: true}
	queue := []string{primary}
	var visitedOrder []string

	for len(queue) > 0 {
		candidate := queue[0]
		queue = queue[1:]
		visitedOrder = append(visitedOrder, candidate)

		if !refname.UnderHeads(candidate) {
			return "", &errs.BranchInvalidError{Candidate: candidate}
		}

		if _, ok := adv.FindBranch(candidate); ok {
			return candidate, nil
		}

		for _, rule := range rules {
			next, matched := rule.apply(candidate)
			if !matched || visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}

	if defaultBranch != "" {
		return defaultBranch, nil
	}
	return "", &errs.BranchUnresolvedError{Requested: primary, Visited: visitedOrder}
}
