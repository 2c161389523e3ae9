// Package errs defines the error kinds the core surfaces (spec §7), each a
// structured type paired with a sentinel so callers can use either
// errors.As for details or errors.Is for classification.
//
// Grounded on protocol/client/errors.go's pattern (sentinel var +
// structured type + Unwrap/Is) and protocol/errors.go's simpler
// string-based variant.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport classifies HTTP status/connection/timeout failures.
	ErrTransport = errors.New("transport error")
	// ErrProtocol classifies malformed pkt-line framing, unexpected
	// sections, or bad pack streams.
	ErrProtocol = errors.New("protocol error")
	// ErrEmptyRemote is returned when ls-refs yields zero refs.
	ErrEmptyRemote = errors.New("empty remote: ls-refs returned no refs")
	// ErrBranchUnresolved is returned when the resolver exhausts all
	// candidates and has no default branch.
	ErrBranchUnresolved = errors.New("branch unresolved")
	// ErrFallbackNonTerminating is returned at resolver-construction time
	// when a fallback rule fails the termination check.
	ErrFallbackNonTerminating = errors.New("fallback rule does not terminate")
	// ErrBranchInvalid is returned when a resolved candidate would escape
	// refs/heads/.
	ErrBranchInvalid = errors.New("branch candidate is not a valid refs/heads/ name")
	// ErrWantNotAdvertised is returned when the server rejects a want.
	ErrWantNotAdvertised = errors.New("want not advertised")
	// ErrTruncated is returned when a pack stream ends mid-object.
	ErrTruncated = errors.New("pack stream truncated")
	// ErrTargetConflict is returned when the local target directory
	// exists and is non-empty.
	ErrTargetConflict = errors.New("target directory exists and is not empty")
	// ErrMaxDepthExceeded is returned when the deepen loop hits its cap
	// without covering a tag.
	ErrMaxDepthExceeded = errors.New("max fetch depth exceeded")
)

// TransportError wraps a transport-layer failure: non-2xx status,
// connection failure, or a deadline expiry.
type TransportError struct {
	Op         string // "GET info/refs", "POST git-upload-pack", ...
	StatusCode int    // 0 if no response was received at all
	Err        error
}

// Method returns the HTTP method Op was issued with, e.g. "GET" from
// "GET info/refs". Returns "" if Op doesn't start with a recognized verb.
func (e *TransportError) Method() string {
	for _, verb := range []string{"GET", "POST", "PUT", "DELETE", "PATCH"} {
		if strings.HasPrefix(e.Op, verb+" ") {
			return verb
		}
	}
	return ""
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return ErrTransport }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError wraps a wire-format violation.
type ProtocolError struct {
	Context string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Context, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Context)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// EmptyRemoteError is returned when ls-refs advertised zero refs.
type EmptyRemoteError struct {
	RepoURL string
}

func (e *EmptyRemoteError) Error() string {
	return fmt.Sprintf("empty remote: %s advertised no refs", e.RepoURL)
}

func (e *EmptyRemoteError) Unwrap() error { return ErrEmptyRemote }

func (e *EmptyRemoteError) Is(target error) bool { return target == ErrEmptyRemote }

// BranchUnresolvedError is returned when the resolver runs out of
// candidates with no default configured.
type BranchUnresolvedError struct {
	Requested string
	Visited   []string
}

func (e *BranchUnresolvedError) Error() string {
	return fmt.Sprintf("branch unresolved: %q (tried %v)", e.Requested, e.Visited)
}

func (e *BranchUnresolvedError) Unwrap() error { return ErrBranchUnresolved }

func (e *BranchUnresolvedError) Is(target error) bool { return target == ErrBranchUnresolved }

// FallbackNonTerminatingError is returned at resolver-construction time.
type FallbackNonTerminatingError struct {
	Pattern     string
	Replacement string
}

func (e *FallbackNonTerminatingError) Error() string {
	return fmt.Sprintf("fallback rule /%s/%s/ is not guaranteed to terminate", e.Pattern, e.Replacement)
}

func (e *FallbackNonTerminatingError) Unwrap() error { return ErrFallbackNonTerminating }

func (e *FallbackNonTerminatingError) Is(target error) bool {
	return target == ErrFallbackNonTerminating
}

// BranchInvalidError is returned when a candidate escapes refs/heads/.
type BranchInvalidError struct {
	Candidate string
}

func (e *BranchInvalidError) Error() string {
	return fmt.Sprintf("branch candidate %q is not a valid name under refs/heads/", e.Candidate)
}

func (e *BranchInvalidError) Unwrap() error { return ErrBranchInvalid }

func (e *BranchInvalidError) Is(target error) bool { return target == ErrBranchInvalid }

// WantNotAdvertisedError is returned when the server rejects a want line.
type WantNotAdvertisedError struct {
	Oid string
}

func (e *WantNotAdvertisedError) Error() string {
	return fmt.Sprintf("want not advertised: %s", e.Oid)
}

func (e *WantNotAdvertisedError) Unwrap() error { return ErrWantNotAdvertised }

func (e *WantNotAdvertisedError) Is(target error) bool { return target == ErrWantNotAdvertised }

// TruncatedError is returned when a pack stream ends mid-object.
type TruncatedError struct {
	ObjectsRead int
	Expected    int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("pack truncated after %d of %d objects", e.ObjectsRead, e.Expected)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncated }

func (e *TruncatedError) Is(target error) bool { return target == ErrTruncated }

// TargetConflictError is returned when the local clone target isn't empty.
type TargetConflictError struct {
	Path string
}

func (e *TargetConflictError) Error() string {
	return fmt.Sprintf("target directory %s exists and is not empty", e.Path)
}

func (e *TargetConflictError) Unwrap() error { return ErrTargetConflict }

func (e *TargetConflictError) Is(target error) bool { return target == ErrTargetConflict }

// MaxDepthExceededError is returned when the deepen loop hits its cap
// without covering a tag. Fatal is false when the advertisement carried no
// tags at all (§7 propagation policy: a warning, not a failure, in that
// case), true when tags existed but none became reachable.
type MaxDepthExceededError struct {
	MaxDepth int
	Fatal    bool
}

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("max depth %d exceeded without covering a tag", e.MaxDepth)
}

func (e *MaxDepthExceededError) Unwrap() error { return ErrMaxDepthExceeded }

func (e *MaxDepthExceededError) Is(target error) bool { return target == ErrMaxDepthExceeded }
