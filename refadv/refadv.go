// Package refadv implements the ref-advertisement parser (C3): issuing the
// protocol-v2 ls-refs command and parsing its response into a
// gitproto.Advertisement.
//
// Grounded on protocol/client/lsrefs.go for the command-construction shape
// (pack lines, delimiter before ref-prefix arguments, flush to terminate)
// and its packet read loop, rewritten against the pktline package's
// Decoder instead of hand-rolled length parsing, and against
// gitproto.ParseRefLine instead of the teacher's undefined
// protocol.ParseRefLine.
package refadv

import (
	"bytes"
	"context"
	"fmt"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/gitproto"
	"github.com/nanoci/shalo/log"
	"github.com/nanoci/shalo/pktline"
)

// Fetcher is the subset of transport.Transport that ls-refs needs. Declared
// here (rather than importing package transport) so tests can substitute a
// fake without round-tripping HTTP.
type Fetcher interface {
	UploadPack(ctx context.Context, body []byte) ([]byte, error)
}

// Options configures which ref-prefix filters ls-refs requests. An empty
// BranchPrefixes/TagPrefixes defaults to the bare "refs/heads/"/"refs/tags/"
// roots.
type Options struct {
	RepoURL        string // used only to annotate EmptyRemoteError
	BranchPrefixes []string
	TagPrefixes    []string
}

// List issues ls-refs against t and parses the response.
func List(ctx context.Context, t Fetcher, opts Options) (gitproto.Advertisement, error) {
	logger := log.FromContext(ctx)

	req, err := buildRequest(opts)
	if err != nil {
		return gitproto.Advertisement{}, err
	}

	logger.Debug("ls-refs request", "requestSize", len(req))
	resp, err := t.UploadPack(ctx, req)
	if err != nil {
		return gitproto.Advertisement{}, err
	}

	adv, err := parseResponse(resp)
	if err != nil {
		return gitproto.Advertisement{}, err
	}

	if len(adv.Refs) == 0 {
		return gitproto.Advertisement{}, &errs.EmptyRemoteError{RepoURL: opts.RepoURL}
	}

	logger.Debug("ls-refs completed", "refCount", len(adv.Refs))
	return adv, nil
}

func buildRequest(opts Options) ([]byte, error) {
	branchPrefixes := opts.BranchPrefixes
	if len(branchPrefixes) == 0 {
		branchPrefixes = []string{""}
	}
	tagPrefixes := opts.TagPrefixes
	if len(tagPrefixes) == 0 {
		tagPrefixes = []string{""}
	}

	frames := []pktline.Frame{
		{Kind: pktline.Data, Payload: []byte("command=ls-refs\n")},
		{Kind: pktline.Data, Payload: []byte("object-format=sha1\n")},
		{Kind: pktline.Delim},
		{Kind: pktline.Data, Payload: []byte("peel\n")},
		{Kind: pktline.Data, Payload: []byte("symrefs\n")},
	}
	for _, p := range branchPrefixes {
		frames = append(frames, pktline.Frame{
			Kind:    pktline.Data,
			Payload: []byte(fmt.Sprintf("ref-prefix refs/heads/%s\n", p)),
		})
	}
	for _, p := range tagPrefixes {
		frames = append(frames, pktline.Frame{
			Kind:    pktline.Data,
			Payload: []byte(fmt.Sprintf("ref-prefix refs/tags/%s\n", p)),
		})
	}
	frames = append(frames, pktline.Frame{Kind: pktline.Flush})

	return pktline.Format(frames...)
}

// parseResponse reads ls-refs response packets one at a time until the
// terminating flush, parsing each as a RefLine and recording any
// symref-target as a symref mapping.
func parseResponse(body []byte) (gitproto.Advertisement, error) {
	dec := pktline.NewDecoder(bytes.NewReader(body))
	adv := gitproto.Advertisement{Symrefs: map[string]string{}}

	for {
		f, err := dec.Next()
		if err != nil {
			return gitproto.Advertisement{}, &errs.ProtocolError{Context: "ls-refs response", Err: err}
		}
		if f.Kind == pktline.Flush {
			return adv, nil
		}
		if f.Kind != pktline.Data {
			continue
		}

		line, err := gitproto.ParseRefLine(f.Payload)
		if err != nil {
			return gitproto.Advertisement{}, &errs.ProtocolError{Context: "ls-refs ref line", Err: err}
		}
		adv.Refs = append(adv.Refs, line)
		if line.SymrefTarget != "" {
			adv.Symrefs[line.RefName.Full] = line.SymrefTarget
		}
	}
}
