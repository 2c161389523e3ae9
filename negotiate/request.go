// Package negotiate implements the pack negotiator (C5): building the
// protocol-v2 "fetch" command request and parsing its sectioned response
// (acknowledgments, shallow-info, packfile) including sideband routing.
//
// Grounded on protocol/client/fetch.go for the command-construction shape
// (basic packs, want/shallow/deepen argument packs, flush to terminate)
// and protocol/pack.go's ERR-packet convention for server-side rejections,
// reinterpreted against the pktline package's Decoder/RouteSideband
// instead of pack.go's combined codec-and-dispatch ParsePack. The
// acknowledgments and shallow-info line grammars are parsed into
// gitproto's structured types rather than left as the teacher's unparsed
// `any` fields; wanted-refs lines are skipped.
package negotiate

import (
	"context"
	"fmt"

	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/log"
	"github.com/nanoci/shalo/pktline"
)

// Fetcher is the subset of transport.Transport the negotiator needs.
type Fetcher interface {
	UploadPack(ctx context.Context, body []byte) ([]byte, error)
}

// Request is one "fetch" command invocation.
type Request struct {
	Want []hash.Hash
	// Have lists commits already known locally, sent so the server can
	// reuse deltas against them on a deepening round.
	Have []hash.Hash
	// Shallow re-announces previously-received shallow boundaries.
	Shallow []hash.Hash
	// Deepen is the depth to fetch, relative to Want. Zero means "use the
	// server's default" (only valid for the very first, unbounded fetch;
	// the deepen loop always sets this explicitly).
	Deepen int
	// IncludeTag asks the server to also send annotated tags pointing at
	// fetched commits, satisfying the negotiator's "include-tag" argument.
	IncludeTag bool
	// Progress, if false, sends no-progress.
	Progress bool
}

// Do issues req against t and returns the parsed response.
func Do(ctx context.Context, t Fetcher, req Request) (*Response, error) {
	logger := log.FromContext(ctx)

	body, err := buildRequest(req)
	if err != nil {
		return nil, err
	}

	logger.Debug("fetch request", "wantCount", len(req.Want), "haveCount", len(req.Have), "deepen", req.Deepen)
	resp, err := t.UploadPack(ctx, body)
	if err != nil {
		return nil, err
	}

	return parseResponse(resp)
}

func buildRequest(req Request) ([]byte, error) {
	frames := []pktline.Frame{
		{Kind: pktline.Data, Payload: []byte("command=fetch\n")},
		{Kind: pktline.Data, Payload: []byte("object-format=sha1\n")},
		{Kind: pktline.Delim},
	}

	if !req.Progress {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte("no-progress\n")})
	}
	frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte("ofs-delta\n")})
	if req.IncludeTag {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte("include-tag\n")})
	}

	for _, w := range req.Want {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte(fmt.Sprintf("want %s\n", w.String()))})
	}
	for _, h := range req.Have {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte(fmt.Sprintf("have %s\n", h.String()))})
	}
	for _, sh := range req.Shallow {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte(fmt.Sprintf("shallow %s\n", sh.String()))})
	}
	if req.Deepen > 0 {
		frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte(fmt.Sprintf("deepen %d\n", req.Deepen))})
	}
	frames = append(frames, pktline.Frame{Kind: pktline.Data, Payload: []byte("done\n")})
	frames = append(frames, pktline.Frame{Kind: pktline.Flush})

	return pktline.Format(frames...)
}
