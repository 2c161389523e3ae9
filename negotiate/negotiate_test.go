package negotiate_test

import (
	"context"
	"strings"
	"testing"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/negotiate"
	"github.com/nanoci/shalo/pktline"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	response []byte
	err      error
	lastReq  []byte
}

func (f *fakeFetcher) UploadPack(ctx context.Context, body []byte) ([]byte, error) {
	f.lastReq = body
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func oid(hex string) hash.Hash {
	h, err := hash.FromHex(hex)
	if err != nil {
		panic(err)
	}
	return h
}

func framesToBytes(t *testing.T, frames ...pktline.Frame) []byte {
	t.Helper()
	b, err := pktline.Format(frames...)
	require.NoError(t, err)
	return b
}

func dataFrame(s string) pktline.Frame {
	return pktline.Frame{Kind: pktline.Data, Payload: []byte(s)}
}

func TestDo_BuildsWantDeepenAndHaveLines(t *testing.T) {
	want := oid(strings.Repeat("a", 40))
	have := oid(strings.Repeat("b", 40))

	f := &fakeFetcher{response: framesToBytes(t,
		dataFrame("packfile\n"),
		pktline.Frame{Kind: pktline.Flush},
	)}

	_, err := negotiate.Do(context.Background(), f, negotiate.Request{
		Want:   []hash.Hash{want},
		Have:   []hash.Hash{have},
		Deepen: 2,
	})
	require.NoError(t, err)

	req := string(f.lastReq)
	require.Contains(t, req, "command=fetch\n")
	require.Contains(t, req, "want "+want.String()+"\n")
	require.Contains(t, req, "have "+have.String()+"\n")
	require.Contains(t, req, "deepen 2\n")
	require.Contains(t, req, "no-progress\n")
}

func TestDo_ParsesAcknowledgmentsAndPackfile(t *testing.T) {
	f := &fakeFetcher{response: framesToBytes(t,
		dataFrame("acknowledgments\n"),
		dataFrame("ACK "+strings.Repeat("c", 40)+"\n"),
		dataFrame("packfile\n"),
		{Kind: pktline.Data, Payload: append([]byte{pktline.ChannelPack}, []byte("PACKDATA")...)},
		pktline.Frame{Kind: pktline.Flush},
	)}

	resp, err := negotiate.Do(context.Background(), f, negotiate.Request{Want: []hash.Hash{oid(strings.Repeat("a", 40))}})
	require.NoError(t, err)
	require.Len(t, resp.Acks.Acks, 1)
	require.Equal(t, []byte("PACKDATA"), resp.Pack)
}

func TestDo_ParsesShallowInfo(t *testing.T) {
	sh := oid(strings.Repeat("d", 40))
	f := &fakeFetcher{response: framesToBytes(t,
		dataFrame("shallow-info\n"),
		dataFrame("shallow "+sh.String()+"\n"),
		dataFrame("packfile\n"),
		pktline.Frame{Kind: pktline.Flush},
	)}

	resp, err := negotiate.Do(context.Background(), f, negotiate.Request{Want: []hash.Hash{sh}})
	require.NoError(t, err)
	require.Len(t, resp.Shallow, 1)
	require.Equal(t, sh.String(), resp.Shallow[0].Object.String())
}

func TestDo_FatalSidebandBecomesProtocolError(t *testing.T) {
	f := &fakeFetcher{response: framesToBytes(t,
		dataFrame("packfile\n"),
		{Kind: pktline.Data, Payload: append([]byte{pktline.ChannelFatal}, []byte("pack generation failed")...)},
	)}

	_, err := negotiate.Do(context.Background(), f, negotiate.Request{Want: []hash.Hash{oid(strings.Repeat("a", 40))}})
	require.Error(t, err)
	var protoErr *errs.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestDo_ErrLineWantNotAdvertised(t *testing.T) {
	f := &fakeFetcher{response: framesToBytes(t,
		dataFrame("ERR upload-pack: not our ref " + strings.Repeat("a", 40) + "\n"),
	)}

	_, err := negotiate.Do(context.Background(), f, negotiate.Request{Want: []hash.Hash{oid(strings.Repeat("a", 40))}})
	var wantErr *errs.WantNotAdvertisedError
	require.ErrorAs(t, err, &wantErr)
}

func TestDo_PropagatesTransportError(t *testing.T) {
	f := &fakeFetcher{err: &errs.TransportError{Op: "POST git-upload-pack", StatusCode: 502}}
	_, err := negotiate.Do(context.Background(), f, negotiate.Request{Want: []hash.Hash{oid(strings.Repeat("a", 40))}})
	require.ErrorIs(t, err, errs.ErrTransport)
}
