package negotiate

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/gitproto"
	"github.com/nanoci/shalo/hash"
	"github.com/nanoci/shalo/pktline"
)

var oidInMessage = regexp.MustCompile(`\b[0-9a-f]{40}\b|\b[0-9a-f]{64}\b`)

// Response is the parsed result of one fetch command invocation.
type Response struct {
	Acks    gitproto.Acknowledgements
	Shallow []gitproto.ShallowInfo
	Wanted  []gitproto.WantedRef
	Pack    []byte // concatenated, demultiplexed packfile bytes
}

// section names a fetch response's section headers. Each appears as its own
// Data frame, verbatim, before that section's lines begin.
type section string

const (
	sectionNone           section = ""
	sectionAcknowledgments section = "acknowledgments\n"
	sectionShallowInfo    section = "shallow-info\n"
	sectionWantedRefs     section = "wanted-refs\n"
	sectionPackfileURIs   section = "packfile-uris\n"
	sectionPackfile       section = "packfile\n"
)

// parseResponse walks a fetch response's pkt-line stream, dispatching each
// line to its enclosing section. A single flush-pkt ends the whole response:
// our negotiator never sends "wait-for-done", so the server either settles
// the round in one pass (the common case for a CI shallow fetch) or rejects
// it outright; multi-round "ready"-less negotiation is out of scope.
func parseResponse(body []byte) (*Response, error) {
	dec := pktline.NewDecoder(bytes.NewReader(body))
	resp := &Response{}
	cur := sectionNone
	var pack bytes.Buffer

	for {
		f, err := dec.Next()
		if err != nil {
			return nil, &errs.ProtocolError{Context: "fetch response", Err: err}
		}

		switch f.Kind {
		case pktline.Flush:
			resp.Pack = pack.Bytes()
			return resp, nil
		case pktline.Delim, pktline.ResponseEnd:
			continue
		case pktline.Data:
			// fall through below
		}

		if sec, ok := asSectionHeader(f.Payload); ok {
			cur = sec
			continue
		}

		switch cur {
		case sectionAcknowledgments:
			if err := parseAckLine(f.Payload, &resp.Acks); err != nil {
				return nil, err
			}
		case sectionShallowInfo:
			line, err := parseShallowLine(f.Payload)
			if err != nil {
				return nil, err
			}
			resp.Shallow = append(resp.Shallow, line)
		case sectionWantedRefs:
			// not used by this client's request shape (no want-ref lines are
			// ever sent); lines in this section are skipped and
			// Response.Wanted is left empty.
		case sectionPackfileURIs:
			// out of scope: the negotiator never sends packfile-uris.
		case sectionPackfile:
			if err := pktline.RouteSideband(f.Payload, func(data []byte) error {
				pack.Write(data)
				return nil
			}, pktline.NopProgressSink{}); err != nil {
				return nil, classifySidebandError(err)
			}
		default:
			if msg, ok := asErrLine(f.Payload); ok {
				return nil, classifyErrLine(msg)
			}
			return nil, &errs.ProtocolError{Context: "fetch response", Err: errUnexpectedLine(f.Payload)}
		}
	}
}

func asSectionHeader(payload []byte) (section, bool) {
	switch section(payload) {
	case sectionAcknowledgments, sectionShallowInfo, sectionWantedRefs, sectionPackfileURIs, sectionPackfile:
		return section(payload), true
	default:
		return sectionNone, false
	}
}

func asErrLine(payload []byte) (string, bool) {
	text := string(payload)
	if strings.HasPrefix(text, "ERR ") {
		return strings.TrimSuffix(strings.TrimPrefix(text, "ERR "), "\n"), true
	}
	return "", false
}

func classifyErrLine(msg string) error {
	if strings.Contains(msg, "not our ref") || strings.Contains(msg, "not advertised") {
		oid := oidInMessage.FindString(msg)
		if oid == "" {
			oid = msg
		}
		return &errs.WantNotAdvertisedError{Oid: oid}
	}
	return &errs.ProtocolError{Context: "fetch response", Err: errServerRejected(msg)}
}

func classifySidebandError(err error) error {
	if fatal, ok := err.(*pktline.FatalError); ok {
		return classifyErrLine(fatal.Message)
	}
	return &errs.ProtocolError{Context: "fetch response packfile section", Err: err}
}

func parseAckLine(payload []byte, acks *gitproto.Acknowledgements) error {
	text := strings.TrimRight(string(payload), "\n")
	switch {
	case text == "NAK":
		acks.Nack = true
	case text == "ready":
		acks.Ready = true
	case strings.HasPrefix(text, "ACK "):
		oidHex := strings.TrimPrefix(text, "ACK ")
		oid, err := hash.FromHex(oidHex)
		if err != nil {
			return &errs.ProtocolError{Context: "acknowledgments section", Err: err}
		}
		acks.Acks = append(acks.Acks, oid)
	default:
		return &errs.ProtocolError{Context: "acknowledgments section", Err: errUnexpectedLine(payload)}
	}
	return nil
}

func parseShallowLine(payload []byte) (gitproto.ShallowInfo, error) {
	text := strings.TrimRight(string(payload), "\n")
	fields := strings.SplitN(text, " ", 2)
	if len(fields) != 2 {
		return gitproto.ShallowInfo{}, &errs.ProtocolError{Context: "shallow-info section", Err: errUnexpectedLine(payload)}
	}

	var kind gitproto.Shallowness
	switch fields[0] {
	case "shallow":
		kind = gitproto.Shallow
	case "unshallow":
		kind = gitproto.Unshallow
	default:
		return gitproto.ShallowInfo{}, &errs.ProtocolError{Context: "shallow-info section", Err: errUnexpectedLine(payload)}
	}

	oid, err := hash.FromHex(fields[1])
	if err != nil {
		return gitproto.ShallowInfo{}, &errs.ProtocolError{Context: "shallow-info section", Err: err}
	}
	return gitproto.ShallowInfo{Shallowness: kind, Object: oid}, nil
}
