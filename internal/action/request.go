package action

import (
	"encoding/json"

	"github.com/kazz187/agentgate/pkg/cerr"
)

// Request is the wire form of a proposed action as received from the
// conversation loop over the gate session protocol.
type Request struct {
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	Payload string `json:"payload,omitempty"`
	Server  string `json:"server,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// Parse decodes one newline-delimited JSON request into a validated Action.
func Parse(data []byte) (*Action, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "malformed action request", err)
	}
	return req.ToAction()
}

// ToAction validates the request fields and constructs the matching variant.
func (r *Request) ToAction() (*Action, error) {
	kind, err := ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	origin := OriginModel
	if r.Origin == "operator" {
		origin = OriginOperator
	}
	switch kind {
	case KindEditFile:
		return NewEditFile(r.Target, r.Payload, origin)
	case KindRunCommand:
		return NewRunCommand(r.Target, origin)
	case KindFetchResource:
		return NewFetchResource(r.Server, r.Target, origin)
	default:
		return nil, cerr.NewError(cerr.InvalidArgument, "unsupported action kind", nil)
	}
}
