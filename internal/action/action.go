// Package action defines the closed set of side-effecting operations a model
// or operator may propose. Actions are validated at construction and immutable
// afterwards; the rest of the gate never discovers fields dynamically.
package action

import (
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/kazz187/agentgate/pkg/cerr"
)

type Kind int32

const (
	KindUnspecified Kind = iota
	KindEditFile
	KindRunCommand
	KindFetchResource
)

func (k Kind) String() string {
	switch k {
	case KindEditFile:
		return "edit_file"
	case KindRunCommand:
		return "run_command"
	case KindFetchResource:
		return "fetch_resource"
	default:
		return "unspecified"
	}
}

// ParseKind converts the wire form of a kind back into its enum value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "edit_file":
		return KindEditFile, nil
	case "run_command":
		return KindRunCommand, nil
	case "fetch_resource":
		return KindFetchResource, nil
	default:
		return KindUnspecified, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown action kind %q", s), nil)
	}
}

type Origin int32

const (
	OriginModel Origin = iota
	OriginOperator
)

func (o Origin) String() string {
	switch o {
	case OriginOperator:
		return "operator"
	default:
		return "model"
	}
}

// Action is one proposed tool invocation. One instance per invocation;
// immutable once constructed.
type Action struct {
	id      string
	kind    Kind
	target  string // file path, command string, or resource URI
	payload string // file content for edits, prompt arguments for tool calls
	server  string // auxiliary tool server name, fetch_resource only
	origin  Origin
}

func NewEditFile(path, content string, origin Origin) (*Action, error) {
	if path == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "edit_file requires a path", nil)
	}
	return newAction(KindEditFile, path, content, "", origin), nil
}

func NewRunCommand(command string, origin Origin) (*Action, error) {
	if command == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "run_command requires a command", nil)
	}
	return newAction(KindRunCommand, command, "", "", origin), nil
}

func NewFetchResource(server, uri string, origin Origin) (*Action, error) {
	if server == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "fetch_resource requires a server", nil)
	}
	if uri == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "fetch_resource requires a uri", nil)
	}
	return newAction(KindFetchResource, uri, "", server, origin), nil
}

func newAction(kind Kind, target, payload, server string, origin Origin) *Action {
	return &Action{
		id:      ulid.Make().String(),
		kind:    kind,
		target:  target,
		payload: payload,
		server:  server,
		origin:  origin,
	}
}

func (a *Action) ID() string     { return a.id }
func (a *Action) Kind() Kind     { return a.kind }
func (a *Action) Target() string { return a.target }

// Payload returns the free-text body carried by the action, if any.
func (a *Action) Payload() string { return a.payload }

// Server returns the auxiliary tool server name for fetch_resource actions.
func (a *Action) Server() string { return a.server }

func (a *Action) Origin() Origin { return a.origin }

// HasPayload reports whether the action carries free text that must pass the
// input sanitizer before use.
func (a *Action) HasPayload() bool { return a.payload != "" }
