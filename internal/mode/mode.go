// Package mode holds the gate's process-wide operating mode. The mode is
// changed only by an explicit operator command and persisted so it survives
// restarts.
package mode

import (
	"fmt"

	"github.com/kazz187/agentgate/pkg/cerr"
)

type Mode int32

const (
	Unspecified Mode = iota
	// Planning records side-effecting actions as plans instead of executing.
	Planning
	// ConfirmEach routes every edit and command through the full decision
	// engine, including interactive confirmation.
	ConfirmEach
	// AutoApply trusts file edits without confirmation; commands are still
	// gated. Edits are locally reversible via version control, commands are
	// not, so the asymmetry is deliberate.
	AutoApply
)

func (m Mode) String() string {
	switch m {
	case Planning:
		return "planning"
	case ConfirmEach:
		return "confirm-each"
	case AutoApply:
		return "auto-apply"
	default:
		return "unspecified"
	}
}

// Parse converts a mode string to its enum value. The names used by earlier
// releases ("default", "auto-complete") are accepted as aliases.
func Parse(s string) (Mode, error) {
	switch s {
	case "planning":
		return Planning, nil
	case "confirm-each", "default":
		return ConfirmEach, nil
	case "auto-apply", "auto-complete":
		return AutoApply, nil
	default:
		return Unspecified, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown mode %q", s), nil)
	}
}
