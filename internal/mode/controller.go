package mode

import (
	"context"

	"github.com/kazz187/agentgate/internal/audit"
)

// Source loads and persists the mode string of the settings document.
type Source interface {
	Mode(ctx context.Context) (string, error)
	UpdateMode(ctx context.Context, modeStr string) error
}

// Controller owns the current operating mode.
type Controller struct {
	src     Source
	auditor *audit.Logger
}

func NewController(src Source, auditor *audit.Logger) *Controller {
	return &Controller{src: src, auditor: auditor}
}

// Current returns the persisted mode. An unset mode means ConfirmEach.
func (c *Controller) Current(ctx context.Context) (Mode, error) {
	s, err := c.src.Mode(ctx)
	if err != nil {
		return Unspecified, err
	}
	if s == "" {
		return ConfirmEach, nil
	}
	return Parse(s)
}

// Set persists a new mode and records the change in the audit log.
func (c *Controller) Set(ctx context.Context, m Mode) error {
	previous, err := c.Current(ctx)
	if err != nil {
		return err
	}
	if err := c.src.UpdateMode(ctx, m.String()); err != nil {
		return err
	}
	c.auditor.Record(audit.EventModeChanged, map[string]any{
		"from": previous.String(),
		"to":   m.String(),
	})
	return nil
}
