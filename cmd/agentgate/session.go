package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kazz187/agentgate/internal/action"
	"github.com/kazz187/agentgate/internal/audit"
	"github.com/kazz187/agentgate/internal/bridge"
	"github.com/kazz187/agentgate/internal/config"
	"github.com/kazz187/agentgate/internal/decision"
	"github.com/kazz187/agentgate/internal/mode"
	"github.com/kazz187/agentgate/internal/pathguard"
	"github.com/kazz187/agentgate/internal/permission"
	"github.com/kazz187/agentgate/internal/ratelimit"
	"github.com/kazz187/agentgate/internal/settings"
	settingsimpl "github.com/kazz187/agentgate/internal/settings/repositoryimpl"
	"github.com/kazz187/agentgate/internal/toolserver"
	toolserverimpl "github.com/kazz187/agentgate/internal/toolserver/repositoryimpl"
	"github.com/kazz187/agentgate/pkg/cerr"
	"github.com/kazz187/agentgate/pkg/clog"
	"github.com/kazz187/agentgate/pkg/panicerr"
	"github.com/kazz187/agentgate/pkg/storage"
)

// components holds the wired gate, shared by the session and the management
// subcommands.
type components struct {
	env        *config.Env
	logger     *slog.Logger
	auditor    *audit.Logger
	repo       *settingsimpl.JSONRepository
	manager    *settings.Manager
	perms      *permission.Store
	modes      *mode.Controller
	tools      toolserver.Repository
	bridge     *bridge.Bridge
	projectDir string
}

func newComponents(projectDir string) (*components, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	logger := slog.New(clog.NewAttributesHandler(clog.NewTextHandler(os.Stderr,
		clog.WithColor(env.Color),
		clog.WithLevel(env.SlogLevel()),
	)))
	slog.SetDefault(logger)

	userDir, err := env.UserConfigDir()
	if err != nil {
		return nil, err
	}

	auditor, err := audit.NewLogger(userDir, logger)
	if err != nil {
		return nil, err
	}

	repo, err := settingsimpl.NewJSONRepository(userDir, projectDir)
	if err != nil {
		return nil, err
	}
	manager := settings.NewManager(repo)

	toolStore, err := storage.NewLocalStorage(userDir)
	if err != nil {
		return nil, err
	}

	return &components{
		env:     env,
		logger:  logger,
		auditor: auditor,
		repo:    repo,
		manager: manager,
		perms:   permission.NewStore(manager),
		modes:   mode.NewController(manager, auditor),
		tools:   toolserverimpl.NewYAMLRepository(toolStore),
		bridge: bridge.NewBridge(
			bridge.WithTimeout(env.BridgeTimeout),
		),
		projectDir: projectDir,
	}, nil
}

func (c *components) Close() {
	_ = c.auditor.Close()
}

// Verdict is the wire form of a decision result, one JSON line per action.
type Verdict struct {
	ID      string `json:"id,omitempty"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Output  string `json:"output,omitempty"`
}

// runSession reads newline-delimited JSON action requests from stdin and
// writes one verdict line per request to stdout. Escalations are asked on the
// controlling terminal, not on the request stream.
func (c *components) runSession(ctx context.Context, noPrompt bool) error {
	prompter, closeTTY := c.newPrompter(noPrompt)
	defer closeTTY()

	engine := decision.NewEngine(decision.Config{
		Modes: c.modes,
		Perms: c.perms,
		Limiter: ratelimit.NewLimiter(
			ratelimit.WithLimit(ratelimit.ClassAPICall, ratelimit.Limit{
				Count:  c.env.APICallLimit,
				Window: c.env.APICallWindow,
			}),
			ratelimit.WithLimit(ratelimit.ClassCommand, ratelimit.Limit{
				Count:  c.env.CommandLimit,
				Window: c.env.CommandWindow,
			}),
		),
		Guard:      pathguard.NewGuardian(),
		Auditor:    c.auditor,
		Executor:   c.bridge,
		Tools:      c.tools,
		Prompter:   prompter,
		History:    decision.NewHistory(),
		ProjectDir: c.projectDir,
	})

	sessionCtx, stop := context.WithCancel(ctx)
	defer stop()

	// SIGTERM ends the session; SIGINT only interrupts the action in flight.
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, syscall.SIGTERM)
	go func() {
		<-termCh
		stop()
	}()
	intCh := make(chan os.Signal, 1)
	signal.Notify(intCh, syscall.SIGINT)
	defer signal.Stop(intCh)
	defer signal.Stop(termCh)

	watch := panicerr.SafeContext(func(ctx context.Context) error {
		return c.manager.Watch(ctx, c.repo.WatchPaths(), c.logger)
	})
	go func() {
		if err := watch(sessionCtx); err != nil && sessionCtx.Err() == nil {
			c.logger.Warn("settings watcher stopped", "error", err)
		}
	}()

	enc := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if sessionCtx.Err() != nil {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := c.decideOne(sessionCtx, engine, intCh, line, enc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request stream: %w", err)
	}
	return nil
}

// decideOne gates a single request line. A SIGINT during the decision cancels
// only that action's context.
func (c *components) decideOne(ctx context.Context, engine *decision.Engine, intCh <-chan os.Signal, line []byte, enc *json.Encoder) error {
	// A SIGINT delivered while no action was in flight must not cancel this one.
	select {
	case <-intCh:
	default:
	}

	act, err := action.Parse(line)
	if err != nil {
		return enc.Encode(Verdict{Outcome: "invalid", Reason: err.Error()})
	}

	actCtx, cancel := context.WithCancel(clog.ContextWithSlog(ctx))
	clog.AddAttribute(actCtx, "action", act.ID())
	clog.AddAttribute(actCtx, "kind", act.Kind().String())
	clog.AddAttribute(actCtx, "target", act.Target())
	done := make(chan struct{})
	go func() {
		select {
		case <-intCh:
			c.logger.Info("interrupt received, rejecting current action", "action_id", act.ID())
			cancel()
		case <-done:
		}
	}()

	var res *decision.Result
	err = panicerr.Safe(func() error {
		var decideErr error
		res, decideErr = engine.Decide(actCtx, act)
		return decideErr
	})()
	close(done)
	if err != nil {
		clog.AddError(actCtx, err)
		var cErr *cerr.Error
		if errors.As(err, &cErr) && cErr.Stack != "" {
			clog.AddStack(actCtx, cErr.Stack)
		}
		c.logger.ErrorContext(actCtx, "decision failed")
		cancel()
		return err
	}

	if res.Outcome == decision.OutcomeExecutionFailed {
		clog.AddError(actCtx, errors.New(res.Reason))
	}
	clog.AddAttribute(actCtx, "outcome", res.Outcome.String())
	c.logger.InfoContext(actCtx, "action decided")
	cancel()

	return enc.Encode(Verdict{
		ID:      act.ID(),
		Outcome: res.Outcome.String(),
		Reason:  res.Reason,
		Output:  res.Output,
	})
}

// newPrompter opens the controlling terminal for operator confirmation.
// Without a terminal (or with --no-prompt) every escalation is denied.
func (c *components) newPrompter(noPrompt bool) (decision.Prompter, func()) {
	if noPrompt {
		return decision.DenyAllPrompter{}, func() {}
	}
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		c.logger.Warn("no controlling terminal, escalations will be denied", "error", err)
		return decision.DenyAllPrompter{}, func() {}
	}
	return decision.NewTerminalPrompter(tty, tty), func() { _ = tty.Close() }
}
