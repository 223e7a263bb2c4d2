// Package decision runs every proposed action through the gate: planning
// short-circuit, static checks, rate limiting, permission lookup, operator
// escalation, and finally execution. The engine computes one terminal result
// per action and records every security-relevant step in the audit log.
package decision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kazz187/agentgate/internal/action"
	"github.com/kazz187/agentgate/internal/audit"
	"github.com/kazz187/agentgate/internal/bridge"
	"github.com/kazz187/agentgate/internal/cmdfilter"
	"github.com/kazz187/agentgate/internal/mode"
	"github.com/kazz187/agentgate/internal/pathguard"
	"github.com/kazz187/agentgate/internal/permission"
	"github.com/kazz187/agentgate/internal/ratelimit"
	"github.com/kazz187/agentgate/internal/sanitize"
	"github.com/kazz187/agentgate/internal/toolserver"
	"github.com/kazz187/agentgate/pkg/cerr"
)

// Executor is the subset of the bridge the engine needs, narrowed so tests
// can substitute a fake.
type Executor interface {
	Invoke(ctx context.Context, command, dir string) (*bridge.InvokeResult, error)
	CallTool(ctx context.Context, def *toolserver.Definition, req bridge.ToolRequest) (string, error)
}

// Engine is the decision engine. It holds no per-action state; every call to
// Decide is independent.
type Engine struct {
	modes      *mode.Controller
	perms      *permission.Store
	limiter    *ratelimit.Limiter
	guard      *pathguard.Guardian
	auditor    *audit.Logger
	executor   Executor
	tools      toolserver.Repository
	prompter   Prompter
	history    *History
	projectDir string
}

// Config wires the engine's collaborators.
type Config struct {
	Modes      *mode.Controller
	Perms      *permission.Store
	Limiter    *ratelimit.Limiter
	Guard      *pathguard.Guardian
	Auditor    *audit.Logger
	Executor   Executor
	Tools      toolserver.Repository
	Prompter   Prompter
	History    *History
	ProjectDir string
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		modes:      cfg.Modes,
		perms:      cfg.Perms,
		limiter:    cfg.Limiter,
		guard:      cfg.Guard,
		auditor:    cfg.Auditor,
		executor:   cfg.Executor,
		tools:      cfg.Tools,
		prompter:   cfg.Prompter,
		history:    cfg.History,
		projectDir: cfg.ProjectDir,
	}
}

// Decide runs one action through the full gate and returns its terminal
// result. An error is returned only for infrastructure failures (settings
// unreadable); every policy outcome, including denial and execution failure,
// arrives as a Result.
func (e *Engine) Decide(ctx context.Context, act *action.Action) (*Result, error) {
	current, err := e.modes.Current(ctx)
	if err != nil {
		return nil, err
	}

	// Planning mode short-circuits before any verdict is computed. Even a
	// statically deniable action is merely described, never judged.
	if current == mode.Planning {
		return e.recordPlan(act), nil
	}

	// Free text is sanitized before any other use of it.
	payload := act.Payload()
	if act.HasPayload() {
		payload, err = sanitize.Sanitize(act.Payload())
		if err != nil {
			e.auditor.Record(audit.EventInputValidationFailed, map[string]any{
				"action_id": act.ID(),
				"kind":      act.Kind().String(),
				"error":     err.Error(),
			})
			return &Result{Outcome: OutcomeDenied, Reason: err.Error()}, nil
		}
	}

	if res := e.staticCheck(act); res != nil {
		return res, nil
	}

	class := rateClass(act.Kind())
	if !e.limiter.CheckAndRecord(e.projectDir, class) {
		e.auditor.Record(audit.EventRateLimitExceeded, map[string]any{
			"class": string(class),
			"key":   e.projectDir,
		})
		return &Result{
			Outcome: OutcomeDenied,
			Reason:  fmt.Sprintf("rate limit exceeded for %s", class),
		}, nil
	}

	set, err := e.perms.Get(ctx)
	if err != nil {
		return nil, err
	}

	// Deny always wins, including over the allow-list and remembered entries.
	if set.IsDenied(act.Target()) {
		e.auditor.Record(audit.EventCommandDenied, map[string]any{
			"kind":   act.Kind().String(),
			"target": act.Target(),
		})
		return &Result{Outcome: OutcomeDenied, Reason: "target is on the deny list"}, nil
	}

	approved := set.IsAllowed(act.Target(), e.projectDir)

	// Auto-apply covers edits only. Commands and fetches still escalate
	// unless remembered, so destructive shell access never rides along with
	// an edit-approval mode.
	if !approved && current == mode.AutoApply && act.Kind() == action.KindEditFile {
		approved = true
	}

	if !approved {
		res, ok := e.escalate(ctx, act, payload)
		if !ok {
			return res, nil
		}
	}

	e.auditor.Record(audit.EventCommandAllowed, map[string]any{
		"kind":   act.Kind().String(),
		"target": act.Target(),
	})
	return e.execute(ctx, act, payload), nil
}

// History returns the plan history accumulated by planning-mode decisions.
func (e *Engine) History() *History {
	return e.history
}

func (e *Engine) recordPlan(act *action.Action) *Result {
	var desc string
	switch act.Kind() {
	case action.KindEditFile:
		desc = fmt.Sprintf("Plan to edit %s with new content.", act.Target())
	case action.KindRunCommand:
		desc = fmt.Sprintf("Plan to run: %s", act.Target())
	case action.KindFetchResource:
		desc = fmt.Sprintf("Plan to fetch resource %s from %s", act.Target(), act.Server())
	}
	e.history.Append(PlanRecord{
		ActionID:    act.ID(),
		Description: desc,
		CreatedAt:   time.Now(),
	})
	e.auditor.Record(audit.EventPlanRecorded, map[string]any{
		"action_id": act.ID(),
		"kind":      act.Kind().String(),
		"target":    act.Target(),
	})
	return &Result{Outcome: OutcomePlanned, Reason: desc}
}

// staticCheck applies the pattern-table verdicts that no stored permission
// can override. A nil result means the action passed.
func (e *Engine) staticCheck(act *action.Action) *Result {
	switch act.Kind() {
	case action.KindRunCommand:
		if rule, ok := cmdfilter.Explain(act.Target()); !ok {
			e.auditor.Record(audit.EventCommandBlocked, map[string]any{
				"command": act.Target(),
				"reason":  rule,
			})
			return &Result{
				Outcome: OutcomeDenied,
				Reason:  fmt.Sprintf("command blocked: %s", rule),
			}
		}
	case action.KindEditFile:
		if rule, ok := e.guard.Explain(act.Target(), pathguard.OpWrite); !ok {
			e.auditor.Record(audit.EventFileAccessDenied, map[string]any{
				"path":      act.Target(),
				"operation": pathguard.OpWrite.String(),
				"reason":    rule,
			})
			return &Result{
				Outcome: OutcomeDenied,
				Reason:  fmt.Sprintf("file access denied: %s", rule),
			}
		}
	}
	return nil
}

// escalate asks the prompter for a verdict. ok=true means approved; the
// returned result is only meaningful when ok=false.
func (e *Engine) escalate(ctx context.Context, act *action.Action, payload string) (*Result, bool) {
	req := ConfirmRequest{Action: act, Display: act.Target()}
	if act.Kind() == action.KindRunCommand {
		req.Display = cmdfilter.Render(act.Target())
	}
	if act.Kind() == action.KindEditFile {
		// The diff shows the sanitized content, which is what will be written.
		req.Diff = e.editDiff(act.Target(), payload)
	}

	choice, err := e.prompter.Confirm(ctx, req)
	if err != nil {
		// An interrupted or unreachable operator is a rejection, not an
		// approval or an engine failure.
		e.auditor.Record(audit.EventCommandRejected, map[string]any{
			"kind":   act.Kind().String(),
			"target": act.Target(),
			"error":  err.Error(),
		})
		return &Result{Outcome: OutcomeRejected, Reason: err.Error()}, false
	}

	switch choice {
	case ChoiceRemember:
		details := map[string]any{
			"kind":    act.Kind().String(),
			"target":  act.Target(),
			"project": e.projectDir,
		}
		if err := e.perms.Remember(ctx, act.Target(), e.projectDir); err != nil {
			// Approval stands even when persisting it fails; the operator
			// said yes. The next use will simply prompt again.
			details["persist_error"] = err.Error()
		}
		e.auditor.Record(audit.EventCommandRemembered, details)
		return nil, true
	case ChoiceOnce:
		return nil, true
	default:
		e.auditor.Record(audit.EventCommandRejected, map[string]any{
			"kind":   act.Kind().String(),
			"target": act.Target(),
		})
		return &Result{Outcome: OutcomeRejected, Reason: "declined by operator"}, false
	}
}

func (e *Engine) execute(ctx context.Context, act *action.Action, payload string) *Result {
	switch act.Kind() {
	case action.KindRunCommand:
		res, err := e.executor.Invoke(ctx, act.Target(), e.projectDir)
		if err != nil {
			return e.executionFailed(act, err, res)
		}
		return &Result{Outcome: OutcomeExecuted, Output: res.Stdout}

	case action.KindEditFile:
		if err := e.writeFile(ctx, act.Target(), payload); err != nil {
			return e.executionFailed(act, err, nil)
		}
		return &Result{Outcome: OutcomeExecuted}

	case action.KindFetchResource:
		def, err := e.tools.Get(ctx, act.Server())
		if err != nil {
			return e.executionFailed(act, err, nil)
		}
		result, err := e.executor.CallTool(ctx, def, bridge.FetchResourceRequest(act.Target()))
		if err != nil {
			return e.executionFailed(act, err, nil)
		}
		return &Result{Outcome: OutcomeExecuted, Output: result}
	}
	return e.executionFailed(act,
		cerr.NewError(cerr.Internal, fmt.Sprintf("unexpected action kind %s", act.Kind()), nil), nil)
}

// executionFailed reports an approved action whose side effect did not
// complete. Failures are reported once and never retried.
func (e *Engine) executionFailed(act *action.Action, err error, res *bridge.InvokeResult) *Result {
	e.auditor.Record(audit.EventExecutionFailed, map[string]any{
		"kind":   act.Kind().String(),
		"target": act.Target(),
		"error":  err.Error(),
	})
	result := &Result{Outcome: OutcomeExecutionFailed, Reason: err.Error()}
	if res != nil {
		result.Output = res.Stdout
	}
	return result
}

func (e *Engine) writeFile(ctx context.Context, path, content string) error {
	// An interrupted action must not leave a write behind.
	if err := ctx.Err(); err != nil {
		return cerr.NewError(cerr.Canceled, "edit canceled", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return cerr.NewError(cerr.Internal, "failed to create parent directory", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return cerr.NewError(cerr.Internal, "failed to write file", err)
	}
	return nil
}

// editDiff renders a unified diff between the file's current content and the
// proposed content. A missing file diffs against emptiness.
func (e *Engine) editDiff(path, proposed string) string {
	current := ""
	if data, err := os.ReadFile(path); err == nil {
		current = string(data)
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(current),
		B:        difflib.SplitLines(proposed),
		FromFile: path + " (current)",
		ToFile:   path + " (proposed)",
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return diff
}

func rateClass(kind action.Kind) ratelimit.Class {
	if kind == action.KindFetchResource {
		return ratelimit.ClassAPICall
	}
	return ratelimit.ClassCommand
}
