package decision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agentgate/internal/action"
	"github.com/kazz187/agentgate/internal/audit"
	"github.com/kazz187/agentgate/internal/bridge"
	"github.com/kazz187/agentgate/internal/mode"
	"github.com/kazz187/agentgate/internal/pathguard"
	"github.com/kazz187/agentgate/internal/permission"
	"github.com/kazz187/agentgate/internal/ratelimit"
	"github.com/kazz187/agentgate/internal/toolserver"
)

// fakeSettings backs both the mode controller and the permission store.
type fakeSettings struct {
	mode  string
	perms *permission.Set
}

func (f *fakeSettings) Mode(_ context.Context) (string, error) { return f.mode, nil }
func (f *fakeSettings) UpdateMode(_ context.Context, s string) error {
	f.mode = s
	return nil
}
func (f *fakeSettings) Permissions(_ context.Context) (*permission.Set, error) {
	return f.perms, nil
}
func (f *fakeSettings) UpdatePermissions(_ context.Context, set *permission.Set) error {
	f.perms = set
	return nil
}

// scriptedPrompter answers with a fixed choice and counts how often it was
// asked.
type scriptedPrompter struct {
	choice  Choice
	err     error
	asked   int
	lastReq ConfirmRequest
}

func (p *scriptedPrompter) Confirm(_ context.Context, req ConfirmRequest) (Choice, error) {
	p.asked++
	p.lastReq = req
	return p.choice, p.err
}

// fakeExecutor records invocations instead of spawning subprocesses.
type fakeExecutor struct {
	invoked   []string
	toolCalls []bridge.ToolRequest
	invokeErr error
	toolErr   error
	stdout    string
	toolOut   string
}

func (f *fakeExecutor) Invoke(_ context.Context, command, _ string) (*bridge.InvokeResult, error) {
	f.invoked = append(f.invoked, command)
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return &bridge.InvokeResult{Stdout: f.stdout}, nil
}

func (f *fakeExecutor) CallTool(_ context.Context, _ *toolserver.Definition, req bridge.ToolRequest) (string, error) {
	f.toolCalls = append(f.toolCalls, req)
	if f.toolErr != nil {
		return "", f.toolErr
	}
	return f.toolOut, nil
}

type fakeToolRepo struct {
	defs map[string]*toolserver.Definition
}

func (f *fakeToolRepo) Get(_ context.Context, name string) (*toolserver.Definition, error) {
	def, ok := f.defs[name]
	if !ok {
		return nil, errors.New("tool server not found")
	}
	return def, nil
}

func (f *fakeToolRepo) List(_ context.Context) ([]*toolserver.Definition, error) { return nil, nil }
func (f *fakeToolRepo) Upsert(_ context.Context, _ *toolserver.Definition) error { return nil }

type engineFixture struct {
	engine     *Engine
	settings   *fakeSettings
	prompter   *scriptedPrompter
	executor   *fakeExecutor
	projectDir string
	auditPath  string
}

func newFixture(t *testing.T, opts ...func(*Config)) *engineFixture {
	t.Helper()
	configDir := t.TempDir()
	auditor, err := audit.NewLogger(configDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auditor.Close() })

	st := &fakeSettings{perms: permission.NewSet()}
	prompter := &scriptedPrompter{choice: ChoiceOnce}
	executor := &fakeExecutor{stdout: "done\n"}
	projectDir := t.TempDir()

	cfg := Config{
		Modes:      mode.NewController(st, auditor),
		Perms:      permission.NewStore(st),
		Limiter:    ratelimit.NewLimiter(),
		Guard:      pathguard.NewGuardian(),
		Auditor:    auditor,
		Executor:   executor,
		Tools:      &fakeToolRepo{defs: map[string]*toolserver.Definition{"docs": {Name: "docs", Command: "docs-server"}}},
		Prompter:   prompter,
		History:    NewHistory(),
		ProjectDir: projectDir,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &engineFixture{
		engine:     NewEngine(cfg),
		settings:   st,
		prompter:   prompter,
		executor:   executor,
		projectDir: projectDir,
		auditPath:  filepath.Join(configDir, "logs", "security.log"),
	}
}

func (f *engineFixture) auditLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.auditPath)
	require.NoError(t, err)
	return string(data)
}

func mustRunCommand(t *testing.T, command string) *action.Action {
	t.Helper()
	act, err := action.NewRunCommand(command, action.OriginModel)
	require.NoError(t, err)
	return act
}

func mustEditFile(t *testing.T, path, content string) *action.Action {
	t.Helper()
	act, err := action.NewEditFile(path, content, action.OriginModel)
	require.NoError(t, err)
	return act
}

func TestEngine_RememberFlow(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceRemember
	ctx := context.Background()

	res, err := f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, "done\n", res.Output)
	assert.Equal(t, 1, f.prompter.asked)
	assert.Equal(t, []string{"make test"}, f.executor.invoked)

	// The approval was persisted, so the same command runs again without
	// asking.
	res, err = f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, 1, f.prompter.asked)

	log := f.auditLog(t)
	assert.Contains(t, log, "command_remembered")
	assert.Contains(t, log, "command_allowed")
}

func TestEngine_OnceApprovalIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceOnce
	ctx := context.Background()

	_, err := f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	_, err = f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.prompter.asked)
}

func TestEngine_OperatorDecline(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceDecline

	res, err := f.engine.Decide(context.Background(), mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Empty(t, f.executor.invoked)
	assert.Contains(t, f.auditLog(t), "command_rejected")
}

func TestEngine_PrompterFailureRejects(t *testing.T) {
	f := newFixture(t)
	f.prompter.err = errors.New("operator input closed")

	res, err := f.engine.Decide(context.Background(), mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Empty(t, f.executor.invoked)
}

func TestEngine_PlanningModeNeverExecutes(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "planning"
	ctx := context.Background()

	res, err := f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePlanned, res.Outcome)
	assert.Equal(t, "Plan to run: make test", res.Reason)

	// Even a statically deniable command is merely described in planning.
	res, err = f.engine.Decide(ctx, mustRunCommand(t, "sudo rm -rf /"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePlanned, res.Outcome)

	assert.Empty(t, f.executor.invoked)
	assert.Equal(t, 0, f.prompter.asked)

	records := f.engine.History().Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Plan to run: make test", records[0].Description)
	assert.Contains(t, f.auditLog(t), "plan_recorded")
}

func TestEngine_PlanningModeEditAndFetchPhrasings(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "planning"
	ctx := context.Background()

	res, err := f.engine.Decide(ctx, mustEditFile(t, "notes.md", "x"))
	require.NoError(t, err)
	assert.Equal(t, "Plan to edit notes.md with new content.", res.Reason)

	fetch, err := action.NewFetchResource("docs", "docs://readme", action.OriginModel)
	require.NoError(t, err)
	res, err = f.engine.Decide(ctx, fetch)
	require.NoError(t, err)
	assert.Equal(t, "Plan to fetch resource docs://readme from docs", res.Reason)
}

func TestEngine_StaticDenyIsNotOverridable(t *testing.T) {
	f := newFixture(t)
	// Even an explicit allow entry cannot rescue a statically denied command.
	f.settings.perms.AddAllow("sudo rm -rf /")

	res, err := f.engine.Decide(context.Background(), mustRunCommand(t, "sudo rm -rf /"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Contains(t, res.Reason, "command blocked")
	assert.Empty(t, f.executor.invoked)
	assert.Equal(t, 0, f.prompter.asked)
	assert.Contains(t, f.auditLog(t), "command_blocked")
}

func TestEngine_DenyListBeatsAllowAndRemembered(t *testing.T) {
	f := newFixture(t)
	f.settings.perms.AddAllow("make deploy")
	require.NoError(t, f.settings.perms.Remember("make deploy", f.projectDir))
	f.settings.perms.AddDeny("make deploy")

	res, err := f.engine.Decide(context.Background(), mustRunCommand(t, "make deploy"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Equal(t, 0, f.prompter.asked)
	assert.Contains(t, f.auditLog(t), "command_denied")
}

func TestEngine_AutoApplyCoversEditsOnly(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "auto-apply"
	ctx := context.Background()

	target := filepath.Join(f.projectDir, "notes.md")
	res, err := f.engine.Decide(ctx, mustEditFile(t, target, "hello world"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, 0, f.prompter.asked)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	// Commands still escalate under auto-apply.
	_, err = f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.prompter.asked)
}

func TestEngine_EditWritesSanitizedPayload(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "auto-apply"

	target := filepath.Join(f.projectDir, "notes.md")
	res, err := f.engine.Decide(context.Background(),
		mustEditFile(t, target, "before <script>alert(1)</script>  after"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "before after", string(data))
}

func TestEngine_InterruptedEditDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "auto-apply"
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := filepath.Join(f.projectDir, "notes.md")
	res, err := f.engine.Decide(ctx, mustEditFile(t, target, "hello"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecutionFailed, res.Outcome)
	assert.NoFileExists(t, target)
	assert.Contains(t, f.auditLog(t), "execution_failed")
}

func TestEngine_OversizedPayloadIsDenied(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "auto-apply"

	target := filepath.Join(f.projectDir, "notes.md")
	res, err := f.engine.Decide(context.Background(),
		mustEditFile(t, target, strings.Repeat("a", 10001)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Contains(t, f.auditLog(t), "input_validation_failed")
	assert.NoFileExists(t, target)
}

func TestEngine_RestrictedPathIsDenied(t *testing.T) {
	f := newFixture(t)
	f.settings.mode = "auto-apply"

	res, err := f.engine.Decide(context.Background(), mustEditFile(t, "/etc/evil.conf", "x"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Contains(t, res.Reason, "file access denied")
	assert.Contains(t, f.auditLog(t), "file_access_denied")
}

func TestEngine_RateLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, func(cfg *Config) {
		cfg.Limiter = ratelimit.NewLimiter(
			ratelimit.WithLimit(ratelimit.ClassCommand, ratelimit.Limit{Count: 1, Window: time.Minute}),
			ratelimit.WithClock(func() time.Time { return now }),
		)
	})
	f.prompter.choice = ChoiceOnce
	ctx := context.Background()

	res, err := f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)

	res, err = f.engine.Decide(ctx, mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.Contains(t, res.Reason, "rate limit")
	assert.Contains(t, f.auditLog(t), "rate_limit_exceeded")
}

func TestEngine_ExecutionFailureIsReportedNotRetried(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceOnce
	f.executor.invokeErr = errors.New("command exited with status 2: missing target")

	res, err := f.engine.Decide(context.Background(), mustRunCommand(t, "make test"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecutionFailed, res.Outcome)
	assert.Contains(t, res.Reason, "status 2")
	// Exactly one attempt.
	assert.Equal(t, []string{"make test"}, f.executor.invoked)
	assert.Contains(t, f.auditLog(t), "execution_failed")
}

func TestEngine_FetchResource(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceOnce
	f.executor.toolOut = "# Readme"

	fetch, err := action.NewFetchResource("docs", "docs://readme", action.OriginModel)
	require.NoError(t, err)
	res, err := f.engine.Decide(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecuted, res.Outcome)
	assert.Equal(t, "# Readme", res.Output)
	require.Len(t, f.executor.toolCalls, 1)
	assert.Equal(t, "fetch_resource", f.executor.toolCalls[0].Type)
	assert.Equal(t, "docs://readme", f.executor.toolCalls[0].URI)
}

func TestEngine_FetchResourceUnknownServerFails(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceOnce

	fetch, err := action.NewFetchResource("missing", "docs://readme", action.OriginModel)
	require.NoError(t, err)
	res, err := f.engine.Decide(context.Background(), fetch)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExecutionFailed, res.Outcome)
	assert.Empty(t, f.executor.toolCalls)
}

func TestEngine_PromptShowsNormalizedCommandAndDiff(t *testing.T) {
	f := newFixture(t)
	f.prompter.choice = ChoiceDecline
	ctx := context.Background()

	_, err := f.engine.Decide(ctx, mustRunCommand(t, "ls    -la   docs"))
	require.NoError(t, err)
	assert.Equal(t, "ls -la docs", f.prompter.lastReq.Display)

	target := filepath.Join(f.projectDir, "notes.md")
	require.NoError(t, os.WriteFile(target, []byte("old line\n"), 0o644))
	_, err = f.engine.Decide(ctx, mustEditFile(t, target, "new line"))
	require.NoError(t, err)
	assert.Contains(t, f.prompter.lastReq.Diff, "-old line")
	assert.Contains(t, f.prompter.lastReq.Diff, "+new line")
	assert.Contains(t, f.prompter.lastReq.Diff, target+" (current)")
}
