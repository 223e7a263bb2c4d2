package decision

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/kazz187/agentgate/internal/action"
	"github.com/kazz187/agentgate/pkg/cerr"
)

// Choice is the operator's answer to a confirmation request.
type Choice int32

const (
	// ChoiceOnce approves this invocation only; nothing is persisted.
	ChoiceOnce Choice = iota
	// ChoiceRemember approves and persists the target for unattended reuse
	// within the current project.
	ChoiceRemember
	// ChoiceDecline refuses the invocation.
	ChoiceDecline
)

// ConfirmRequest carries everything the operator needs to decide.
type ConfirmRequest struct {
	Action *action.Action
	// Display is the rendered form of the target (normalized command, path).
	Display string
	// Diff is a unified diff of the proposed edit, empty for non-edits.
	Diff string
}

// Prompter is the synchronous request/response boundary for operator
// escalation. The terminal implementation blocks until resolved; swapping in
// a policy implementation (for example default-deny) changes nothing in the
// engine's shape.
type Prompter interface {
	Confirm(ctx context.Context, req ConfirmRequest) (Choice, error)
}

// TerminalPrompter asks the operator on the terminal. The wait is resolved by
// an operator answer, the input closing, or the action being interrupted.
// An answer that races with an interrupt is discarded, never honored.
type TerminalPrompter struct {
	in      *bufio.Reader
	out     io.Writer
	once    sync.Once
	lines   chan readResult
	readErr error
}

type readResult struct {
	text string
	err  error
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan readResult),
	}
}

// readLines feeds operator input to Confirm. A single reader goroutine serves
// every prompt so an interrupted prompt cannot race a later one for input.
func (p *TerminalPrompter) readLines() {
	for {
		line, err := p.in.ReadString('\n')
		p.lines <- readResult{text: line, err: err}
		if err != nil {
			return
		}
	}
}

func (p *TerminalPrompter) Confirm(ctx context.Context, req ConfirmRequest) (Choice, error) {
	p.once.Do(func() { go p.readLines() })

	if req.Diff != "" {
		p.printDiff(req.Diff)
	}

	var question string
	switch req.Action.Kind() {
	case action.KindEditFile:
		question = fmt.Sprintf("Apply edit to %s?", req.Display)
	case action.KindFetchResource:
		question = fmt.Sprintf("Fetch %s from %s?", req.Display, req.Action.Server())
	default:
		question = fmt.Sprintf("Run command %q?", req.Display)
	}

	for {
		if p.readErr != nil {
			return ChoiceDecline, cerr.NewError(cerr.Canceled, "operator input closed", p.readErr)
		}
		_, _ = color.New(color.FgYellow, color.Bold).Fprintf(p.out, "%s ", question)
		fmt.Fprint(p.out, "[y]es once / [a]lways for this project / [n]o: ")

		select {
		case <-ctx.Done():
			return ChoiceDecline, cerr.NewError(cerr.Canceled, "confirmation interrupted", ctx.Err())
		case res := <-p.lines:
			if res.err != nil {
				// EOF or closed input: there is no operator to ask.
				p.readErr = res.err
				return ChoiceDecline, cerr.NewError(cerr.Canceled, "operator input closed", res.err)
			}
			// An answer that arrives after an interrupt is not an approval.
			if ctx.Err() != nil {
				return ChoiceDecline, cerr.NewError(cerr.Canceled, "confirmation interrupted", ctx.Err())
			}
			switch strings.ToLower(strings.TrimSpace(res.text)) {
			case "y", "yes":
				return ChoiceOnce, nil
			case "a", "always", "ya":
				return ChoiceRemember, nil
			case "n", "no":
				return ChoiceDecline, nil
			}
			fmt.Fprintln(p.out, "please answer y, a, or n")
		}
	}
}

func (p *TerminalPrompter) printDiff(diff string) {
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			_, _ = color.New(color.FgGreen).Fprintln(p.out, line)
		case strings.HasPrefix(line, "-"):
			_, _ = color.New(color.FgRed).Fprintln(p.out, line)
		case strings.HasPrefix(line, "@@"):
			_, _ = color.New(color.FgCyan).Fprintln(p.out, line)
		default:
			fmt.Fprintln(p.out, line)
		}
	}
}

// DenyAllPrompter refuses every escalation. It is the non-interactive policy
// for unattended runs.
type DenyAllPrompter struct{}

func (DenyAllPrompter) Confirm(_ context.Context, _ ConfirmRequest) (Choice, error) {
	return ChoiceDecline, nil
}
