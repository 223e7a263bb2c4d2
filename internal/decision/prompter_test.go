package decision

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/agentgate/internal/action"
	"github.com/kazz187/agentgate/pkg/cerr"
)

func confirmWith(t *testing.T, input string) (Choice, error, string) {
	t.Helper()
	act, err := action.NewRunCommand("make test", action.OriginModel)
	require.NoError(t, err)

	var out bytes.Buffer
	p := NewTerminalPrompter(strings.NewReader(input), &out)
	choice, err := p.Confirm(context.Background(), ConfirmRequest{Action: act, Display: "make test"})
	return choice, err, out.String()
}

func TestTerminalPrompter_Answers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Choice
	}{
		{"yes once", "y\n", ChoiceOnce},
		{"yes spelled out", "yes\n", ChoiceOnce},
		{"always", "a\n", ChoiceRemember},
		{"legacy always spelling", "ya\n", ChoiceRemember},
		{"no", "n\n", ChoiceDecline},
		{"uppercase accepted", "Y\n", ChoiceOnce},
		{"retries until valid answer", "maybe\nn\n", ChoiceDecline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			choice, err, _ := confirmWith(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, choice)
		})
	}
}

func TestTerminalPrompter_ClosedInputDeclines(t *testing.T) {
	choice, err, _ := confirmWith(t, "")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Canceled))
	assert.Equal(t, ChoiceDecline, choice)
}

func TestTerminalPrompter_InterruptUnblocksPrompt(t *testing.T) {
	act, err := action.NewRunCommand("make test", action.OriginModel)
	require.NoError(t, err)

	// A pipe with no writer keeps the prompt waiting for an answer.
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	p := NewTerminalPrompter(pr, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	choice, err := p.Confirm(ctx, ConfirmRequest{Action: act, Display: "make test"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Canceled))
	assert.Equal(t, ChoiceDecline, choice)
}

func TestTerminalPrompter_AnswerAfterInterruptIsDiscarded(t *testing.T) {
	act, err := action.NewRunCommand("make test", action.OriginModel)
	require.NoError(t, err)

	// The approval is already on the input when the prompt starts, but the
	// action was interrupted first. The answer must not be honored.
	p := NewTerminalPrompter(strings.NewReader("y\n"), &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	choice, err := p.Confirm(ctx, ConfirmRequest{Action: act, Display: "make test"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Canceled))
	assert.Equal(t, ChoiceDecline, choice)
}

func TestTerminalPrompter_ShowsQuestionAndRetryHint(t *testing.T) {
	_, _, out := confirmWith(t, "maybe\ny\n")
	assert.Contains(t, out, `Run command "make test"?`)
	assert.Contains(t, out, "please answer y, a, or n")
}

func TestDenyAllPrompter(t *testing.T) {
	choice, err := DenyAllPrompter{}.Confirm(context.Background(), ConfirmRequest{})
	require.NoError(t, err)
	assert.Equal(t, ChoiceDecline, choice)
}
