package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sourcegraph/conc"

	"github.com/kazz187/agentgate/internal/toolserver"
	"github.com/kazz187/agentgate/pkg/cerr"
)

// ToolRequest is the single JSON object written to an auxiliary tool server.
type ToolRequest struct {
	Type      string `json:"type"`
	URI       string `json:"uri,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// FetchResourceRequest builds a resource fetch request.
func FetchResourceRequest(uri string) ToolRequest {
	return ToolRequest{Type: "fetch_resource", URI: uri}
}

// ExecutePromptRequest builds a named-prompt execution request.
func ExecutePromptRequest(prompt, arguments string) ToolRequest {
	return ToolRequest{Type: "execute_prompt", Prompt: prompt, Arguments: arguments}
}

// ToolResponse is the single JSON object read back from a tool server.
type ToolResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// CallTool spawns the tool server, writes one newline-terminated JSON
// request, closes the input stream, and reads the whole output stream as one
// JSON response. Exactly one request and one response per subprocess
// lifetime. An error field, stderr output, or non-JSON output is an
// execution failure carrying the detail text.
func (b *Bridge) CallTool(ctx context.Context, def *toolserver.Definition, req ToolRequest) (string, error) {
	if def.EffectiveTransport() != toolserver.TransportStdio {
		return "", cerr.NewError(cerr.Unimplemented,
			fmt.Sprintf("transport %q not implemented", def.Transport), nil)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", cerr.NewError(cerr.Internal, "failed to marshal tool request", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, def.Command, def.Args...)
	env := os.Environ()
	for k, v := range def.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", cerr.NewError(cerr.Aborted, "failed to create stdin pipe", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", cerr.NewError(cerr.Aborted, "failed to create stdout pipe", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", cerr.NewError(cerr.Aborted, "failed to create stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return "", cerr.NewError(cerr.Aborted,
			fmt.Sprintf("failed to start tool server %s", def.Name), err)
	}

	var outBuf, errBuf bytes.Buffer
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		_, _ = io.Copy(&outBuf, stdoutPipe)
	})
	wg.Go(func() {
		_, _ = io.Copy(&errBuf, stderrPipe)
	})

	_, writeErr := stdin.Write(append(payload, '\n'))
	_ = stdin.Close()

	wg.Wait()
	waitErr := cmd.Wait()

	if ctxErr := execCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return "", cerr.NewError(cerr.Canceled,
				fmt.Sprintf("call to tool server %s canceled", def.Name), ctxErr)
		}
		return "", cerr.NewError(cerr.DeadlineExceeded,
			fmt.Sprintf("tool server %s did not respond within %s", def.Name, b.timeout), ctxErr)
	}
	if writeErr != nil {
		return "", cerr.NewError(cerr.Aborted,
			fmt.Sprintf("failed to write request to tool server %s", def.Name), writeErr)
	}
	if errText := errBuf.String(); errText != "" {
		return "", cerr.NewError(cerr.Aborted, firstLine(errText), waitErr)
	}
	if waitErr != nil {
		return "", cerr.NewError(cerr.Aborted,
			fmt.Sprintf("tool server %s exited abnormally", def.Name), waitErr)
	}

	var resp ToolResponse
	if err := json.Unmarshal(bytes.TrimSpace(outBuf.Bytes()), &resp); err != nil {
		return "", cerr.NewError(cerr.Aborted,
			fmt.Sprintf("tool server %s returned non-JSON output", def.Name), err)
	}
	if resp.Error != "" {
		return "", cerr.NewError(cerr.Aborted, resp.Error, nil)
	}
	return resp.Result, nil
}
