package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app     = kingpin.New("agentgate", "Permission and security gate for CLI coding agents")
	project = app.Flag("project", "Project directory the session operates in").Default(".").String()

	// Session command
	runCmd      = app.Command("run", "Read action requests from stdin and gate each one")
	runNoPrompt = runCmd.Flag("no-prompt", "Deny every escalation instead of asking the operator").Bool()

	// Mode commands
	modeCmd = app.Command("mode", "Operating mode commands")

	modeGetCmd = modeCmd.Command("get", "Show the current operating mode")

	modeSetCmd  = modeCmd.Command("set", "Set the operating mode")
	modeSetName = modeSetCmd.Arg("mode", "One of: planning, confirm-each, auto-apply").Required().String()

	// Permission commands
	permCmd = app.Command("permission", "Permission list commands")

	permListCmd = permCmd.Command("list", "Show allow, deny, and remembered entries")

	permAllowCmd    = permCmd.Command("allow", "Add a target to the global allow-list")
	permAllowTarget = permAllowCmd.Arg("target", "Command or path to allow").Required().String()

	permDenyCmd    = permCmd.Command("deny", "Add a target to the global deny-list")
	permDenyTarget = permDenyCmd.Arg("target", "Command or path to deny").Required().String()

	permForgetCmd    = permCmd.Command("forget", "Remove a remembered target from this project")
	permForgetTarget = permForgetCmd.Arg("target", "Command to forget").Required().String()

	// Tool server commands
	toolCmd = app.Command("tool", "Auxiliary tool server commands")

	toolListCmd = toolCmd.Command("list", "List registered tool servers")

	toolAddCmd     = toolCmd.Command("add", "Register or replace a tool server")
	toolAddName    = toolAddCmd.Arg("name", "Tool server name").Required().String()
	toolAddCommand = toolAddCmd.Arg("command", "Executable to spawn").Required().String()
	toolAddArgs    = toolAddCmd.Arg("args", "Arguments for the executable").Strings()

	toolPromptCmd    = toolCmd.Command("prompt", "Execute a named prompt on a tool server")
	toolPromptServer = toolPromptCmd.Arg("server", "Tool server name").Required().String()
	toolPromptName   = toolPromptCmd.Arg("prompt", "Prompt name").Required().String()
	toolPromptArgs   = toolPromptCmd.Arg("arguments", "Prompt arguments").Default("").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx := context.Background()
	c, err := newComponents(*project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	switch command {
	case runCmd.FullCommand():
		err = c.runSession(ctx, *runNoPrompt)
	case modeGetCmd.FullCommand():
		err = c.handleModeGet(ctx)
	case modeSetCmd.FullCommand():
		err = c.handleModeSet(ctx, *modeSetName)
	case permListCmd.FullCommand():
		err = c.handlePermissionList(ctx)
	case permAllowCmd.FullCommand():
		err = c.handlePermissionAllow(ctx, *permAllowTarget)
	case permDenyCmd.FullCommand():
		err = c.handlePermissionDeny(ctx, *permDenyTarget)
	case permForgetCmd.FullCommand():
		err = c.handlePermissionForget(ctx, *permForgetTarget)
	case toolListCmd.FullCommand():
		err = c.handleToolList(ctx)
	case toolAddCmd.FullCommand():
		err = c.handleToolAdd(ctx, *toolAddName, *toolAddCommand, *toolAddArgs)
	case toolPromptCmd.FullCommand():
		err = c.handleToolPrompt(ctx, *toolPromptServer, *toolPromptName, *toolPromptArgs)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
