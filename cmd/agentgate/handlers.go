package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/kazz187/agentgate/internal/audit"
	"github.com/kazz187/agentgate/internal/bridge"
	"github.com/kazz187/agentgate/internal/mode"
	"github.com/kazz187/agentgate/internal/toolserver"
)

func (c *components) handleModeGet(ctx context.Context) error {
	current, err := c.modes.Current(ctx)
	if err != nil {
		return err
	}
	fmt.Println(current.String())
	return nil
}

func (c *components) handleModeSet(ctx context.Context, name string) error {
	m, err := mode.Parse(name)
	if err != nil {
		return err
	}
	if err := c.modes.Set(ctx, m); err != nil {
		return err
	}
	fmt.Printf("Mode set to %s\n", m)
	return nil
}

func (c *components) handlePermissionList(ctx context.Context) error {
	set, err := c.perms.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Allow:")
	for _, t := range set.Allow {
		fmt.Printf("  %s\n", t)
	}
	fmt.Println("Deny:")
	for _, t := range set.Deny {
		fmt.Printf("  %s\n", t)
	}
	fmt.Println("Remembered:")
	for project, cmds := range set.AllowedCmds {
		for _, t := range cmds {
			fmt.Printf("  %s (%s)\n", t, project)
		}
	}
	return nil
}

func (c *components) handlePermissionAllow(ctx context.Context, target string) error {
	set, err := c.perms.Get(ctx)
	if err != nil {
		return err
	}
	set.AddAllow(target)
	if err := c.perms.Update(ctx, set); err != nil {
		return err
	}
	fmt.Printf("Allowed %q\n", target)
	return nil
}

func (c *components) handlePermissionDeny(ctx context.Context, target string) error {
	set, err := c.perms.Get(ctx)
	if err != nil {
		return err
	}
	set.AddDeny(target)
	if err := c.perms.Update(ctx, set); err != nil {
		return err
	}
	fmt.Printf("Denied %q\n", target)
	return nil
}

func (c *components) handlePermissionForget(ctx context.Context, target string) error {
	set, err := c.perms.Get(ctx)
	if err != nil {
		return err
	}
	if err := set.Forget(target, c.projectDir); err != nil {
		return err
	}
	if err := c.perms.Update(ctx, set); err != nil {
		return err
	}
	fmt.Printf("Forgot %q for %s\n", target, c.projectDir)
	return nil
}

func (c *components) handleToolList(ctx context.Context) error {
	defs, err := c.tools.List(ctx)
	if err != nil {
		return err
	}
	for _, def := range defs {
		args := ""
		if len(def.Args) > 0 {
			args = " " + strings.Join(def.Args, " ")
		}
		fmt.Printf("%s\t%s\t%s%s\n", def.Name, def.EffectiveTransport(), def.Command, args)
	}
	return nil
}

// handleToolPrompt executes a named prompt on a tool server. The call is
// operator-initiated so it skips escalation, but it still goes through the
// one-shot bridge protocol and is audited like any other execution.
func (c *components) handleToolPrompt(ctx context.Context, server, prompt, arguments string) error {
	def, err := c.tools.Get(ctx, server)
	if err != nil {
		return err
	}
	result, err := c.bridge.CallTool(ctx, def, bridge.ExecutePromptRequest(prompt, arguments))
	if err != nil {
		c.auditor.Record(audit.EventExecutionFailed, map[string]any{
			"kind":   "execute_prompt",
			"target": prompt,
			"server": server,
			"error":  err.Error(),
		})
		return err
	}
	c.auditor.Record(audit.EventCommandAllowed, map[string]any{
		"kind":   "execute_prompt",
		"target": prompt,
		"server": server,
	})
	fmt.Println(result)
	return nil
}

func (c *components) handleToolAdd(ctx context.Context, name, command string, args []string) error {
	def := &toolserver.Definition{
		Name:      name,
		Transport: toolserver.TransportStdio,
		Command:   command,
		Args:      args,
	}
	if err := c.tools.Upsert(ctx, def); err != nil {
		return err
	}
	fmt.Printf("Registered tool server %s\n", name)
	return nil
}
