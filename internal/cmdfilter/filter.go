// Package cmdfilter gives a static allow/deny verdict on a shell command
// string, independent of any stored permission. It blocks known-bad shapes
// from fixed pattern tables plus a structural scan of the parsed command.
//
// This is a conservative filter, not a sandbox: a command that passes is not
// guaranteed safe, only free of the shapes listed here.
package cmdfilter

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// dangerousExecutables are first tokens that are denied outright.
var dangerousExecutables = map[string]struct{}{
	"rm":     {},
	"del":    {},
	"format": {},
	"fdisk":  {},
	"mkfs":   {},
	"dd":     {},
	"sudo":   {},
	"su":     {},
	"chmod":  {},
	"chown":  {},
	"passwd": {},
	"curl":   {},
	"wget":   {},
	"nc":     {},
	"netcat": {},
	"telnet": {},
	"eval":   {},
	"exec":   {},
}

// dangerousLeadingPairs are two-token prefixes that are denied outright.
var dangerousLeadingPairs = map[string]struct{}{
	"python -c": {},
	"perl -e":   {},
}

type injectionPattern struct {
	name string
	re   *regexp.Regexp
}

var injectionPatterns = []injectionPattern{
	{"chain_into_rm", regexp.MustCompile(`(?i);\s*rm\s+`)},
	{"chain_into_rm", regexp.MustCompile(`(?i)&&\s*rm\s+`)},
	{"pipe_to_shell", regexp.MustCompile(`(?i)\|\s*sh\s*`)},
	{"command_substitution", regexp.MustCompile("`[^`]*`")},
	{"command_substitution", regexp.MustCompile(`\$\([^)]*\)`)},
	{"device_redirection", regexp.MustCompile(`>\s*/dev/`)},
	{"device_redirection", regexp.MustCompile(`<\s*/dev/`)},
}

// shellNames are interpreters that make a pipeline dangerous when they appear
// as a downstream member.
var shellNames = map[string]struct{}{
	"sh":   {},
	"bash": {},
	"zsh":  {},
	"dash": {},
	"ksh":  {},
}

// IsAllowed reports whether the command passes the static filter.
// It is a pure function of the pattern tables and never panics.
func IsAllowed(command string) bool {
	_, allowed := Explain(command)
	return allowed
}

// Explain returns the name of the rule that denied the command, or ok=true
// when no rule matched. The rule name is recorded as audit detail.
func Explain(command string) (rule string, allowed bool) {
	fields := strings.Fields(strings.ToLower(command))
	if len(fields) > 0 {
		if _, ok := dangerousExecutables[fields[0]]; ok {
			return "dangerous_executable", false
		}
	}
	if len(fields) > 1 {
		if _, ok := dangerousLeadingPairs[fields[0]+" "+fields[1]]; ok {
			return "dangerous_executable", false
		}
	}

	for _, p := range injectionPatterns {
		if p.re.MatchString(command) {
			return p.name, false
		}
	}

	// Structural pass: the parser catches substitutions and redirections the
	// line-oriented patterns miss (nested in quotes, unusual spacing).
	if rule, ok := scanSyntax(command); !ok {
		return rule, false
	}

	return "", true
}

// scanSyntax parses the command and walks the AST for injection shapes.
// Unparseable input falls back to the pattern-table verdict already taken.
func scanSyntax(command string) (rule string, allowed bool) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	prog, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return "", true
	}

	rule = ""
	syntax.Walk(prog, func(node syntax.Node) bool {
		if rule != "" {
			return false
		}
		switch n := node.(type) {
		case *syntax.CmdSubst:
			rule = "command_substitution"
			return false
		case *syntax.BinaryCmd:
			if n.Op == syntax.Pipe || n.Op == syntax.PipeAll {
				if isShellInvocation(n.Y) {
					rule = "pipe_to_shell"
					return false
				}
			}
		case *syntax.Redirect:
			if n.Word != nil && strings.HasPrefix(wordText(n.Word), "/dev/") {
				rule = "device_redirection"
				return false
			}
		}
		return true
	})
	return rule, rule == ""
}

// isShellInvocation reports whether the statement's command is a bare shell.
func isShellInvocation(stmt *syntax.Stmt) bool {
	if stmt == nil {
		return false
	}
	call, ok := stmt.Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) == 0 {
		return false
	}
	name := wordText(call.Args[0])
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	_, isShell := shellNames[name]
	return isShell
}

// wordText concatenates the literal parts of a word, ignoring expansions.
func wordText(w *syntax.Word) string {
	var sb strings.Builder
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok {
			sb.WriteString(lit.Value)
		}
	}
	return sb.String()
}
