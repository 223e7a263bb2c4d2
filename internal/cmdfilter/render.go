package cmdfilter

import (
	"bytes"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Render returns a normalized rendering of the command for operator prompts
// and audit detail. Unparseable input is returned trimmed but otherwise
// unchanged.
func Render(command string) string {
	input := strings.TrimSpace(command)
	if input == "" {
		return ""
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(true))
	prog, err := parser.Parse(strings.NewReader(input), "")
	if err != nil {
		return input
	}
	printer := syntax.NewPrinter(syntax.SpaceRedirects(true))
	var buf bytes.Buffer
	if err := printer.Print(&buf, prog); err != nil {
		return input
	}
	return strings.TrimRight(buf.String(), "\n")
}
