// Package sanitize strips dangerous byte and text patterns from free-text
// input before it is used as a tool payload or forwarded to the model.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kazz187/agentgate/pkg/cerr"
)

// MaxInputLength is the hard ceiling on sanitizable input, in characters.
const MaxInputLength = 10000

var (
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)
	scriptBlocks  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	javascriptURL = regexp.MustCompile(`(?i)javascript:`)
	dataHTMLURL   = regexp.MustCompile(`(?i)data:text/html`)
)

// Sanitize validates and cleans free-text input.
//
// The size check runs before any transformation so oversized input is
// rejected at minimal cost. Byte-level stripping runs before structural
// stripping, and whitespace normalization runs last because the earlier
// passes can leave new whitespace runs behind. Sanitizing already-clean
// text returns it unchanged.
func Sanitize(input string) (string, error) {
	// The ceiling counts characters, not bytes, so multibyte text is not
	// penalized for its encoding.
	if utf8.RuneCountInString(input) > MaxInputLength {
		return "", cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("input exceeds maximum length of %d", MaxInputLength), nil)
	}

	cleaned := controlChars.ReplaceAllString(input, "")
	cleaned = scriptBlocks.ReplaceAllString(cleaned, "")
	cleaned = javascriptURL.ReplaceAllString(cleaned, "")
	cleaned = dataHTMLURL.ReplaceAllString(cleaned, "")

	return strings.Join(strings.Fields(cleaned), " "), nil
}
