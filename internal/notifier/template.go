package notifier

import (
	"regexp"
	"strings"

	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// RenderTemplate substitutes named placeholders from a closed vocabulary.
// Any placeholder missing from vars fails with TemplateError; re-rendering
// cannot succeed without a template fix, so callers treat this as terminal.
func RenderTemplate(body string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		key := strings.Trim(match, "{}")
		val, ok := vars[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		return val
	})
	if missing != "" {
		return "", apperrors.Template(missing)
	}
	return out, nil
}
