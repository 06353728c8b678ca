package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// ExpandEnvStrict expands ${VAR} references in s using lookup, or the process
// environment when lookup is nil.
//
// Semantics:
//   - `${VAR}` is replaced by the value of VAR; a missing VAR is an error.
//   - `$$` emits a literal `$`.
//   - A bare `$VAR` is left as is, since tokens may contain `$`.
func ExpandEnvStrict(s string, lookup LookupFunc) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	const dollarSentinel = "\x00LIBRARY_SECRET_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		v, ok := lookup(key)
		if !ok {
			missing[key] = struct{}{}
		}
		return v
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", fmt.Errorf("%w: %s", ErrMissingVariable, strings.Join(keys, ", "))
	}

	return strings.ReplaceAll(out, dollarSentinel, "$"), nil
}
