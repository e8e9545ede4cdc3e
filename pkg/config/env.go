package config

import (
	"os"
	"regexp"
	"strings"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references with values
// from the environment. Unset variables without a default expand to the
// empty string.
func ExpandEnv(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name := parts[1]
		fallback := parts[3]

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return fallback
	})
}

// ExpandEnvStrict behaves like ExpandEnv but reports variables that were
// referenced without a default and are unset.
func ExpandEnvStrict(input string) (string, []string) {
	var missing []string
	result := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		name := parts[1]
		hasFallback := strings.HasPrefix(parts[2], ":-")
		fallback := parts[3]

		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if !hasFallback {
			missing = append(missing, name)
		}
		return fallback
	})
	return result, missing
}
