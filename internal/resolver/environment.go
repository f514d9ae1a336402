package resolver

import (
	"os"
	"strings"
)

// Environment is an explicit snapshot of environment variables, resolved
// once at the top of a run and threaded through detection and credential
// injection. Keeping it a plain map makes every detection path testable
// without touching the process environment.
type Environment map[string]string

// OSEnvironment snapshots the current process environment.
func OSEnvironment() Environment {
	env := make(Environment)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Get returns the value for key, or "" when unset.
func (e Environment) Get(key string) string {
	return e[key]
}
