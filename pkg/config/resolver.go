package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/rs/zerolog/log"
)

// LookupFunc looks up an environment variable, reporting whether it is set.
// os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// envMarker matches string scalars that designate an environment variable
// indirection. Anything else, including "ENV:" embedded mid-string, passes
// through unchanged.
var envMarker = regexp.MustCompile(`^ENV:([A-Za-z_][A-Za-z0-9_]*)$`)

// ResolveEnv walks the raw configuration tree depth-first and replaces every
// string scalar of the form "ENV:NAME" with the value of the environment
// variable NAME. An unset variable causes the containing field (or sequence
// element) to be dropped from the resolved tree; the drop is recorded as
// path -> variable name so the schema validator can report a missing
// required field as an environment error rather than a structural one.
//
// The input tree is never mutated; a set-but-empty variable substitutes the
// empty string.
func ResolveEnv(raw map[string]any, lookup LookupFunc) (map[string]any, map[string]string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r := &envResolver{lookup: lookup, dropped: make(map[string]string)}
	return r.resolveMap(raw, ""), r.dropped
}

type envResolver struct {
	lookup  LookupFunc
	dropped map[string]string
}

func (r *envResolver) resolveMap(in map[string]any, path string) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		childPath := joinPath(path, key)
		resolved, keep := r.resolveValue(value, childPath)
		if keep {
			out[key] = resolved
		}
	}
	return out
}

func (r *envResolver) resolveSlice(in []any, path string) []any {
	out := make([]any, 0, len(in))
	for i, value := range in {
		resolved, keep := r.resolveValue(value, indexPath(path, i))
		if keep {
			out = append(out, resolved)
		}
	}
	return out
}

func (r *envResolver) resolveValue(value any, path string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return r.resolveMap(v, path), true
	case []any:
		return r.resolveSlice(v, path), true
	case string:
		m := envMarker.FindStringSubmatch(v)
		if m == nil {
			return v, true
		}
		name := m[1]
		resolved, ok := r.lookup(name)
		if !ok {
			log.Warn().
				Str("path", path).
				Str("env_var", name).
				Msg("environment variable not set, dropping field")
			r.dropped[path] = name
			return nil, false
		}
		log.Debug().
			Str("path", path).
			Str("env_var", name).
			Msg("substituted environment variable")
		return resolved, true
	default:
		return v, true
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
