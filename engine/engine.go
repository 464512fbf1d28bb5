// Package engine runs instrumentation scripts inside external JavaScript
// runtimes. Each Kind wraps the caller's script in a prelude that defines
// now, globalEval, readFile, report and the ENV global for that runtime.
package engine

import (
	"fmt"
	"strings"
)

// Kind selects a runtime and mode.
type Kind int

const (
	// JSCJIT is JavaScriptCore with the JIT enabled.
	JSCJIT Kind = iota
	// JSCNoJIT is JavaScriptCore with the JIT disabled.
	JSCNoJIT
	// Node is Node.js.
	Node
)

// jitToggle is read by JavaScriptCore at startup.
const jitToggle = "JSC_useJIT"

// KnownKinds returns every supported kind in the default run order.
func KnownKinds() []Kind {
	return []Kind{JSCJIT, JSCNoJIT, Node}
}

// Tag returns the engine tag appended to every reported label.
func (k Kind) Tag() string {
	switch k {
	case JSCJIT:
		return "jsc_jit"
	case JSCNoJIT:
		return "jsc_nojit"
	case Node:
		return "node"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) String() string {
	return k.Tag()
}

// ParseKind returns the kind whose tag is s.
func ParseKind(s string) (Kind, error) {
	for _, k := range KnownKinds() {
		if k.Tag() == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown engine %q", s)
}

// KnownTags returns the tags of every supported kind.
func KnownTags() []string {
	kinds := KnownKinds()
	tags := make([]string, len(kinds))

	for i, k := range kinds {
		tags[i] = k.Tag()
	}

	return tags
}

// DefaultBinary returns the executable name looked up on PATH for k.
func (k Kind) DefaultBinary() string {
	switch k {
	case JSCJIT, JSCNoJIT:
		return "jsc"
	default:
		return "node"
	}
}

// Environ returns a fresh environment for a child of kind k, derived from
// base. The JIT toggle is always set for JavaScriptCore kinds and always
// removed for Node. base is not modified.
func (k Kind) Environ(base []string) []string {
	env := make([]string, 0, len(base)+1)

	for _, kv := range base {
		if strings.HasPrefix(kv, jitToggle+"=") {
			continue
		}
		env = append(env, kv)
	}

	switch k {
	case JSCJIT:
		env = append(env, jitToggle+"=yes")
	case JSCNoJIT:
		env = append(env, jitToggle+"=no")
	}

	return env
}
