// Package nozemerr defines the tagged error kinds a build can fail with:
// user configuration mistakes, a failed build/test command, and build
// graph invariant violations. Each carries enough context to print a
// useful single-line summary without a stack trace.
package nozemerr

import (
	"fmt"
	"strings"
)

// ConfigError is a user configuration mistake: a missing nozem.json, an
// unknown unit identifier, a workspace root that can't be found. Reported
// as a single-line message, exit code 1, no stack trace.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// ConfigErrorf creates a ConfigError with a formatted message.
func ConfigErrorf(format string, args ...any) error {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// BuildError captures everything needed to explain why a unit's build or
// test command failed: the command line, the directory it ran in, the
// environment it saw, its exit code, and tails of its stdout/stderr. Error
// prints a concise single-line summary; the full detail is expected to
// already have been written to stderr by the caller before this is
// returned (see sandbox.Execute).
type BuildError struct {
	Command  string
	Cwd      string
	Env      []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("command %q exited %d (cwd=%s)", e.Command, e.ExitCode, e.Cwd)
}

// StderrTail returns the last n lines of captured stderr, for a compact
// diagnostic without reproducing the full (possibly multi-megabyte) output.
func (e *BuildError) StderrTail(n int) string {
	return tail(e.Stderr, n)
}

// StdoutTail returns the last n lines of captured stdout.
func (e *BuildError) StdoutTail(n int) string {
	return tail(e.Stdout, n)
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// GraphErrorKind distinguishes the ways a build graph can be invalid.
type GraphErrorKind int

const (
	// GraphEmpty means no nodes are buildable at startup.
	GraphEmpty GraphErrorKind = iota
	// GraphCycle means the dependency graph contains a cycle.
	GraphCycle
	// GraphMissingDependency means a declared dependency edge points at an
	// identifier with no matching unit.
	GraphMissingDependency
)

// GraphError reports a fatal build graph invariant violation: an empty
// graph, a dependency cycle, or a reference to a nonexistent unit.
type GraphError struct {
	Kind        GraphErrorKind
	Identifiers []string
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case GraphEmpty:
		return "no nodes are buildable"
	case GraphCycle:
		return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Identifiers, " -> "))
	case GraphMissingDependency:
		return fmt.Sprintf("dependency not found: %s", strings.Join(e.Identifiers, ", "))
	default:
		return "build graph error"
	}
}
