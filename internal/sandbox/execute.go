package sandbox

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nozem-build/nozem/internal/logger"
	"github.com/nozem-build/nozem/internal/nozemerr"
)

// maxBuffer bounds how much of a command's stdout/stderr is captured in
// memory. Large enough to accommodate a verbose test runner's output.
const maxBuffer = 8 * 1024 * 1024 // 8 MiB

// Execute runs command in a shell with PATH=bin/ and envOverride merged in
// (keys are used as given, except that a leading '&' on a key is stripped
// here). cwd is always the sandbox's current SrcDir.
//
// On failure, the command, its cwd, its full environment, exit code,
// stdout, and stderr are written to standard error and, when logDir is
// non-empty, to logDir/execute.log for post-mortem,
// and a nozemerr.BuildError carrying the same detail is returned. Error
// callers should print BuildError's single-line Error(), not the raw
// command output, matching the "concise single-line form" the CLI reports.
func (s *Sandbox) Execute(command string, envOverride map[string]string, logDir string) error {
	env := s.buildEnv(envOverride)

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = s.srcDir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &boundedWriter{buf: &stdout, limit: maxBuffer}
	cmd.Stderr = &boundedWriter{buf: &stderr, limit: maxBuffer}

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if runErr == nil {
		return nil
	}

	buildErr := &nozemerr.BuildError{
		Command:  command,
		Cwd:      s.srcDir,
		Env:      env,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	s.writeFailureLog(logDir, buildErr)
	logger.Log.Error().
		Str("command", command).
		Str("cwd", s.srcDir).
		Int("exitCode", exitCode).
		Msg("sandbox command failed")

	return buildErr
}

func (s *Sandbox) buildEnv(envOverride map[string]string) []string {
	env := []string{"PATH=" + s.binDir}
	for k, v := range envOverride {
		env = append(env, strings.TrimPrefix(k, "&")+"="+v)
	}
	return env
}

// writeFailureLog writes the full command, cwd, env, exit code, stdout,
// and stderr to standard error and, when logDir is non-empty, to
// logDir/execute.log. Failing to write the log must not mask the original
// build failure, so errors here are only logged, not returned.
func (s *Sandbox) writeFailureLog(logDir string, be *nozemerr.BuildError) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "command: %s\n", be.Command)
	fmt.Fprintf(&buf, "cwd: %s\n", be.Cwd)
	fmt.Fprintf(&buf, "exit code: %d\n", be.ExitCode)
	fmt.Fprintf(&buf, "env:\n")
	for _, e := range be.Env {
		fmt.Fprintf(&buf, "  %s\n", e)
	}
	fmt.Fprintf(&buf, "stdout:\n%s\n", be.Stdout)
	fmt.Fprintf(&buf, "stderr:\n%s\n", be.Stderr)
	os.Stderr.Write(buf.Bytes())

	if logDir == "" {
		return
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		logger.Log.Warn().Err(err).Str("logDir", logDir).Msg("creating execute log directory failed")
		return
	}

	path := filepath.Join(logDir, "execute.log")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		logger.Log.Warn().Err(err).Str("path", path).Msg("writing execute log failed")
	}
}

// boundedWriter caps how many bytes it accumulates into buf, silently
// discarding the remainder once limit is reached, so a runaway command
// can't exhaust memory capturing output nobody will read past the first
// few megabytes.
type boundedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

var _ io.Writer = (*boundedWriter)(nil)
