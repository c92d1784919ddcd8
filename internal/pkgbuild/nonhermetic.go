package pkgbuild

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/nozem-build/nozem/internal/logger"
	"github.com/nozem-build/nozem/internal/nozemerr"
)

// executeInPlace runs command in dir with the invoking process's full
// environment (unlike sandbox.Execute's restricted PATH), since a
// non-hermetic build is explicitly delegating to whatever package
// manager the host has set up. Failure reporting mirrors
// sandbox.Execute: a nozemerr.BuildError, the failure detail printed on
// standard error and, when logDir is non-empty, a written execute.log.
func executeInPlace(command, dir string, envOverride map[string]string, logDir string) error {
	env := os.Environ()
	for k, v := range envOverride {
		env = append(env, k+"="+v)
	}

	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	exitCode := -1
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}

	buildErr := &nozemerr.BuildError{
		Command:  command,
		Cwd:      dir,
		Env:      env,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "command: %s\ncwd: %s\nexit code: %d\nstdout:\n%s\nstderr:\n%s\n",
		command, dir, exitCode, buildErr.Stdout, buildErr.Stderr)
	os.Stderr.Write(buf.Bytes())

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			logger.Log.Warn().Err(err).Str("logDir", logDir).Msg("creating non-hermetic execute log directory failed")
		} else {
			path := filepath.Join(logDir, "execute.log")
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				logger.Log.Warn().Err(err).Str("path", path).Msg("writing non-hermetic execute log failed")
			}
		}
	}

	return buildErr
}

// copyFile copies src to dst, creating dst's parent directories and
// preserving src's file mode.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
