// Package runner provides a structured external-command descriptor and a
// small launcher abstraction.  Workflow components never build shell strings
// to start processes; they construct a Cmd and hand it to a Runner.  The one
// place a Cmd is rendered to text is the generated Makefile, where rendering
// is centralized in Cmd.Shell.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// Cmd describes one external command: an executable path and its argument
// list.  Dir, when nonempty, is the working directory for the launch.
type Cmd struct {
	Path string
	Args []string
	Dir  string
}

// Shell renders the command as a single shell line with minimal quoting,
// suitable for embedding in a Makefile recipe.
func (c Cmd) Shell() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, shellQuote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$&|;<>()*?[]#~%") {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

// Result holds the captured output and exit status of a completed command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner launches external commands.  The default implementation is Local;
// tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) (Result, error)
}

// Local runs commands as child processes on the local host.
type Local struct{}

// Run executes cmd, capturing stdout and stderr.  A non-zero exit status is
// reported as an error carrying the command line and captured stderr; the
// Result is still populated in that case.
func (Local) Run(ctx context.Context, cmd Cmd) (Result, error) {
	ecmd := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	ecmd.Dir = cmd.Dir
	var stdout, stderr bytes.Buffer
	ecmd.Stdout = &stdout
	ecmd.Stderr = &stderr
	err := ecmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if ecmd.ProcessState != nil {
		res.ExitCode = ecmd.ProcessState.ExitCode()
	}
	if err != nil {
		return res, errors.Wrapf(err, "runner: %s: %s", cmd.Shell(), strings.TrimSpace(stderr.String()))
	}
	return res, nil
}
