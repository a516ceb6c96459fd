package runner_test

import (
	"context"
	"strings"
	"testing"

	"github.com/genome-vendor/strelka/runner"
	"github.com/stretchr/testify/assert"
)

func TestRunCaptures(t *testing.T) {
	res, err := runner.Local{}.Run(context.Background(), runner.Cmd{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunNonzeroExit(t *testing.T) {
	res, err := runner.Local{}.Run(context.Background(), runner.Cmd{
		Path: "/bin/sh",
		Args: []string{"-c", "echo broken 1>&2; exit 3"},
	})
	assert.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.True(t, strings.Contains(err.Error(), "broken"))
}

func TestShellQuoting(t *testing.T) {
	cmd := runner.Cmd{Path: "/usr/bin/tool", Args: []string{"-name", "two words", "plain"}}
	assert.Equal(t, "/usr/bin/tool -name 'two words' plain", cmd.Shell())
}
