// Package backend runs external predictor processes.
package backend

import (
	"context"
	"io"
	"os/exec"
)

// CommandRunner is the interface for starting commands.
type CommandRunner interface {
	Start(ctx context.Context, name string, args []string) (stdin io.WriteCloser, stdout, stderr io.ReadCloser, wait func() error, err error)
}

// ExecCommandRunner uses os/exec. The process is killed when ctx is done.
type ExecCommandRunner struct{}

// Start starts a command with piped stdio.
func (ExecCommandRunner) Start(ctx context.Context, name string, args []string) (stdin io.WriteCloser, stdout, stderr io.ReadCloser, wait func() error, err error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, nil, err
	}

	return stdinPipe, stdoutPipe, stderrPipe, cmd.Wait, nil
}
