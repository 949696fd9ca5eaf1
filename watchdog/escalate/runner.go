package escalate

import (
	"bytes"
	"context"
	"os/exec"
)

// Output is what a recovery command wrote while it ran.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes one recovery command to completion.
type Runner interface {
	Run(ctx context.Context, command string) (Output, error)
}

// ShellRunner hands each command to a shell, so pipes and redirects work
// the same way they do in an interactive session.
type ShellRunner struct {
	Shell string
}

func NewShellRunner(shell string) *ShellRunner {
	if shell == "" {
		shell = "/bin/sh"
	}

	return &ShellRunner{Shell: shell}
}

func (r *ShellRunner) Run(ctx context.Context, command string) (Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.Shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// the command is already in the report line, keep the error bare
	err := cmd.Run()

	return Output{Stdout: stdout.String(), Stderr: stderr.String()}, err
}
