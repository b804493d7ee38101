package eks

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// CommandRunner executes an external binary to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecCommandRunner runs commands through os/exec, forwarding output to the
// process stdout and capturing stderr for error reporting.
type ExecCommandRunner struct{}

func NewExecCommandRunner() *ExecCommandRunner {
	return &ExecCommandRunner{}
}

func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	log.Infof("Executing: %s %s", name, strings.Join(args, " "))

	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			return errors.Wrapf(err, "%s failed", name)
		}
		return errors.Wrapf(err, "%s failed: %s", name, message)
	}
	return nil
}
