package runmgr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
)

// Exec runs a simulator command locally. The project path is appended as the
// last argument and the command runs in the project's directory. The process
// is not tied to ctx: once started it runs to completion.
type Exec struct {
	Command string
	Args    []string
	// Env is appended to the current environment.
	Env []string
}

// maxOutput bounds the simulator output kept in error messages.
const maxOutput = 2048

func (e *Exec) Run(ctx context.Context, c *runcase.Case, scenarioID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Command == "" {
		return fmt.Errorf("no simulator command configured")
	}
	if c.ProjectPath() == "" {
		return fmt.Errorf("case has no materialized project")
	}

	args := append(append([]string(nil), e.Args...), c.ProjectPath())
	cmd := exec.Command(e.Command, args...)
	cmd.Dir = filepath.Dir(c.ProjectPath())
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Env = append(cmd.Env, "CASA_SCENARIO_ID="+scenarioID)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if len(msg) > maxOutput {
			msg = msg[len(msg)-maxOutput:]
		}
		if msg == "" {
			return fmt.Errorf("%s: %w", e.Command, err)
		}
		return fmt.Errorf("%s: %w: %s", e.Command, err, msg)
	}
	return nil
}
