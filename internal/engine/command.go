package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/benjamin-macmichael/RobocopyManager/internal/archive"
	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
)

// StartFailureExitCode is recorded when the external copy process could not
// be started at all, so a launch failure is distinguishable from any real
// exit code.
const StartFailureExitCode = -1

// successThreshold is the copy tool's exit-code contract: 0–7 means the run
// did its work (possibly with informational flags), 8 and above means failure.
const successThreshold = 8

// Runner starts the external copy process. The production implementation
// shells out; tests inject a fake.
type Runner interface {
	Start(name string, args []string) (Process, error)
}

// Process is one live external copy process.
type Process interface {
	// Wait blocks until the process exits and returns its exit code.
	Wait() (int, error)
	// Kill terminates the process. Killing an exited process is a no-op.
	Kill() error
}

// ExecRunner runs the copy tool as an OS process.
type ExecRunner struct{}

func (ExecRunner) Start(name string, args []string) (Process, error) {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return p.cmd.ProcessState.ExitCode(), nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return StartFailureExitCode, err
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}

	return nil
}

// BuildArgs assembles the copy tool command line for one run from the job
// and the settings snapshot the run was accepted with.
func BuildArgs(job model.Job, settings model.Settings) []string {
	args := []string{job.SrcPath, job.DstPath}

	switch settings.Mode {
	case model.ModeMirror:
		args = append(args, "/MIR")
	case model.ModePurge:
		args = append(args, subdirFlag(settings), "/PURGE")
	default:
		args = append(args, subdirFlag(settings))
	}

	args = append(args,
		fmt.Sprintf("/MT:%d", job.ClampThreads()),
		fmt.Sprintf("/R:%d", settings.RetryCount),
		fmt.Sprintf("/W:%d", settings.RetryWaitSec),
	)

	args = append(args, "/XD", model.VersionFolder)
	args = append(args, archive.SystemExclusions...)
	for _, name := range job.ExcludeList() {
		args = append(args, name)
	}

	return args
}

func subdirFlag(settings model.Settings) string {
	if settings.IncludeEmptyDirs {
		return "/E"
	}
	return "/S"
}
