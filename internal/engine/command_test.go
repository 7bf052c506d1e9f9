package engine

import (
	"testing"

	"github.com/benjamin-macmichael/RobocopyManager/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerKillAfterExit(t *testing.T) {
	proc, err := ExecRunner{}.Start("true", nil)
	require.NoError(t, err)

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// Killing a process that already exited must stay a no-op.
	assert.NoError(t, proc.Kill())
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	proc, err := ExecRunner{}.Start("false", nil)
	require.NoError(t, err)

	code, err := proc.Wait()
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestBuildArgsMirror(t *testing.T) {
	job := model.Job{SrcPath: "/data/src", DstPath: "/data/dst", Threads: 16}
	settings := model.Settings{Mode: model.ModeMirror, RetryCount: 3, RetryWaitSec: 5}

	args := BuildArgs(job, settings)

	assert.Equal(t, "/data/src", args[0])
	assert.Equal(t, "/data/dst", args[1])
	assert.Contains(t, args, "/MIR")
	assert.NotContains(t, args, "/PURGE")
	assert.Contains(t, args, "/MT:16")
	assert.Contains(t, args, "/R:3")
	assert.Contains(t, args, "/W:5")
}

func TestBuildArgsPurge(t *testing.T) {
	job := model.Job{SrcPath: "a", DstPath: "b", Threads: 8}
	settings := model.Settings{Mode: model.ModePurge, IncludeEmptyDirs: true}

	args := BuildArgs(job, settings)

	assert.Contains(t, args, "/E")
	assert.Contains(t, args, "/PURGE")
	assert.NotContains(t, args, "/MIR")
}

func TestBuildArgsCopyWithoutEmptyDirs(t *testing.T) {
	job := model.Job{SrcPath: "a", DstPath: "b", Threads: 8}
	settings := model.Settings{Mode: model.ModeCopy}

	args := BuildArgs(job, settings)

	assert.Contains(t, args, "/S")
	assert.NotContains(t, args, "/E")
	assert.NotContains(t, args, "/MIR")
	assert.NotContains(t, args, "/PURGE")
}

func TestBuildArgsClampsThreads(t *testing.T) {
	settings := model.Settings{Mode: model.ModeCopy}

	low := BuildArgs(model.Job{SrcPath: "a", DstPath: "b", Threads: 0}, settings)
	assert.Contains(t, low, "/MT:1")

	high := BuildArgs(model.Job{SrcPath: "a", DstPath: "b", Threads: 500}, settings)
	assert.Contains(t, high, "/MT:128")
}

func TestBuildArgsExclusions(t *testing.T) {
	job := model.Job{SrcPath: "a", DstPath: "b", Threads: 8, Exclusions: "node_modules; .git"}
	settings := model.Settings{Mode: model.ModeMirror}

	args := BuildArgs(job, settings)

	assert.Contains(t, args, "/XD")
	assert.Contains(t, args, model.VersionFolder)
	assert.Contains(t, args, "$RECYCLE.BIN")
	assert.Contains(t, args, "System Volume Information")
	assert.Contains(t, args, "node_modules")
	assert.Contains(t, args, ".git")
}
