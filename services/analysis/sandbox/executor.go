// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// Config controls the executor's resource limits and tier selection.
type Config struct {
	// Image is the container image for the Docker tier.
	Image string

	// Timeout is the hard wall-clock deadline per execution.
	Timeout time.Duration

	// MemoryMB caps container memory.
	MemoryMB int

	// CPUQuota is the docker --cpu-quota value against a 100000us
	// period; 50000 means half a CPU.
	CPUQuota int

	// PidsLimit caps processes inside the container.
	PidsLimit int

	// PythonBin is the interpreter for the subprocess tier.
	PythonBin string

	// DisableDocker skips the Docker tier even when the daemon is up.
	DisableDocker bool

	// MaxOutputBytes caps captured stdout/stderr.
	MaxOutputBytes int64
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		Image:          "python:3.10-slim",
		Timeout:        10 * time.Second,
		MemoryMB:       128,
		CPUQuota:       50000,
		PidsLimit:      64,
		PythonBin:      "python3",
		MaxOutputBytes: 64 * 1024,
	}
}

// Executor runs snippets through the tiered sandbox. Docker
// availability is probed once at construction and exposed as a plain
// field read, not re-detected per call.
//
// Thread Safety: Executor is immutable after construction and safe for
// concurrent use.
type Executor struct {
	cfg        Config
	logger     *logging.Logger
	dockerPath string
	dockerOK   bool
	pythonOK   bool
}

// NewExecutor probes the available tiers and returns an Executor.
func NewExecutor(cfg Config, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Image == "" {
		cfg.Image = DefaultConfig().Image
	}
	if cfg.PythonBin == "" {
		cfg.PythonBin = DefaultConfig().PythonBin
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultConfig().MaxOutputBytes
	}

	e := &Executor{cfg: cfg, logger: logger}
	e.detectDocker()
	e.detectPython()
	logger.Info("sandbox tiers probed",
		"docker", e.dockerOK,
		"subprocess", e.pythonOK,
		"image", cfg.Image)
	return e
}

// DockerAvailable reports whether the Docker tier is usable.
func (e *Executor) DockerAvailable() bool { return e.dockerOK }

// SubprocessAvailable reports whether the subprocess tier is usable.
func (e *Executor) SubprocessAvailable() bool { return e.pythonOK }

func (e *Executor) detectDocker() {
	if e.cfg.DisableDocker {
		return
	}
	dockerPath, err := exec.LookPath("docker")
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, dockerPath, "version", "--format", "{{.Server.Version}}").Run(); err != nil {
		return
	}
	e.dockerPath = dockerPath
	e.dockerOK = true
}

func (e *Executor) detectPython() {
	if _, err := exec.LookPath(e.cfg.PythonBin); err == nil {
		e.pythonOK = true
	}
}

// Execute runs the snippet and returns an outcome. It never returns an
// error; every failure mode is classified into the outcome itself.
func (e *Executor) Execute(ctx context.Context, code string) datatypes.SandboxOutcome {
	wrapper := buildWrapper(code)

	if e.dockerOK {
		return e.runDocker(ctx, wrapper)
	}

	if unsafe := UnsafeImports(code); len(unsafe) > 0 {
		e.logger.Warn("dynamic analysis skipped, unsafe imports without container isolation",
			"imports", strings.Join(unsafe, ","))
		return datatypes.SandboxOutcome{
			Skipped: true,
			Tier:    datatypes.TierSkipped,
			Message: fmt.Sprintf("unsafe imports without container isolation: %s", strings.Join(unsafe, ", ")),
		}
	}

	if e.pythonOK {
		return e.runSubprocess(ctx, wrapper)
	}

	return datatypes.SandboxOutcome{
		Skipped: true,
		Tier:    datatypes.TierSkipped,
		Message: "no sandbox runtime available",
	}
}

// runDocker executes the wrapper in a network-less, read-only-mounted
// container with a hard deadline. On expiry the container is stopped,
// logs drained, and force-removed before the timeout outcome returns.
func (e *Executor) runDocker(ctx context.Context, wrapper string) datatypes.SandboxOutcome {
	outcome := datatypes.SandboxOutcome{Tier: datatypes.TierDocker}

	dir, err := os.MkdirTemp("", "codeguard-sandbox-")
	if err != nil {
		outcome.ErrorKind = datatypes.SandboxErrContainer
		outcome.Message = fmt.Sprintf("create sandbox dir: %v", err)
		return outcome
	}
	defer os.RemoveAll(dir)

	wrapperPath := filepath.Join(dir, "wrapper.py")
	if err := os.WriteFile(wrapperPath, []byte(wrapper), 0644); err != nil {
		outcome.ErrorKind = datatypes.SandboxErrContainer
		outcome.Message = fmt.Sprintf("write wrapper: %v", err)
		return outcome
	}

	name := "codeguard-" + uuid.NewString()
	args := []string{
		"run", "--rm",
		"--name", name,
		"--network", "none",
		"--memory", fmt.Sprintf("%dm", e.cfg.MemoryMB),
		"--cpu-period", "100000",
		"--cpu-quota", fmt.Sprintf("%d", e.cfg.CPUQuota),
		"--pids-limit", fmt.Sprintf("%d", e.cfg.PidsLimit),
		"-v", fmt.Sprintf("%s:/code:ro", dir),
		e.cfg.Image,
		"python", "/code/wrapper.py",
	}

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, e.dockerPath, args...)
	cmd.Stdout = &limitedWriter{w: &stdout, max: e.cfg.MaxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, max: e.cfg.MaxOutputBytes}

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded || execCtx.Err() == context.Canceled {
		combined := e.teardown(name, stdout.String(), stderr.String())
		outcome.TimedOut = execCtx.Err() == context.DeadlineExceeded
		outcome.ErrorKind = datatypes.SandboxErrTimeout
		outcome.Message = fmt.Sprintf("execution exceeded %s", e.cfg.Timeout)
		// A status line that made it out before the deadline still
		// counts.
		if status, ok := parseWrapperOutput(combined); ok {
			e.applyStatus(&outcome, status)
			outcome.ErrorKind = datatypes.SandboxErrTimeout
		}
		return outcome
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		combined += "\n" + stderr.String()
	}

	if runErr != nil {
		if imageMissing(stderr.String()) {
			outcome.ErrorKind = datatypes.SandboxErrImageNotFound
			outcome.Message = fmt.Sprintf("image %s not found", e.cfg.Image)
			return outcome
		}
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			outcome.ErrorKind = datatypes.SandboxErrContainer
			outcome.Message = runErr.Error()
			return outcome
		}
		// Non-zero exit still usually carries the status line.
	}

	status, ok := parseWrapperOutput(combined)
	if !ok {
		outcome.ErrorKind = datatypes.SandboxErrParse
		outcome.Message = "no parsable status line in sandbox output"
		return outcome
	}
	e.applyStatus(&outcome, status)
	return outcome
}

// teardown stops and force-removes a possibly still-running container
// and drains whatever logs it produced. Runs on its own deadline so a
// wedged daemon cannot hang the caller.
func (e *Executor) teardown(name, stdout, stderr string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = exec.CommandContext(ctx, e.dockerPath, "stop", "-t", "1", name).Run()

	var logs bytes.Buffer
	logsCmd := exec.CommandContext(ctx, e.dockerPath, "logs", name)
	logsCmd.Stdout = &logs
	logsCmd.Stderr = &logs
	_ = logsCmd.Run()

	_ = exec.CommandContext(ctx, e.dockerPath, "rm", "-f", name).Run()

	combined := stdout
	if stderr != "" {
		combined += "\n" + stderr
	}
	if logs.Len() > 0 {
		combined += "\n" + logs.String()
	}
	return combined
}

// runSubprocess executes the wrapper with the local interpreter. The
// caller has already verified the deny-list.
func (e *Executor) runSubprocess(ctx context.Context, wrapper string) datatypes.SandboxOutcome {
	outcome := datatypes.SandboxOutcome{Tier: datatypes.TierSubprocess}

	execCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, e.cfg.PythonBin, "-c", wrapper)
	cmd.Stdout = &limitedWriter{w: &stdout, max: e.cfg.MaxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderr, max: e.cfg.MaxOutputBytes}

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		outcome.TimedOut = true
		outcome.ErrorKind = datatypes.SandboxErrTimeout
		outcome.Message = fmt.Sprintf("execution exceeded %s", e.cfg.Timeout)
		return outcome
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		combined += "\n" + stderr.String()
	}

	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			outcome.ErrorKind = datatypes.SandboxErrExecution
			outcome.Message = runErr.Error()
			return outcome
		}
	}

	status, ok := parseWrapperOutput(combined)
	if !ok {
		outcome.ErrorKind = datatypes.SandboxErrParse
		outcome.Message = "no parsable status line in sandbox output"
		return outcome
	}
	e.applyStatus(&outcome, status)
	return outcome
}

func (e *Executor) applyStatus(outcome *datatypes.SandboxOutcome, status wrapperStatus) {
	outcome.Success = status.Success
	outcome.ErrorType = status.ErrorType
	if !status.Success {
		outcome.ErrorKind = datatypes.SandboxErrExecution
		outcome.Message = status.Message
	}
}

func imageMissing(stderr string) bool {
	return strings.Contains(stderr, "Unable to find image") ||
		strings.Contains(stderr, "No such image") ||
		strings.Contains(stderr, "pull access denied")
}

// limitedWriter caps captured output; a runaway print loop must not
// eat the worker's memory.
type limitedWriter struct {
	w         *bytes.Buffer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	remaining := lw.max - lw.written
	if remaining <= 0 {
		lw.truncated = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		lw.truncated = true
		n, err := lw.w.Write(p[:remaining])
		lw.written += int64(n)
		return len(p), err
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	return n, err
}
