package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipdraft/internal/api"
	"clipdraft/internal/config"
)

// ErrDaemonNotRunning reports a stop request with no daemon to stop.
var ErrDaemonNotRunning = errors.New("daemon is not running")

const pollInterval = 200 * time.Millisecond

// Prober is the part of the API client used to see whether a daemon answers.
type Prober interface {
	Status(ctx context.Context) (api.DaemonStatus, error)
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	APIBind    string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts a detached `clipdraft serve` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if bind := strings.TrimSpace(opts.APIBind); bind != "" {
		args = append(args, "--api", bind)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls until the daemon answers or timeout passes.
func WaitForAPI(ctx context.Context, probe Prober, timeout time.Duration) (api.DaemonStatus, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := probe.Status(ctx)
		if err == nil && status.Running {
			return status, nil
		}
		if err == nil {
			err = errors.New("daemon reports not running")
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return api.DaemonStatus{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return api.DaemonStatus{}, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one already answers.
func EnsureStarted(ctx context.Context, probe Prober, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	status, err := probe.Status(ctx)
	if err == nil && status.Running {
		return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
	}
	if err != nil && !api.IsAPIUnavailable(err) {
		return StartResult{}, err
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err = WaitForAPI(ctx, probe, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: status.PID}, nil
}

// WaitForShutdown waits for the daemon API to stop answering.
func WaitForShutdown(ctx context.Context, probe Prober, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := probe.Status(ctx)
		if api.IsAPIUnavailable(err) || (err == nil && !status.Running) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return errors.New("daemon did not stop")
}

// ReadPID returns the pid recorded by a running daemon, or 0 when the file
// is missing.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pidStr := strings.TrimSpace(string(data))
	if pidStr == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("daemon pid file %q holds %q", path, pidStr)
	}
	return pid, nil
}

// Stop sends SIGTERM to the daemon and escalates to SIGKILL when it is still
// answering after gracePeriod.
func Stop(ctx context.Context, probe Prober, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pid := 0
	status, err := probe.Status(ctx)
	switch {
	case err == nil:
		pid = status.PID
	case !api.IsAPIUnavailable(err):
		return StopResult{}, err
	}
	if pid == 0 {
		if pid, err = ReadPID(cfg.PIDPath()); err != nil {
			return StopResult{}, err
		}
	}
	if pid == 0 {
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = os.Remove(cfg.PIDPath())
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if err := WaitForShutdown(ctx, probe, gracePeriod); err == nil {
		return result, nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(cfg.PIDPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return result, fmt.Errorf("remove pid file: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}
