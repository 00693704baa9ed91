package coprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	child_process_manager "github.com/AgustinSRG/go-child-process-manager"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/coencoder/pkg/pipe"
	"github.com/xaionaro-go/coencoder/pkg/xpath"
)

var (
	// ErrUnavailable means the executable (or the compatibility runtime
	// that should run it) does not exist or cannot be executed.
	ErrUnavailable = errors.New("the co-process executable is not available")

	ErrAlreadyReaped = errors.New("the process is already reaped")
)

type Config struct {
	ExecutablePath string

	// Argument is the single optional argument; empty means none.
	Argument string

	// Runtime is the compatibility layer the executable is started
	// through (e.g. "wine"). Empty means the executable is run directly.
	Runtime string

	// Env is injected into the child environment without overriding
	// variables the host process already has.
	Env map[string]string
}

func (cfg Config) command() (*exec.Cmd, error) {
	if cfg.ExecutablePath == "" {
		return nil, fmt.Errorf("%w: the executable path is not set", ErrUnavailable)
	}

	var (
		name string
		args []string
	)
	if cfg.Runtime != "" {
		runtimePath, err := xpath.GetExecPath(cfg.Runtime)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to find runtime '%s': %w", ErrUnavailable, cfg.Runtime, err)
		}
		if _, err := os.Stat(cfg.ExecutablePath); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		name = runtimePath
		args = append(args, cfg.ExecutablePath)
	} else {
		execPath, err := xpath.GetExecPath(cfg.ExecutablePath)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to find '%s': %w", ErrUnavailable, cfg.ExecutablePath, err)
		}
		name = execPath
	}
	if cfg.Argument != "" {
		args = append(args, cfg.Argument)
	}

	cmd := exec.Command(name, args...)
	cmd.Env = mergeEnvIfAbsent(os.Environ(), cfg.Env, DefaultEnv)
	return cmd, nil
}

// Process is a spawned child together with the pipe ends the parent keeps:
// the write end of the request pipe (child's stdin), the read end of the
// data pipe (child's stdout) and the read end of the diagnostic pipe
// (child's stderr).
type Process struct {
	cmd        *exec.Cmd
	request    *pipe.Pipe
	data       *pipe.Pipe
	diagnostic *pipe.Pipe
	reaped     bool
}

// Spawn creates the three pipes and starts the child wired to them. On any
// failure everything acquired so far is released before returning.
func Spawn(
	ctx context.Context,
	cfg Config,
) (_ret *Process, _err error) {
	logger.Debugf(ctx, "Spawn(ctx, %#+v)", cfg)
	defer func() { logger.Debugf(ctx, "/Spawn(ctx, %#+v): %v", cfg, _err) }()

	var cleanup cleanupStack
	defer func() {
		if _err == nil {
			return
		}
		if err := cleanup.Unwind(); err != nil {
			logger.Errorf(ctx, "unable to roll back a failed spawn: %v", err)
		}
	}()

	cmd, err := cfg.command()
	if err != nil {
		return nil, err
	}

	p := &Process{cmd: cmd}
	for _, item := range []struct {
		name string
		ptr  **pipe.Pipe
	}{
		{"request", &p.request},
		{"data", &p.data},
		{"diagnostic", &p.diagnostic},
	} {
		pp, err := pipe.New(item.name)
		if err != nil {
			return nil, err
		}
		cleanup.Push(pp.Close)
		*item.ptr = pp
	}

	cmd.Stdin = p.request.Reader
	cmd.Stdout = p.data.Writer
	cmd.Stderr = p.diagnostic.Writer

	err = child_process_manager.ConfigureCommand(cmd)
	errmon.ObserveErrorCtx(ctx, err)

	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: unable to start '%s': %w", ErrUnavailable, cmd.Path, err)
		}
		return nil, fmt.Errorf("unable to start '%s': %w", cmd.Path, err)
	}
	cleanup.Push(func() error {
		if err := p.Kill(); err != nil {
			return err
		}
		_, err := p.Reap(ctx)
		return err
	})

	err = child_process_manager.AddChildProcess(cmd.Process)
	if err != nil {
		if runtime.GOOS == "windows" {
			logger.Debugf(ctx, "unable to register the command to be auto-killed: %v", err)
		} else {
			logger.Errorf(ctx, "unable to register the command to be auto-killed: %v", err)
		}
	}

	// the child has its own copies now
	var result *multierror.Error
	if err := p.request.CloseReader(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.data.CloseWriter(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.diagnostic.CloseWriter(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("unable to close the child ends of the pipes: %w", err)
	}

	cleanup.Release()
	logger.Debugf(ctx, "started process %d: %s %q", cmd.Process.Pid, cmd.Path, cmd.Args[1:])
	return p, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOEXEC)
}

func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// RequestWriter is the parent end of the child's stdin.
func (p *Process) RequestWriter() io.Writer {
	return p.request.Writer
}

// DataReader is the parent end of the child's stdout.
func (p *Process) DataReader() io.Reader {
	return p.data.Reader
}

// DiagnosticReader is the parent end of the child's stderr.
func (p *Process) DiagnosticReader() io.Reader {
	return p.diagnostic.Reader
}

// CloseInput closes only the request write end, so the output of the
// child can still be read to the end.
func (p *Process) CloseInput() error {
	if err := p.request.CloseWriter(); err != nil {
		return fmt.Errorf("request pipe: %w", err)
	}
	return nil
}

// CloseRequest closes the request write end and the data read end. The
// child sees end-of-stream on its next read and is expected to exit.
func (p *Process) CloseRequest() error {
	var result *multierror.Error
	if err := p.CloseInput(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.data.CloseReader(); err != nil {
		result = multierror.Append(result, fmt.Errorf("data pipe: %w", err))
	}
	return result.ErrorOrNil()
}

// CloseDiagnostic closes the diagnostic read end. It must not be called
// while something still reads from DiagnosticReader.
func (p *Process) CloseDiagnostic() error {
	if err := p.diagnostic.CloseReader(); err != nil {
		return fmt.Errorf("diagnostic pipe: %w", err)
	}
	return nil
}

// Kill forcibly terminates the child. Killing an already exited child is
// not an error.
func (p *Process) Kill() error {
	err := p.cmd.Process.Kill()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("unable to kill process %d: %w", p.PID(), err)
	}
	return nil
}

// Reap blocks until the child exits and collects its status. A non-zero
// exit status is reported through the returned state, not as an error.
func (p *Process) Reap(ctx context.Context) (*os.ProcessState, error) {
	if p.reaped {
		return p.cmd.ProcessState, ErrAlreadyReaped
	}
	logger.Debugf(ctx, "waiting for process %d", p.PID())
	err := p.cmd.Wait()
	p.reaped = true
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return p.cmd.ProcessState, fmt.Errorf("unable to wait for process %d: %w", p.PID(), err)
	}
	logger.Debugf(ctx, "process %d terminated: %v", p.PID(), p.cmd.ProcessState)
	return p.cmd.ProcessState, nil
}

func (p *Process) IsReaped() bool {
	return p.reaped
}

// Close releases everything in teardown order. It is meant for callers
// that do not run a drain on DiagnosticReader.
func (p *Process) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := p.CloseRequest(); err != nil {
		result = multierror.Append(result, err)
	}
	if !p.reaped {
		if _, err := p.Reap(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := p.CloseDiagnostic(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
