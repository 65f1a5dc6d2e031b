package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/b-tok/asbplayer-linux/internal/logging"
)

// maxStderrTail caps the stderr kept from a long-running child for diagnostics.
const maxStderrTail = 64 * 1024

// Process is a started child process.
type Process interface {
	Pid() int
	// Terminate asks the process to exit (SIGTERM).
	Terminate() error
	// Kill forcibly stops the process and its process group (SIGKILL).
	Kill() error
	// Wait blocks until the process has exited and been reaped.
	Wait() error
}

// Spawner starts long-running child processes.
type Spawner interface {
	Spawn(cmd Command) (Process, error)
}

// ExecSpawner starts children with os/exec. Each child gets its own process
// group so Kill reaches anything it forked. Cleanup relies on Child.Stop; the
// Linux parent-death signal is only a best-effort backstop.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(c Command) (Process, error) {
	cmd := exec.Command(c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	p := &execProcess{cmd: cmd}
	cmd.Stderr = &limitedWriter{buf: &p.stderr, limit: maxStderrTail}
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("executor: start %s: %w", c.Name, err)
	}
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

// Terminate signals only the leader, the way parecord expects to be stopped.
// os.Process.Signal is safe to call after the process has been reaped.
func (p *execProcess) Terminate() error {
	return p.cmd.Process.Signal(unix.SIGTERM)
}

func (p *execProcess) Kill() error {
	return killProcessGroup(p.cmd)
}

func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	if err != nil && p.stderr.Len() > 0 {
		return fmt.Errorf("%w: %s", err, bytes.TrimSpace(p.stderr.Bytes()))
	}
	return err
}

// State is the lifecycle position of a supervised child.
type State int32

const (
	StateRunning State = iota
	StateTerminating
	StateExited
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Child supervises one spawned process through
// Running -> Terminating -> Exited | Killed.
type Child struct {
	proc  Process
	clock clockwork.Clock
	done  chan struct{}
	err   error // Wait result; valid once done is closed
	state atomic.Int32
}

// Start spawns cmd and begins reaping it in the background. clk times the
// Stop grace period; nil means the wall clock.
func Start(sp Spawner, cmd Command, clk clockwork.Clock) (*Child, error) {
	proc, err := sp.Spawn(cmd)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	c := &Child{
		proc:  proc,
		clock: clk,
		done:  make(chan struct{}),
	}
	c.state.Store(int32(StateRunning))
	go c.reap()

	log.Debug("child started", logging.KeyPID, proc.Pid(), "command", cmd.Name)
	return c, nil
}

func (c *Child) reap() {
	c.err = c.proc.Wait()
	close(c.done)
}

// Pid returns the child's process id.
func (c *Child) Pid() int { return c.proc.Pid() }

// Done is closed once the child has been reaped.
func (c *Child) Done() <-chan struct{} { return c.done }

// State returns the current lifecycle state.
func (c *Child) State() State { return State(c.state.Load()) }

// Stop terminates the child: SIGTERM, then up to grace for it to exit, then
// SIGKILL and an unbounded wait. It always returns with the child reaped.
// The error is the child's Wait result and is informational.
func (c *Child) Stop(grace time.Duration) (State, error) {
	select {
	case <-c.done:
		c.state.Store(int32(StateExited))
		return StateExited, c.err
	default:
	}

	c.state.Store(int32(StateTerminating))
	if err := c.proc.Terminate(); err != nil {
		log.Debug("terminate failed", logging.KeyPID, c.proc.Pid(), logging.KeyError, err)
	}

	select {
	case <-c.done:
		c.state.Store(int32(StateExited))
		return StateExited, c.err
	case <-c.clock.After(grace):
	}

	log.Warn("child did not exit after SIGTERM, killing", logging.KeyPID, c.proc.Pid(), "grace", grace)
	if err := c.proc.Kill(); err != nil {
		log.Warn("kill failed", logging.KeyPID, c.proc.Pid(), logging.KeyError, err)
	}
	<-c.done
	c.state.Store(int32(StateKilled))
	return StateKilled, c.err
}

// PidAlive reports whether a process with pid still exists. Lookup errors
// count as not alive.
func PidAlive(ctx context.Context, pid int) bool {
	if pid <= 0 {
		return false
	}
	alive, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		log.Debug("pid lookup failed", logging.KeyPID, pid, logging.KeyError, err)
		return false
	}
	return alive
}
