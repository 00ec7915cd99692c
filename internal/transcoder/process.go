/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ripplehome/streamcore/internal/events"
	"github.com/ripplehome/streamcore/internal/telemetry"
)

// ProcessState tracks the child process lifecycle.
type ProcessState string

const (
	StateIdle    ProcessState = "idle"
	StateRunning ProcessState = "running"
	StateStopped ProcessState = "stopped"
	StateFailed  ProcessState = "failed"
)

// shutdownGrace is how long Stop waits for a graceful exit (SIGTERM)
// before force-killing.
const shutdownGrace = 5 * time.Second

// restartBurst and restartPeriod bound the restart-on-unexpected-exit
// policy: at most restartBurst restarts in a burst, refilling one token every
// restartPeriod/restartBurst, so a transcoder stuck in a crash loop gives up instead of
// spinning the CPU. Sustained failure is terminal for the owning HTTP
// request, never retried forever.
const (
	restartBurst  = 3
	restartPeriod = 10 * time.Second
)

// ErrRestartBudgetExhausted names the condition in which AllowRestart
// reports false; no function in this package returns it.
var ErrRestartBudgetExhausted = errors.New("transcoder: restart budget exhausted")

// Process supervises one external transcoder invocation: it owns the
// process's stdin (for PCM) and stdout (for encoded output), and carries a
// token-bucket restart budget (AllowRestart). Process does not relaunch the
// child itself after an unexpected exit, and Start refuses a process in the
// failed state.
type Process struct {
	ID     string
	Binary string
	Args   []string
	Codec  string

	logger zerolog.Logger

	mu    sync.Mutex
	state ProcessState
	cmd   *exec.Cmd

	stdin  io.WriteCloser
	stdout io.ReadCloser

	limiter *rate.Limiter
	bus     *events.Bus
}

// New constructs a Process. Call Start to launch the child.
func New(binary, codec string, args []string, bus *events.Bus, logger zerolog.Logger) *Process {
	id := uuid.NewString()
	return &Process{
		ID:      id,
		Binary:  binary,
		Args:    args,
		Codec:   codec,
		logger:  logger.With().Str("component", "transcoder").Str("process_id", id).Logger(),
		state:   StateIdle,
		limiter: rate.NewLimiter(rate.Every(restartPeriod/restartBurst), restartBurst),
		bus:     bus,
	}
}

// Start launches the transcoder, wiring its stdin/stdout pipes. The
// returned io.WriteCloser/io.ReadCloser are valid until the process exits
// or Stop is called.
func (p *Process) Start(ctx context.Context) (stdin io.WriteCloser, stdout io.ReadCloser, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle && p.state != StateStopped {
		return nil, nil, fmt.Errorf("transcoder: process %s already started (state %s)", p.ID, p.state)
	}

	cmd := exec.CommandContext(ctx, p.Binary, p.Args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("transcoder: stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("transcoder: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("transcoder: start %s: %w", p.Binary, err)
	}

	p.cmd = cmd
	p.stdin = stdinPipe
	p.stdout = stdoutPipe
	p.state = StateRunning

	p.logger.Info().Str("binary", p.Binary).Int("pid", cmd.Process.Pid).Msg("transcoder started")
	telemetry.TranscoderStartsTotal.WithLabelValues(p.Codec).Inc()
	p.bus.Publish(events.EventTranscoderStart, events.Payload{"process_id": p.ID, "codec": p.Codec, "pid": cmd.Process.Pid})

	return stdinPipe, stdoutPipe, nil
}

// Wait blocks until the child process exits and reports its error, if any.
func (p *Process) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("transcoder: process %s never started", p.ID)
	}
	err := cmd.Wait()

	p.mu.Lock()
	if p.state == StateRunning {
		if err != nil {
			p.state = StateFailed
		} else {
			p.state = StateStopped
		}
	}
	p.mu.Unlock()

	p.bus.Publish(events.EventTranscoderExit, events.Payload{"process_id": p.ID, "codec": p.Codec, "error": errString(err)})
	return err
}

// Stop terminates the transcoder: SIGTERM first, SIGKILL after
// shutdownGrace.
func (p *Process) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	state := p.state
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil || state == StateStopped || state == StateFailed {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.logger.Warn().Err(err).Msg("failed to send SIGTERM, killing")
		_ = cmd.Process.Kill()
		return
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		p.logger.Warn().Msg("transcoder did not exit within grace period, killing")
		_ = cmd.Process.Kill()
		<-done
	}

	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
}

// State returns the current process state.
func (p *Process) State() ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// AllowRestart consults the restart token bucket; it returns false once the
// transcoder has crashed too many times too quickly (ErrRestartBudgetExhausted
// territory — callers should give up on the request rather than spin).
func (p *Process) AllowRestart() bool {
	if !p.limiter.Allow() {
		p.logger.Error().Msg("transcoder restart budget exhausted")
		return false
	}
	telemetry.TranscoderRestartsTotal.WithLabelValues(p.Codec).Inc()
	p.bus.Publish(events.EventTranscoderRetry, events.Payload{"process_id": p.ID, "codec": p.Codec})
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
