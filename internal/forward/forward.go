package forward

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/giantswarm/kindenv/internal/netutil"
	"github.com/giantswarm/kindenv/internal/proc"
	"github.com/giantswarm/kindenv/internal/runner"
	"github.com/giantswarm/kindenv/internal/sentinel"
)

// ErrExhausted is returned when every attempt failed to produce a live,
// connectable tunnel. The returned error wraps the last-seen failure: the
// process exit code or the connect error.
const ErrExhausted = sentinel.Error("port-forward attempts exhausted")

// DefaultRetries is the default number of establishment attempts.
const DefaultRetries = 10

// DefaultSettleInterval is how long each attempt waits after launching the
// forwarder before health checking it. One second lets the process either
// fail fast (bad target, port already bound) or establish the tunnel.
const DefaultSettleInterval = time.Second

// probeTimeout bounds the per-attempt TCP connect to the local port. The
// target is the loopback interface, so a second is generous; it guards only
// against pathological cases.
const probeTimeout = time.Second

// stopTimeout bounds the SIGTERM-then-SIGKILL stop of a forwarder process,
// both for superseded attempts and for Close.
const stopTimeout = 10 * time.Second

// processName names the background process for log files and log records.
const processName = "port-forward"

// Config describes one tunnel to establish.
type Config struct {
	// Target is the resource to forward to, e.g. "service/kube-dns" or a
	// pod name.
	Target string
	// RemotePort is the port on the target resource.
	RemotePort int
	// ExtraArgs are appended to the port-forward subcommand, e.g.
	// ["-n", "kube-system"].
	ExtraArgs []string
	// LocalPort fixes the local port across all attempts. Zero picks a
	// fresh pseudo-random port in [5000, 30000) per attempt.
	LocalPort int
	// Retries is the number of establishment attempts. Zero means
	// DefaultRetries.
	Retries int
	// SettleInterval overrides the per-attempt settle wait. Zero means
	// DefaultSettleInterval.
	SettleInterval time.Duration
	// DataDir is where the forwarder's stdout/stderr log files are written.
	DataDir string
	// Runner builds the CLI command with the cluster credentials injected.
	Runner *runner.Runner
	// Ports tracks local port reservations across sessions in this process.
	Ports *netutil.PortRegistry
	// Logger (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// validate checks required fields and fills defaults.
func (c *Config) validate() error {
	if c.Target == "" {
		return errors.New("target must not be empty")
	}
	if c.RemotePort <= 0 {
		return errors.New("remote port must be positive")
	}
	if c.LocalPort < 0 {
		return errors.New("local port must not be negative")
	}
	if c.DataDir == "" {
		return errors.New("data dir must not be empty")
	}
	if c.Runner == nil {
		return errors.New("runner must not be nil")
	}
	if c.Ports == nil {
		return errors.New("port registry must not be nil")
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.Retries < 0 {
		return errors.New("retries must not be negative")
	}
	if c.SettleInterval == 0 {
		c.SettleInterval = DefaultSettleInterval
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Session is an established tunnel. While the session is open, the
// background process is alive and the local port accepts connections.
// Sessions are used from a single logical flow at a time.
type Session struct {
	port   int
	base   proc.BaseProcess
	ports  *netutil.PortRegistry
	log    *slog.Logger
	closed bool
}

// LocalPort returns the local end of the tunnel.
func (s *Session) LocalPort() int {
	return s.port
}

// Close terminates the background process unconditionally and releases the
// local port reservation. It is idempotent; the first call's error is
// definitive and subsequent calls return nil.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.base.Stop(stopTimeout)
	s.base.Close()
	s.ports.Release(s.port)
	if err != nil {
		return fmt.Errorf("stop port-forward process: %w", err)
	}
	return nil
}

// Open establishes a tunnel per cfg and returns the live session. The caller
// must Close the session when done; Close is the only way the background
// process is terminated after a successful Open.
//
// ctx governs establishment only: cancellation aborts the attempt loop, but
// an already-established session is not tied to ctx and survives until
// Close.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid port-forward config: %w", err)
	}

	log := cfg.Logger.With("target", cfg.Target, "remote_port", cfg.RemotePort)

	// A fixed local port is reserved once, up front, and reused across all
	// attempts. Random ports are reserved per attempt.
	fixedPort := cfg.LocalPort != 0
	if fixedPort {
		if err := cfg.Ports.Reserve(cfg.LocalPort); err != nil {
			return nil, fmt.Errorf("reserve local port: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Retries; attempt++ {
		sess, err := tryOnce(ctx, cfg, log, attempt, fixedPort)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		log.Debug("port-forward attempt failed", "attempt", attempt, "error", err)
	}

	if fixedPort {
		cfg.Ports.Release(cfg.LocalPort)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("port-forward to %s:%d: %w", cfg.Target, cfg.RemotePort, ctx.Err())
	}
	return nil, fmt.Errorf("port-forward to %s:%d after %d attempts: %w: %w",
		cfg.Target, cfg.RemotePort, cfg.Retries, ErrExhausted, lastErr)
}

// tryOnce runs a single establishment attempt: pick a port, launch the
// forwarder, settle, health check. On success it returns the live session.
// On failure the attempt's process is stopped and its random port released
// before returning, so every retry path supersedes the stale attempt.
func tryOnce(ctx context.Context, cfg Config, log *slog.Logger, attempt int, fixedPort bool) (_ *Session, retErr error) {
	port := cfg.LocalPort
	if !fixedPort {
		var err error
		port, err = cfg.Ports.PickRandom()
		if err != nil {
			return nil, err
		}
	}

	base := proc.NewBaseProcess(processName, log, stopTimeout)
	defer func() {
		if retErr == nil {
			return
		}
		// Terminate the stale attempt before the caller retries. Stop also
		// reaps a process that already exited on its own.
		if err := base.Stop(stopTimeout); err != nil {
			log.Warn("stop superseded port-forward attempt", "attempt", attempt, "error", err)
		}
		base.Close()
		if !fixedPort {
			cfg.Ports.Release(port)
		}
	}()

	args := append([]string{
		"port-forward",
		cfg.Target,
		strconv.Itoa(port) + ":" + strconv.Itoa(cfg.RemotePort),
	}, cfg.ExtraArgs...)

	// The tunnel must outlive ctx, which only bounds establishment.
	cmd := cfg.Runner.Command(context.WithoutCancel(ctx), args...)
	if err := base.SetupAndStart(cmd, cfg.DataDir); err != nil {
		return nil, fmt.Errorf("launch forwarder: %w", err)
	}

	// Settle: give the process time to fail fast or establish the tunnel.
	settle := time.NewTimer(cfg.SettleInterval)
	defer settle.Stop()
	select {
	case <-settle.C:
	case <-base.Exited():
		// Fall through to the health check, which reads the exit status.
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Health check, phase one: has the process already exited?
	if code, exited := base.ExitStatus(); exited {
		return nil, fmt.Errorf("forwarder exited with code %d", code)
	}

	// Phase two: the process is running; is the tunnel connectable?
	if err := netutil.Probe(port, probeTimeout); err != nil {
		return nil, fmt.Errorf("tunnel not connectable: %w", err)
	}

	log.Debug("port-forward established", "local_port", port, "attempt", attempt)
	return &Session{port: port, base: base, ports: cfg.Ports, log: log}, nil
}
