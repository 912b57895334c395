package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	defaultReadyTimeout = 60 * time.Second
	stopGracePeriod     = 2 * time.Second
	maxLineBytes        = 16 << 20
	stderrTailBytes     = 4 << 10
)

// ServerConfig defines how to start and check a backend server.
type ServerConfig struct {
	// Ready inspects each line printed before the server is ready. It returns
	// true once the server reports ready, or an error if it failed to start.
	// Lines for which it returns false are skipped.
	Ready        func(line []byte) (bool, error)
	Name         string
	Command      []string
	ReadyTimeout time.Duration
	CallTimeout  time.Duration
}

// Server is a long-lived process answering one stdout line per stdin line.
// Calls are serialized.
type Server struct {
	stdin    io.WriteCloser
	cancel   context.CancelFunc
	lines    chan []byte
	stop     chan struct{}
	exited   chan struct{}
	slot     chan struct{}
	stderr   *tailBuffer
	exitErr  error
	cfg      ServerConfig
	stopOnce sync.Once
}

// StartServer starts the configured command and waits until it reports ready.
// The process outlives ctx; it runs until Close.
func StartServer(ctx context.Context, cfg ServerConfig, runner CommandRunner) (*Server, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrCommandNotFound)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	stdin, stdout, stderr, wait, err := runner.Start(procCtx, cfg.Command[0], cfg.Command[1:])
	if err != nil {
		cancel()

		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrCommandNotFound, err)
		}
		return nil, fmt.Errorf("backend: failed to start %s server: %w", cfg.Name, err)
	}

	s := &Server{
		stdin:  stdin,
		cancel: cancel,
		lines:  make(chan []byte),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
		slot:   make(chan struct{}, 1),
		stderr: &tailBuffer{max: stderrTailBytes},
		cfg:    cfg,
	}
	s.slot <- struct{}{}

	stderrDone := make(chan struct{})
	go func() {
		_, _ = io.Copy(s.stderr, stderr)
		close(stderrDone)
	}()
	go s.read(stdout, stderrDone, wait)

	if err := s.waitReady(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	slog.Info("Backend server started", "name", cfg.Name, "command", cfg.Command)
	return s, nil
}

// Call writes request as one line and returns the first response line that
// match accepts. Rejected lines belong to abandoned calls and are dropped.
func (s *Server) Call(ctx context.Context, request []byte, match func(line []byte) bool) ([]byte, error) {
	parent := ctx
	if s.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
		defer cancel()
	}

	select {
	case <-s.slot:
	case <-s.exited:
		return nil, s.exitError(ErrServerExited)
	case <-ctx.Done():
		return nil, s.ctxError(parent, ctx)
	}
	defer func() { s.slot <- struct{}{} }()

	line := make([]byte, 0, len(request)+1)
	line = append(append(line, request...), '\n')
	if _, err := s.stdin.Write(line); err != nil {
		return nil, s.exitError(fmt.Errorf("%w: write failed: %w", ErrServerExited, err))
	}

	for {
		select {
		case resp := <-s.lines:
			if match == nil || match(resp) {
				return resp, nil
			}
		case <-s.exited:
			return nil, s.exitError(ErrServerExited)
		case <-ctx.Done():
			return nil, s.ctxError(parent, ctx)
		}
	}
}

// Close stops the server. The process gets a grace period to exit after its
// stdin is closed before it is killed.
func (s *Server) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		_ = s.stdin.Close()

		select {
		case <-s.exited:
		case <-time.After(stopGracePeriod):
			s.cancel()
			<-s.exited
		}
		s.cancel()

		slog.Info("Backend server stopped", "name", s.cfg.Name)
	})

	return nil
}

// Command returns the command line the server runs.
func (s *Server) Command() []string {
	return append([]string(nil), s.cfg.Command...)
}

func (s *Server) read(stdout io.Reader, stderrDone <-chan struct{}, wait func() error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		select {
		case s.lines <- line:
		case <-s.stop:
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("Failed to read backend server output", "name", s.cfg.Name, "error", err)
		s.cancel()
	}

	<-stderrDone
	s.exitErr = wait()
	close(s.exited)
}

func (s *Server) waitReady(ctx context.Context) error {
	timeout := s.cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line := <-s.lines:
			if s.cfg.Ready == nil {
				return nil
			}
			ready, err := s.cfg.Ready(line)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrServerNotReady, err)
			}
			if ready {
				return nil
			}
		case <-s.exited:
			return s.exitError(ErrServerNotReady)
		case <-timer.C:
			return fmt.Errorf("%w within %s", ErrServerNotReady, timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) exitError(err error) error {
	select {
	case <-s.exited:
		if s.exitErr != nil {
			err = fmt.Errorf("%w: %w", err, s.exitErr)
		}
	default:
	}

	if msg := s.stderr.String(); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}

	return err
}

// ctxError reports the caller's own cancellation as is, and the call timeout
// as ErrTimeout.
func (s *Server) ctxError(parent, ctx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, s.cfg.CallTimeout)
	}

	return ctx.Err()
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
	mu  sync.Mutex
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return strings.TrimSpace(string(b.buf))
}
