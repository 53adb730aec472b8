// Package devserver runs the Expo development server the app under test is
// served from, and the short-lived command that opens it in the simulator.
package devserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/limecash/lime-e2e/pkg/config"
	"github.com/limecash/lime-e2e/pkg/core"
	"github.com/limecash/lime-e2e/pkg/logger"
)

// Options configures the server.
type Options struct {
	Dir            string
	Command        string
	StartArgs      []string
	OpenArgs       []string
	ReadyMarkers   []string // Any of these on stdout means the bundler is up
	OpenMarkers    []string // Any of these means the app is opening in the simulator
	StartupTimeout time.Duration
	ReadySettle    time.Duration
	OpenTimeout    time.Duration
	OpenSettle     time.Duration
	StopTimeout    time.Duration // Grace period between SIGTERM and SIGKILL
}

// OptionsFromConfig converts the devServer config section.
func OptionsFromConfig(c config.DevServer) Options {
	return Options{
		Dir:            c.ProjectDir,
		Command:        c.Command,
		StartArgs:      c.StartArgs,
		OpenArgs:       c.OpenArgs,
		ReadyMarkers:   c.ReadyMarkers,
		OpenMarkers:    c.OpenMarkers,
		StartupTimeout: c.StartupTimeout,
		ReadySettle:    c.ReadySettle,
		OpenTimeout:    c.OpenTimeout,
		OpenSettle:     c.OpenSettle,
		StopTimeout:    c.StopTimeout,
	}
}

// process is a spawned command whose output is being drained.
type process struct {
	name  string
	cmd   *exec.Cmd
	ready chan struct{} // closed on the first marker line
	done  chan struct{} // closed once output is drained and the process reaped
	err   error         // exit status, valid after done
}

// spawn starts the command and drains stdout and stderr concurrently.
func spawn(name, dir, command string, args, markers []string) (*process, error) {
	cmd := exec.Command(command, args...) //#nosec G204 -- command comes from the operator's config
	cmd.Dir = dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &process{name: name, cmd: cmd, ready: make(chan struct{}), done: make(chan struct{})}
	log := logger.L().With(zap.String("proc", name), zap.Int("pid", cmd.Process.Pid))
	log.Info("process started", zap.String("cmd", command+" "+strings.Join(args, " ")))

	var once sync.Once
	var g errgroup.Group
	g.Go(func() error {
		return drain(stdout, func(line string) {
			log.Debug(line, zap.String("stream", "stdout"))
			if containsAny(line, markers) {
				once.Do(func() { close(p.ready) })
			}
		})
	})
	g.Go(func() error {
		return drain(stderr, func(line string) {
			log.Warn(line, zap.String("stream", "stderr"))
		})
	})

	go func() {
		if err := g.Wait(); err != nil {
			log.Debug("output drain ended", zap.Error(err))
		}
		p.err = cmd.Wait()
		log.Info("process exited", zap.Error(p.err))
		close(p.done)
	}()
	return p, nil
}

func drain(r io.Reader, line func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line(sc.Text())
	}
	return sc.Err()
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// await blocks until the process prints a marker, exits, times out or ctx ends.
func (p *process) await(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.ready:
		return nil
	case <-p.done:
		return core.ErrDevServer.WithMessage(fmt.Sprintf("%s exited prematurely", p.name)).WithCause(p.err)
	case <-timer.C:
		return core.ErrDevServer.WithMessage(fmt.Sprintf("%s not ready within %s", p.name, timeout))
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop sends SIGTERM, waits up to grace, then kills. It returns once the
// process is reaped.
func (p *process) stop(grace time.Duration) {
	select {
	case <-p.done:
		return
	default:
	}
	if err := terminate(p.cmd); err != nil {
		logger.Debug("terminate %s: %v", p.name, err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return
	case <-timer.C:
	}
	logger.Warn("%s did not exit within %s, killing", p.name, grace)
	if err := kill(p.cmd); err != nil {
		logger.Debug("kill %s: %v", p.name, err)
	}
	<-p.done
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Server manages one development server process.
type Server struct {
	opts Options
	mu   sync.Mutex
	proc *process
}

// New creates a stopped server.
func New(opts Options) *Server {
	return &Server{opts: opts}
}

// Running reports whether the server process is alive.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return false
	}
	select {
	case <-s.proc.done:
		return false
	default:
		return true
	}
}

// Start spawns the server and waits for a ready marker, then lets it settle.
// A premature exit, the startup timeout or ctx ending stops the process and
// fails. Starting a running server does nothing.
func (s *Server) Start(ctx context.Context) error {
	if s.Running() {
		return nil
	}

	p, err := spawn("dev server", s.opts.Dir, s.opts.Command, s.opts.StartArgs, s.opts.ReadyMarkers)
	if err != nil {
		return core.ErrDevServer.WithMessage("could not start dev server").WithCause(err)
	}
	s.mu.Lock()
	s.proc = p
	s.mu.Unlock()

	if err := p.await(ctx, s.opts.StartupTimeout); err != nil {
		s.Stop()
		return err
	}
	logger.Info("dev server ready")
	if err := sleepCtx(ctx, s.opts.ReadySettle); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// Open runs the open command until it reports the app opening, lets it
// settle and then stops it.
func (s *Server) Open(ctx context.Context) error {
	p, err := spawn("simulator open", s.opts.Dir, s.opts.Command, s.opts.OpenArgs, s.opts.OpenMarkers)
	if err != nil {
		return core.ErrDevServer.WithMessage("could not open app in simulator").WithCause(err)
	}
	defer p.stop(s.opts.StopTimeout)

	if err := p.await(ctx, s.opts.OpenTimeout); err != nil {
		return err
	}
	logger.Info("app opening in simulator")
	return sleepCtx(ctx, s.opts.OpenSettle)
}

// Setup starts the server and opens the app. The server is stopped if
// opening fails.
func (s *Server) Setup(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	if err := s.Open(ctx); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// Stop terminates the server. Stopping a stopped server does nothing.
func (s *Server) Stop() {
	s.mu.Lock()
	p := s.proc
	s.proc = nil
	s.mu.Unlock()

	if p == nil {
		return
	}
	logger.Info("stopping dev server")
	p.stop(s.opts.StopTimeout)
}
