package compiler

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/proc"
	"github.com/conneroisu/venok/internal/watcher"
)

// WatchSession owns every long-lived resource of a watch-mode build: the
// forked type checker, the swc watch process, file watchers with their
// debouncers and temporary files. Shutdown releases all of them and is
// safe to call from any goroutine, any number of times.
type WatchSession struct {
	logger logging.Logger

	mu         sync.Mutex
	processes  []*process
	watchers   []*watcher.FileWatcher
	debouncers []*watcher.Debouncer
	tempFiles  []string
	closed     bool

	shutdownOnce sync.Once
	closing      chan struct{}
	done         chan struct{}
	stopSignals  func()
}

// NewWatchSession creates an empty session.
func NewWatchSession(logger logging.Logger) *WatchSession {
	if logger == nil {
		logger = logging.Nop()
	}
	return &WatchSession{
		logger:  logger.WithComponent("watch-session"),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// HandleSignals shuts the session down on SIGINT or SIGTERM.
func (s *WatchSession) HandleSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	stop := make(chan struct{})

	s.mu.Lock()
	s.stopSignals = func() {
		signal.Stop(signals)
		close(stop)
	}
	s.mu.Unlock()

	go func() {
		select {
		case sig := <-signals:
			s.logger.Info(context.Background(), "received signal, shutting down", "signal", sig.String())
			s.Shutdown()
		case <-stop:
		}
	}()
}

// Closing is closed when Shutdown starts, before any process is killed.
func (s *WatchSession) Closing() <-chan struct{} {
	return s.closing
}

// Done is closed once Shutdown has run.
func (s *WatchSession) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until ctx is done or the session is shut down.
func (s *WatchSession) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.done:
	}
}

// process is a spawned command reaped by the session.
type process struct {
	cmd    *exec.Cmd
	exited chan struct{}
}

// Spawn starts cmd as the leader of its own process group tied to this
// process's lifetime and records it for Shutdown.
func (s *WatchSession) Spawn(cmd *exec.Cmd) error {
	_, err := s.SpawnMonitored(cmd)
	return err
}

// SpawnMonitored is Spawn returning a channel that receives the result of
// cmd.Wait once the process exits, whether on its own or through Shutdown.
// The session reaps the process; callers must not call cmd.Wait.
func (s *WatchSession) SpawnMonitored(cmd *exec.Cmd) (<-chan error, error) {
	proc.NewGroup(cmd)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &process{cmd: cmd, exited: make(chan struct{})}
	s.processes = append(s.processes, p)

	result := make(chan error, 1)
	go func() {
		result <- cmd.Wait()
		close(p.exited)
	}()
	return result, nil
}

// AttachWatcher records a watcher and its debouncer for Shutdown. If the
// session is already closed both are released immediately.
func (s *WatchSession) AttachWatcher(fw *watcher.FileWatcher, d *watcher.Debouncer) {
	s.mu.Lock()
	closed := s.closed
	if !closed {
		s.watchers = append(s.watchers, fw)
		if d != nil {
			s.debouncers = append(s.debouncers, d)
		}
	}
	s.mu.Unlock()

	if closed {
		if d != nil {
			d.Stop()
		}
		_ = fw.Close()
	}
}

// AddTempFile records a file to delete on Shutdown.
func (s *WatchSession) AddTempFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tempFiles = append(s.tempFiles, path)
}

// Shutdown stops debouncers, closes watchers, kills every spawned process
// tree and removes temporary files.
func (s *WatchSession) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.closing)
		processes := s.processes
		watchers := s.watchers
		debouncers := s.debouncers
		tempFiles := s.tempFiles
		stopSignals := s.stopSignals
		s.mu.Unlock()

		ctx := context.Background()
		for _, d := range debouncers {
			d.Stop()
		}
		for _, fw := range watchers {
			if err := fw.Close(); err != nil {
				s.logger.Warn(ctx, err, "closing watcher")
			}
		}
		for _, p := range processes {
			if err := proc.KillTree(p.cmd.Process.Pid); err != nil {
				s.logger.Warn(ctx, err, "killing process tree", "pid", p.cmd.Process.Pid)
			}
			<-p.exited
		}
		for _, path := range tempFiles {
			_ = os.Remove(path)
		}
		if stopSignals != nil {
			stopSignals()
		}
		close(s.done)
	})
}

var errSessionClosed = errors.New("watch session is shut down")
