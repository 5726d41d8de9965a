package process

import (
	stderr "errors"
	"os"
	"sync"
)

// Process is a started driver executable.
type Process interface {
	Pid() int
	// Kill delivers sig to the process. Delivering the same signal twice, or any signal after
	// the process exited, is a no-op that returns nil.
	Kill(sig os.Signal) error
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	Exited() bool
	// ExitCode is -1 while running or when the process was terminated by a signal.
	ExitCode() int
	// Wait blocks until the process exits and returns the wait error.
	Wait() error
}

type process struct {
	pid    int
	signal func(os.Signal) error
	done   chan struct{}

	mu       sync.Mutex
	sent     map[string]bool
	exitCode int
	waitErr  error
}

// newProcess tracks a started process. wait is called once from a new goroutine and must
// block until the process exits.
func newProcess(pid int, signal func(os.Signal) error, wait func() (int, error)) *process {
	p := &process{
		pid:      pid,
		signal:   signal,
		done:     make(chan struct{}),
		sent:     make(map[string]bool),
		exitCode: -1,
	}
	go func() {
		code, err := wait()
		p.mu.Lock()
		p.exitCode = code
		p.waitErr = err
		p.mu.Unlock()
		close(p.done)
	}()
	return p
}

func (p *process) Pid() int {
	return p.pid
}

func (p *process) Kill(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Exited() || p.sent[sig.String()] {
		return nil
	}
	p.sent[sig.String()] = true

	if err := p.signal(sig); err != nil && !stderr.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}
