package process

import (
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOS records delivered signals and lets the test decide when the process exits.
type fakeOS struct {
	mu      sync.Mutex
	signals []os.Signal
	exit    chan int
}

func newFakeOS() *fakeOS {
	return &fakeOS{exit: make(chan int, 1)}
}

func (f *fakeOS) signal(sig os.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
	return nil
}

func (f *fakeOS) wait() (int, error) {
	return <-f.exit, nil
}

func (f *fakeOS) delivered() []os.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]os.Signal(nil), f.signals...)
}

func TestKillIsIdempotent(t *testing.T) {
	fake := newFakeOS()
	p := newProcess(100, fake.signal, fake.wait)

	assert.NoError(t, p.Kill(os.Kill))
	assert.NoError(t, p.Kill(os.Kill))
	assert.Equal(t, []os.Signal{os.Kill}, fake.delivered())

	fake.exit <- -1
	assert.NoError(t, p.Wait())
}

func TestKillEscalates(t *testing.T) {
	fake := newFakeOS()
	p := newProcess(100, fake.signal, fake.wait)

	assert.NoError(t, p.Kill(os.Interrupt))
	assert.NoError(t, p.Kill(os.Interrupt))
	assert.NoError(t, p.Kill(os.Kill))
	assert.Equal(t, []os.Signal{os.Interrupt, os.Kill}, fake.delivered())

	fake.exit <- -1
	<-p.Done()
}

func TestKillAfterExit(t *testing.T) {
	fake := newFakeOS()
	p := newProcess(7, fake.signal, fake.wait)
	assert.False(t, p.Exited())
	assert.Equal(t, -1, p.ExitCode())

	fake.exit <- 2
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("process never reported exit")
	}

	assert.True(t, p.Exited())
	assert.Equal(t, 2, p.ExitCode())
	assert.Equal(t, 7, p.Pid())
	assert.NoError(t, p.Kill(os.Kill))
	assert.Empty(t, fake.delivered())
}

func TestKillProcessAlreadyDone(t *testing.T) {
	exit := make(chan struct{})
	p := newProcess(1, func(os.Signal) error { return os.ErrProcessDone }, func() (int, error) {
		<-exit
		return 0, nil
	})
	assert.NoError(t, p.Kill(os.Kill))
	close(exit)
	<-p.Done()
}

func TestKillError(t *testing.T) {
	exit := make(chan struct{})
	p := newProcess(1, func(os.Signal) error { return syscall.EPERM }, func() (int, error) {
		<-exit
		return 0, nil
	})
	assert.ErrorIs(t, p.Kill(os.Kill), syscall.EPERM)
	close(exit)
	require.NoError(t, p.Wait())
}
