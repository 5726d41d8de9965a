package process

import (
	"os"
	"sync"

	"go.uber.org/multierr"
)

// _reaper holds every process started by a Launcher until it exits.
var _reaper = &reaper{live: make(map[*process]struct{})}

type reaper struct {
	mu   sync.Mutex
	live map[*process]struct{}
}

func (r *reaper) add(p *process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[p] = struct{}{}
}

func (r *reaper) remove(p *process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, p)
}

func (r *reaper) snapshot() []*process {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*process, 0, len(r.live))
	for p := range r.live {
		result = append(result, p)
	}
	return result
}

// KillAll sends SIGKILL to every driver process that is still running.
// It is a last resort for shutdown paths that skipped an orderly stop.
func KillAll() error {
	var err error
	for _, p := range _reaper.snapshot() {
		err = multierr.Append(err, p.Kill(os.Kill))
	}
	return err
}

// Live returns the number of started processes that have not exited.
func Live() int {
	return len(_reaper.snapshot())
}
