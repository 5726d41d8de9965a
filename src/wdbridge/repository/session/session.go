// Package session stores the driver sessions bridged by the daemon.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/errors"
	"github.com/uber/webdriver-bridge/src/wdbridge/mapper"
	"github.com/uber/webdriver-bridge/src/wdbridge/model"
)

const _activeSessionsGauge = "active_sessions"

// Repository is an entity-scoped repository.
type Repository interface {
	Get(context.Context, uuid.UUID) (*entity.Session, error)
	Set(context.Context, *entity.Session) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns every session, oldest first.
	List(ctx context.Context) ([]*entity.Session, error)
	// ListByConnection returns the sessions started on the given connection, oldest first.
	ListByConnection(ctx context.Context, connection uuid.UUID) ([]*entity.Session, error)
	SessionCount(ctx context.Context) (int, error)
}

type repository struct {
	mu       sync.Mutex
	memstore map[uuid.UUID]*model.Session
	stats    tally.Scope
}

// New returns a repository to a key-value Session data store.
func New(stats tally.Scope) Repository {
	return &repository{
		memstore: make(map[uuid.UUID]*model.Session),
		stats:    stats,
	}
}

// Get returns the Session associated with the given id.
func (r *repository) Get(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.memstore[id]
	if !ok {
		return nil, &errors.UUIDNotFoundError{UUID: id}
	}
	return mapper.ModelToSession(s)
}

// Set sets the Session to its associated uuid.
func (r *repository) Set(ctx context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s == nil {
		return errors.New("can't save nil session")
	}
	r.memstore[s.UUID] = mapper.SessionToModel(s)
	r.stats.Gauge(_activeSessionsGauge).Update(float64(len(r.memstore)))
	return nil
}

// Delete removes the Session associated with the given id.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.memstore, id)
	r.stats.Gauge(_activeSessionsGauge).Update(float64(len(r.memstore)))
	return nil
}

func (r *repository) List(ctx context.Context) ([]*entity.Session, error) {
	return r.filter(func(*model.Session) bool { return true })
}

func (r *repository) ListByConnection(ctx context.Context, connection uuid.UUID) ([]*entity.Session, error) {
	return r.filter(func(s *model.Session) bool { return s.Connection == connection })
}

// SessionCount returns the total count of bridged sessions.
func (r *repository) SessionCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.memstore), nil
}

func (r *repository) filter(keep func(*model.Session) bool) ([]*entity.Session, error) {
	r.mu.Lock()
	found := make([]*entity.Session, 0, len(r.memstore))
	for _, m := range r.memstore {
		if !keep(m) {
			continue
		}
		s, err := mapper.ModelToSession(m)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		found = append(found, s)
	}
	r.mu.Unlock()

	sort.Slice(found, func(i, j int) bool {
		if found[i].StartedAt.Equal(found[j].StartedAt) {
			return found[i].UUID.String() < found[j].UUID.String()
		}
		return found[i].StartedAt.Before(found[j].StartedAt)
	})
	return found, nil
}
