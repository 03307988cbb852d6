// Package memory holds in-process repositories used by the offline calendar
// command and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"alcyxob/workout-timer/internal/domain"
	"alcyxob/workout-timer/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProgramRepository struct {
	mu       sync.RWMutex
	programs map[primitive.ObjectID]domain.Program
}

func NewProgramRepository() *ProgramRepository {
	return &ProgramRepository{programs: make(map[primitive.ObjectID]domain.Program)}
}

func (r *ProgramRepository) Create(_ context.Context, p *domain.Program) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.ID = primitive.NewObjectID()
	for i := range p.Days {
		if p.Days[i].ID == primitive.NilObjectID {
			p.Days[i].ID = primitive.NewObjectID()
		}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.programs[p.ID] = *p
	return p.ID, nil
}

func (r *ProgramRepository) GetByID(_ context.Context, userID, id primitive.ObjectID) (*domain.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.programs[id]
	if !ok || p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *ProgramRepository) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.Program{}
	for _, p := range r.programs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type WorkoutLogRepository struct {
	mu   sync.RWMutex
	logs map[primitive.ObjectID]domain.WorkoutLog
}

func NewWorkoutLogRepository() *WorkoutLogRepository {
	return &WorkoutLogRepository{logs: make(map[primitive.ObjectID]domain.WorkoutLog)}
}

func (r *WorkoutLogRepository) Create(_ context.Context, l *domain.WorkoutLog) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, x := range r.logs {
		if x.UserID == l.UserID && x.ProgramID == l.ProgramID && x.Date == l.Date {
			return primitive.NilObjectID, repository.ErrConflict
		}
	}
	l.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	r.logs[l.ID] = *l
	return l.ID, nil
}

func (r *WorkoutLogRepository) GetByID(_ context.Context, userID, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.logs[id]
	if !ok || l.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *WorkoutLogRepository) FindByProgramAndDate(_ context.Context, userID, programID primitive.ObjectID, date string) (*domain.WorkoutLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, l := range r.logs {
		if l.UserID == userID && l.ProgramID == programID && l.Date == date {
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *WorkoutLogRepository) ListByProgramAndRange(_ context.Context, userID, programID primitive.ObjectID, from, to string) ([]domain.WorkoutLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.WorkoutLog{}
	for _, l := range r.logs {
		if l.UserID == userID && l.ProgramID == programID && l.Date >= from && l.Date <= to {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r *WorkoutLogRepository) UpdateTimerSeconds(_ context.Context, userID, id primitive.ObjectID, seconds int64) error {
	return r.modify(userID, id, func(l *domain.WorkoutLog) { l.TimerSeconds = seconds })
}

func (r *WorkoutLogRepository) SetArchiveKey(_ context.Context, userID, id primitive.ObjectID, key string) error {
	return r.modify(userID, id, func(l *domain.WorkoutLog) { l.ArchiveKey = key })
}

func (r *WorkoutLogRepository) MarkComplete(ctx context.Context, userID, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	err := r.modify(userID, id, func(l *domain.WorkoutLog) {
		if l.CompletedAt == nil {
			now := time.Now().UTC()
			l.CompletedAt = &now
		}
		l.Completed = true
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, userID, id)
}

func (r *WorkoutLogRepository) modify(userID, id primitive.ObjectID, fn func(*domain.WorkoutLog)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logs[id]
	if !ok || l.UserID != userID {
		return repository.ErrNotFound
	}
	fn(&l)
	l.UpdatedAt = time.Now().UTC()
	r.logs[id] = l
	return nil
}

var (
	_ repository.ProgramRepository    = (*ProgramRepository)(nil)
	_ repository.WorkoutLogRepository = (*WorkoutLogRepository)(nil)
)
