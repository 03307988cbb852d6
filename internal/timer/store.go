package timer

import (
	"encoding/json"

	"alcyxob/workout-timer/internal/kv"
	"alcyxob/workout-timer/internal/metrics"

	"github.com/rs/zerolog"
)

// SnapshotStore persists timer snapshots by scope key on top of a kv.Store.
// It never returns errors: a corrupt or unreadable snapshot is treated as
// absent and a failed write is only logged, so the cache can never block
// workout logging.
type SnapshotStore struct {
	kv     kv.Store
	logger zerolog.Logger
}

func NewSnapshotStore(store kv.Store, logger zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		kv:     store,
		logger: logger.With().Str("component", "snapshot-store").Logger(),
	}
}

func sessionKey(k ScopeKey) string { return "timer:session:" + k.String() }
func restKey(k ScopeKey) string    { return "timer:rest:" + k.String() }

func (s *SnapshotStore) LoadSession(key ScopeKey) (TimerSnapshot, bool) {
	var snap TimerSnapshot
	if !s.load(sessionKey(key), &snap) {
		return TimerSnapshot{}, false
	}
	if !snap.valid(key) {
		s.discard(sessionKey(key))
		return TimerSnapshot{}, false
	}
	return snap, true
}

func (s *SnapshotStore) SaveSession(snap TimerSnapshot) {
	key, err := ParseScopeKey(snap.ScopeKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Refusing to save session snapshot")
		return
	}
	s.save(sessionKey(key), snap)
}

func (s *SnapshotStore) LoadRest(key ScopeKey) (RestTimerSnapshot, bool) {
	var snap RestTimerSnapshot
	if !s.load(restKey(key), &snap) {
		return RestTimerSnapshot{}, false
	}
	if !snap.valid(key) {
		s.discard(restKey(key))
		return RestTimerSnapshot{}, false
	}
	return snap, true
}

func (s *SnapshotStore) SaveRest(snap RestTimerSnapshot) {
	key, err := ParseScopeKey(snap.ScopeKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Refusing to save rest snapshot")
		return
	}
	s.save(restKey(key), snap)
}

// Remove deletes both the session and the rest snapshot of a scope.
func (s *SnapshotStore) Remove(key ScopeKey) {
	s.RemoveSession(key)
	s.RemoveRest(key)
}

func (s *SnapshotStore) RemoveSession(key ScopeKey) { s.remove(sessionKey(key)) }
func (s *SnapshotStore) RemoveRest(key ScopeKey)    { s.remove(restKey(key)) }

func (s *SnapshotStore) load(key string, dst any) bool {
	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read timer snapshot")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable timer snapshot")
		s.discard(key)
		return false
	}
	return true
}

func (s *SnapshotStore) discard(key string) {
	metrics.SnapshotDecodeFailures.Inc()
	s.remove(key)
}

func (s *SnapshotStore) save(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to encode timer snapshot")
		return
	}
	if err := s.kv.Set(key, string(raw)); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write timer snapshot")
	}
}

func (s *SnapshotStore) remove(key string) {
	if err := s.kv.Remove(key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove timer snapshot")
	}
}
