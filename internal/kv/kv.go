// Package kv provides small synchronous key->string stores used as the
// disposable local cache for timer snapshots.
package kv

import (
	"fmt"

	"alcyxob/workout-timer/internal/config"
)

// Store is a synchronous key->string store. Remove of a missing key is not an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open builds the store selected by cfg.SnapshotBackend.
func Open(cfg config.TimerConfig) (Store, error) {
	switch cfg.SnapshotBackend {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil
	case config.BackendRedis:
		return OpenRedis(cfg.Redis)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.SnapshotBackend)
	}
}
