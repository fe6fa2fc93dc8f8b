// Package library implements the dual-backed record collections behind the
// character, environment, brand, style, photo and scene libraries. A Library
// mirrors exactly one backing store at a time: the device-local store while
// the session is anonymous, the per-user remote store once signed in. The
// first authenticated load migrates any device-local records to the remote
// store and clears the local copy.
package library

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

// Record constrains a library record to a struct embedding domain.RecordMeta.
type Record[T any] interface {
	*T
	Meta() *domain.RecordMeta
}

// Store is the backing-store adapter a Library writes through to. List must
// return records newest-first. Insert assigns identity (ID, CreatedAt) and
// returns the stored record. Delete of an unknown id is a no-op.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Insert(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, rec T) error
	Delete(ctx context.Context, id string) error
}

// Ephemeral is a Store that can be wiped wholesale after migration.
type Ephemeral[T any] interface {
	Store[T]
	Clear(ctx context.Context) error
}

// Library presents one CRUD surface over whichever store the session
// identity selects. All exported methods are safe for concurrent use; the
// mutex serializes in-memory state, not backing-store writes, so concurrent
// saves against the same name resolve last-response-wins.
type Library[T any, PT Record[T]] struct {
	logger zerolog.Logger

	mu      sync.Mutex
	local   Ephemeral[T]
	remote  Store[T] // nil while anonymous
	records []T
	loaded  bool
}

// New returns a Library in the anonymous state, backed by the device-local store.
func New[T any, PT Record[T]](local Ephemeral[T], logger zerolog.Logger) *Library[T, PT] {
	return &Library[T, PT]{local: local, logger: logger}
}

// SetRemote switches the library to the authenticated store. In-memory state
// is discarded immediately so stale cross-store records are never visible;
// the next Load repopulates from the remote store and runs migration.
func (l *Library[T, PT]) SetRemote(remote Store[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remote = remote
	l.records = nil
	l.loaded = false
}

// SetRemoteOnce attaches the remote store built by factory, but only while
// the library is still anonymous; repeated calls for an already-attached
// session are no-ops so in-memory state survives across requests.
func (l *Library[T, PT]) SetRemoteOnce(factory func() Store[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remote != nil {
		return
	}
	l.remote = factory()
	l.records = nil
	l.loaded = false
}

// SetAnonymous switches back to the device-local store, discarding in-memory
// state. Migrated records stay remote; the local store was cleared when they
// left, so nothing resurrects on logout.
func (l *Library[T, PT]) SetAnonymous() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remote = nil
	l.records = nil
	l.loaded = false
}

// Load fetches the full collection from the active store, newest-first, and
// replaces in-memory state. On the first authenticated load with a non-empty
// local store, every local record is copied to the remote store sequentially
// (a failed record is logged and skipped) and the local store is cleared.
func (l *Library[T, PT]) Load(ctx context.Context) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remote == nil {
		records, err := l.local.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load local library: %w", err)
		}
		l.records = records
		l.loaded = true
		return l.snapshotLocked(), nil
	}

	if !l.loaded {
		l.migrateLocked(ctx)
	}

	records, err := l.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load remote library: %w", err)
	}
	l.records = records
	l.loaded = true
	return l.snapshotLocked(), nil
}

// migrateLocked copies device-local records into the remote store and wipes
// the local copy. Per-record failures do not abort the rest; a clear failure
// is logged and tolerated so the load can still complete.
func (l *Library[T, PT]) migrateLocked(ctx context.Context) {
	pending, err := l.local.List(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("library: migration skipped, local list failed")
		return
	}
	if len(pending) == 0 {
		return
	}

	// Insert oldest-first so remote creation order mirrors local history.
	sort.SliceStable(pending, func(i, j int) bool {
		return PT(&pending[i]).Meta().CreatedAt.Before(PT(&pending[j]).Meta().CreatedAt)
	})

	migrated := 0
	for i := range pending {
		rec := pending[i]
		name := PT(&rec).Meta().Name
		if _, err := l.remote.Insert(ctx, rec); err != nil {
			l.logger.Error().Err(err).Str("name", name).Msg("library: failed to migrate record")
			continue
		}
		migrated++
	}
	if err := l.local.Clear(ctx); err != nil {
		l.logger.Error().Err(err).Msg("library: failed to clear local store after migration")
	}
	l.logger.Info().Int("migrated", migrated).Int("total", len(pending)).Msg("library: migrated local records")
}

// Save persists rec to the active store. A record whose name matches
// case-insensitively is updated in place, keeping its ID and CreatedAt;
// otherwise the store assigns identity to a new record. In-memory state
// changes only after the backing write succeeds.
func (l *Library[T, PT]) Save(ctx context.Context, rec T) (T, error) {
	var zero T
	name := strings.TrimSpace(PT(&rec).Meta().Name)
	if name == "" {
		return zero, fmt.Errorf("record name is required: %w", domain.ErrInvalidPrompt)
	}
	PT(&rec).Meta().Name = name

	l.mu.Lock()
	defer l.mu.Unlock()

	store := l.activeLocked()
	if idx := l.indexByNameLocked(name); idx >= 0 {
		existing := PT(&l.records[idx]).Meta()
		PT(&rec).Meta().ID = existing.ID
		PT(&rec).Meta().CreatedAt = existing.CreatedAt
		if err := store.Update(ctx, rec); err != nil {
			return zero, fmt.Errorf("update %q: %w", name, err)
		}
		l.records[idx] = rec
		return rec, nil
	}

	stored, err := store.Insert(ctx, rec)
	if err != nil {
		return zero, fmt.Errorf("insert %q: %w", name, err)
	}
	l.records = append([]T{stored}, l.records...)
	return stored, nil
}

// Remove deletes the record with the given id from the active store and from
// memory. Removing an unknown id is a no-op.
func (l *Library[T, PT]) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.activeLocked().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	for i := range l.records {
		if PT(&l.records[i]).Meta().ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			break
		}
	}
	return nil
}

// Get is a pure in-memory lookup by id.
func (l *Library[T, PT]) Get(id string) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if PT(&l.records[i]).Meta().ID == id {
			return l.records[i], true
		}
	}
	var zero T
	return zero, false
}

// Records returns a copy of the in-memory collection.
func (l *Library[T, PT]) Records() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Library[T, PT]) activeLocked() Store[T] {
	if l.remote != nil {
		return l.remote
	}
	return l.local
}

func (l *Library[T, PT]) indexByNameLocked(name string) int {
	for i := range l.records {
		if strings.EqualFold(PT(&l.records[i]).Meta().Name, name) {
			return i
		}
	}
	return -1
}

func (l *Library[T, PT]) snapshotLocked() []T {
	out := make([]T, len(l.records))
	copy(out, l.records)
	return out
}
