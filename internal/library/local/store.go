package local

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library"
)

// Store adapts one KV bucket into a library.Ephemeral. Each (bucket, device)
// pair owns a single JSON array under one key, mirroring the original flat
// per-library layout of browser local storage.
type Store[T any, PT library.Record[T]] struct {
	kv     *KV
	key    string
	now    func() time.Time
	lastID int64
}

// NewStore binds a bucket (e.g. "characters") for one device profile.
func NewStore[T any, PT library.Record[T]](kv *KV, bucket, deviceID string) *Store[T, PT] {
	return &Store[T, PT]{
		kv:  kv,
		key: bucket + ":" + deviceID,
		now: time.Now,
	}
}

// List returns the stored records newest-first.
func (s *Store[T, PT]) List(ctx context.Context) ([]T, error) {
	records, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return PT(&records[i]).Meta().CreatedAt.After(PT(&records[j]).Meta().CreatedAt)
	})
	return records, nil
}

// Insert assigns a locally-synthesized identifier and creation time, then
// persists the record. Identifiers derive from the epoch millisecond, bumped
// when two inserts land in the same millisecond.
func (s *Store[T, PT]) Insert(ctx context.Context, rec T) (T, error) {
	var zero T
	records, err := s.read(ctx)
	if err != nil {
		return zero, err
	}

	now := s.now()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	meta := PT(&rec).Meta()
	meta.ID = strconv.FormatInt(id, 10)
	meta.CreatedAt = now

	records = append(records, rec)
	if err := s.write(ctx, records); err != nil {
		return zero, err
	}
	return rec, nil
}

// Update replaces the stored record with the same id.
func (s *Store[T, PT]) Update(ctx context.Context, rec T) error {
	records, err := s.read(ctx)
	if err != nil {
		return err
	}
	id := PT(&rec).Meta().ID
	for i := range records {
		if PT(&records[i]).Meta().ID == id {
			records[i] = rec
			return s.write(ctx, records)
		}
	}
	return fmt.Errorf("update record %s: %w", id, domain.ErrNotFound)
}

// Delete removes the record with the given id; unknown ids are a no-op.
func (s *Store[T, PT]) Delete(ctx context.Context, id string) error {
	records, err := s.read(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if PT(&records[i]).Meta().ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.write(ctx, records)
		}
	}
	return nil
}

// Clear drops the whole bucket for this device.
func (s *Store[T, PT]) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key)
}

func (s *Store[T, PT]) read(ctx context.Context) ([]T, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("decode bucket %q: %w", s.key, err)
	}
	return records, nil
}

func (s *Store[T, PT]) write(ctx context.Context, records []T) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode bucket %q: %w", s.key, err)
	}
	return s.kv.Put(ctx, s.key, string(raw))
}

var _ library.Ephemeral[domain.Character] = (*Store[domain.Character, *domain.Character])(nil)
