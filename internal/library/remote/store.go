// Package remote implements the authenticated library store on PostgreSQL.
// Every library type shares one table shape: identity columns plus a jsonb
// payload carrying the type-specific fields.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/infra"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/library"
	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/sqlinline"
)

// Table names for the library buckets. Store constructors only accept values
// from this set; the names are spliced into sqlinline templates.
const (
	TableCharacters   = "library_characters"
	TableEnvironments = "library_environments"
	TableBrands       = "library_brands"
	TableSceneStyles  = "library_scene_styles"
	TablePhotos       = "library_photos"
	TableScenes       = "library_scenes"
)

var knownTables = map[string]struct{}{
	TableCharacters:   {},
	TableEnvironments: {},
	TableBrands:       {},
	TableSceneStyles:  {},
	TablePhotos:       {},
	TableScenes:       {},
}

// Store is a library.Store bound to one table and one user.
type Store[T any, PT library.Record[T]] struct {
	sql    infra.SQLExecutor
	table  string
	userID string
}

// NewStore binds a table to a user. It panics on a table name outside the
// fixed set, since that can only be a programming error.
func NewStore[T any, PT library.Record[T]](sql infra.SQLExecutor, table, userID string) *Store[T, PT] {
	if _, ok := knownTables[table]; !ok {
		panic(fmt.Sprintf("remote: unknown library table %q", table))
	}
	return &Store[T, PT]{sql: sql, table: table, userID: userID}
}

// List returns the user's records newest-first.
func (s *Store[T, PT]) List(ctx context.Context) ([]T, error) {
	rows, err := s.sql.Query(ctx, fmt.Sprintf(sqlinline.QListLibraryRecords, s.table), s.userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		var (
			id        string
			name      string
			fields    []byte
			createdAt time.Time
		)
		if err := rows.Scan(&id, &name, &fields, &createdAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.table, err)
		}
		var rec T
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &rec); err != nil {
				return nil, fmt.Errorf("decode %s record %s: %w", s.table, id, err)
			}
		}
		meta := PT(&rec).Meta()
		meta.ID = id
		meta.Name = name
		meta.CreatedAt = createdAt
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", s.table, err)
	}
	return records, nil
}

// Insert stores a new record under a fresh UUID; the creation timestamp is
// assigned by the database and read back into the returned record.
func (s *Store[T, PT]) Insert(ctx context.Context, rec T) (T, error) {
	var zero T
	meta := PT(&rec).Meta()
	meta.ID = uuid.NewString()

	fields, err := json.Marshal(rec)
	if err != nil {
		return zero, fmt.Errorf("encode %s record: %w", s.table, err)
	}

	row := s.sql.QueryRow(ctx, fmt.Sprintf(sqlinline.QInsertLibraryRecord, s.table),
		meta.ID, s.userID, meta.Name, fields)
	var createdAt time.Time
	if err := row.Scan(&createdAt); err != nil {
		return zero, fmt.Errorf("insert %s record: %w", s.table, err)
	}
	meta.CreatedAt = createdAt
	return rec, nil
}

// Update overwrites the record's name and payload, leaving id and creation
// time untouched.
func (s *Store[T, PT]) Update(ctx context.Context, rec T) error {
	meta := PT(&rec).Meta()
	fields, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", s.table, err)
	}
	tag, err := s.sql.Exec(ctx, fmt.Sprintf(sqlinline.QUpdateLibraryRecord, s.table),
		meta.ID, s.userID, meta.Name, fields)
	if err != nil {
		return fmt.Errorf("update %s record: %w", s.table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s record %s: %w", s.table, meta.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes the record; deleting an unknown id is a no-op.
func (s *Store[T, PT]) Delete(ctx context.Context, id string) error {
	if _, err := s.sql.Exec(ctx, fmt.Sprintf(sqlinline.QDeleteLibraryRecord, s.table), id, s.userID); err != nil {
		return fmt.Errorf("delete %s record: %w", s.table, err)
	}
	return nil
}

var _ library.Store[domain.Character] = (*Store[domain.Character, *domain.Character])(nil)
