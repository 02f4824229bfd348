// Package store persists the last successfully fetched course catalog in a
// local BBolt database, so the summary view can still render when the
// platform is unreachable. Nothing about individual report triggers is
// persisted.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/openedu-urfu/reportctl/edx"
)

// ErrNoSnapshot indicates no catalog snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no catalog snapshot")

var (
	bucketCatalog = []byte("catalog")
	keyCourses    = []byte("courses")
	keyFetchedAt  = []byte("fetched_at")
)

// Snapshot is a BBolt-backed catalog snapshot store.
type Snapshot struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string) (*Snapshot, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Close closes the underlying database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}

// SaveCourses replaces the stored catalog with the given course list and
// fetch time.
func (s *Snapshot) SaveCourses(courses []edx.Course, fetchedAt time.Time) error {
	data, err := json.Marshal(courses)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketCatalog)
		if err != nil {
			return err
		}
		if err := b.Put(keyCourses, data); err != nil {
			return err
		}
		return b.Put(keyFetchedAt, []byte(fetchedAt.UTC().Format(time.RFC3339)))
	})
}

// Courses returns the stored catalog and when it was fetched.
func (s *Snapshot) Courses() ([]edx.Course, time.Time, error) {
	var courses []edx.Course
	var fetchedAt time.Time
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCatalog)
		if b == nil {
			return ErrNoSnapshot
		}
		data := b.Get(keyCourses)
		if data == nil {
			return ErrNoSnapshot
		}
		if err := json.Unmarshal(data, &courses); err != nil {
			return fmt.Errorf("decoding snapshot: %w", err)
		}
		if raw := b.Get(keyFetchedAt); raw != nil {
			if ts, err := time.Parse(time.RFC3339, string(raw)); err == nil {
				fetchedAt = ts
			}
		}
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return courses, fetchedAt, nil
}
