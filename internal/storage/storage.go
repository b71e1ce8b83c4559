// Package storage provides persistent data storage for the forecast combiner.
// It uses BoltDB as the underlying storage engine to keep population snapshots
// for warm starts, evaluator performance matrices per run, and the recorded
// forecast/actual series used for replay.
//
// The package provides thread-safe operations with ordered cursor scans over
// step-keyed records and automatic bucket management.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"forecast-combiner/internal/xcsf"
)

const (
	populationsBucket  = "populations"  // Bucket name for population snapshots
	performanceBucket  = "performance"  // Bucket name for evaluator matrices
	observationsBucket = "observations" // Bucket name for forecast/actual records

	dbFile = "combiner.db"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store provides persistent storage for combiner state using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New creates a new storage instance in the given directory.
// It initializes the BoltDB database and creates necessary buckets.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{populationsBucket, performanceBucket, observationsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePopulation stores a population snapshot under name, replacing any
// previous snapshot with the same name.
func (s *Store) SavePopulation(name string, snapshot xcsf.PopulationSnapshot) error {
	if name == "" {
		return fmt.Errorf("population name cannot be empty")
	}

	data, err := xcsf.MarshalSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("marshal population: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(populationsBucket)).Put([]byte(name), data)
	})
}

// LoadPopulation returns the snapshot stored under name, or ErrNotFound.
func (s *Store) LoadPopulation(name string) (xcsf.PopulationSnapshot, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(populationsBucket)).Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction
		data = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return xcsf.PopulationSnapshot{}, err
	}

	snapshot, err := xcsf.UnmarshalSnapshot(data)
	if err != nil {
		return xcsf.PopulationSnapshot{}, fmt.Errorf("population %s: %w", name, err)
	}
	return snapshot, nil
}

// Populations lists the stored snapshot names in key order.
func (s *Store) Populations() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(populationsBucket)).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// DeletePopulation removes a stored snapshot. Deleting a missing name is not
// an error.
func (s *Store) DeletePopulation(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(populationsBucket)).Delete([]byte(name))
	})
}

// scanPrefix calls fn for every record whose key starts with prefix and is
// within [startKey, endKey], in key order.
func (s *Store) scanPrefix(bucketName string, prefix, startKey, endKey []byte, fn func(k, v []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()

		for k, v := c.Seek(startKey); k != nil && compareKeys(k, endKey) <= 0; k, v = c.Next() {
			if !hasPrefix(k, prefix) {
				continue
			}
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func hasPrefix(data, prefix []byte) bool {
	return bytes.HasPrefix(data, prefix)
}

func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}
