// Package seedstore persists the world's seeded cost matrices so a run can
// be replayed exactly from its seed, mirroring original_source/world/world.py's
// np.save/np.load round trip to the seed directory. Grounded on
// pkg/storage/boltdb.go's *bbolt.DB wrapper shape, generalized from a
// multi-bucket resource store down to a single bucket keyed by seed.
package seedstore

import (
	"encoding/json"
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

var bucketCostMatrices = []byte("cost_matrices")

// Store is a bbolt-backed key-value store mapping a seed to its generated
// cost matrix, so that re-running with the same seed reproduces the same
// initial edge weights.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt database at path and ensures
// its bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open seed store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCostMatrices)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cost matrix bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CostMatrix is a square two-dimensional matrix of edge weights, indexed
// [fromNode][toNode], matching world.py's cost_matrix shape.
type CostMatrix [][]float64

// Put stores the cost matrix under the given seed, overwriting any
// existing entry.
func (s *Store) Put(seed int, matrix CostMatrix) error {
	data, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("marshal cost matrix: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCostMatrices)
		return b.Put(seedKey(seed), data)
	})
}

// Get retrieves the cost matrix stored under seed. ok is false if no entry
// exists for that seed.
func (s *Store) Get(seed int) (matrix CostMatrix, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCostMatrices)
		data := b.Get(seedKey(seed))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &matrix)
	})
	return matrix, ok, err
}

// Has reports whether a seed has already been used, without decoding its
// matrix — used to pick "the lowest unused integer seed" (SPEC_FULL §4.2).
func (s *Store) Has(seed int) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCostMatrices)
		found = b.Get(seedKey(seed)) != nil
		return nil
	})
	return found, err
}

func seedKey(seed int) []byte {
	return []byte(strconv.Itoa(seed))
}
