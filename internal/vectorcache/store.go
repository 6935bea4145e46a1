// Package vectorcache persists embedding vectors in a bbolt file so restarts
// do not re-embed unchanged vocabulary entries. One bucket per model; keys are
// sha1(model|text); values are little-endian float32 arrays.
package vectorcache

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the cache file, creating parent directories.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(model, text string) ([]float32, bool, error) {
	var vec []float32
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(model))
		if b == nil {
			return nil
		}
		data := b.Get(key(model, text))
		if data == nil {
			return nil
		}
		v, err := decode(data)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return vec, vec != nil, nil
}

func (s *Store) Put(model, text string, vec []float32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(model))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", model, err)
		}
		return b.Put(key(model, text), encode(vec))
	})
}

// Count returns the number of cached vectors for a model.
func (s *Store) Count(model string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(model)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func key(model, text string) []byte {
	h := sha1.Sum([]byte(model + "|" + text))
	return h[:]
}

func encode(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

// decode copies out of the bbolt page; the returned slice outlives the tx.
func decode(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cache entry too small")
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*4 {
		return nil, fmt.Errorf("cache entry length mismatch")
	}
	vec := make([]float32, length)
	for i := 0; i < length; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : (i+1)*4]))
	}
	return vec, nil
}
