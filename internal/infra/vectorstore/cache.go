package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var embeddingsBucket = []byte("embeddings")

// Cache persists chunk embeddings in a bbolt file so unchanged chunks are not
// embedded again after a restart or a knowledge folder change.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(embeddingsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Get returns the cached vectors of texts, keyed by position. Missing or
// malformed entries are left out.
func (c *Cache) Get(model string, texts []string) (map[int][]float64, error) {
	found := make(map[int][]float64)
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(embeddingsBucket)
		if b == nil {
			return nil
		}
		for i, text := range texts {
			raw := b.Get(cacheKey(model, text))
			if raw == nil {
				continue
			}
			var vector []float64
			if err := json.Unmarshal(raw, &vector); err != nil {
				continue
			}
			found[i] = vector
		}
		return nil
	})
	return found, err
}

// Put stores one vector per text.
func (c *Cache) Put(model string, texts []string, vectors [][]float64) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("cache put: %d texts for %d vectors", len(texts), len(vectors))
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(embeddingsBucket)
		if err != nil {
			return err
		}
		for i, text := range texts {
			enc, err := json.Marshal(vectors[i])
			if err != nil {
				return err
			}
			if err := b.Put(cacheKey(model, text), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(model, text string) []byte {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return []byte(hex.EncodeToString(sum[:]))
}
