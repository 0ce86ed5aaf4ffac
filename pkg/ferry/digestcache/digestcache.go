// Package digestcache stores content digests keyed by absolute path so
// checksum-mode sync and verify can skip re-hashing unchanged files. An
// entry is trusted only while the file's size and mtime still match what
// was recorded; anything else is a miss. The cache is disposable: a
// corrupt or missing store is rebuilt, never fatal.
package digestcache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io/fs"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no entry exists for a path.
var ErrNotFound = errors.New("digest cache entry not found")

// entry is the stored record for one path.
type entry struct {
	Size    int64
	MtimeNS int64
	Digest  string
}

// encode serializes the entry using gob.
func (e *entry) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decode deserializes bytes into the entry.
func (e *entry) decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// Cache wraps Badger for digest storage.
type Cache struct {
	db *badger.DB
}

// Open opens or creates a digest cache at the given directory.
func Open(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's own logging is noise here

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached digest for path, but only when the file's current
// size and mtime match the recorded ones. A stale entry reports
// ErrNotFound just like a missing one: the caller re-hashes either way.
func (c *Cache) Get(path string, info fs.FileInfo) (string, error) {
	var e entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(e.decode)
	})
	if err != nil {
		return "", err
	}

	if e.Size != info.Size() || e.MtimeNS != info.ModTime().UnixNano() {
		return "", ErrNotFound
	}
	return e.Digest, nil
}

// Put records the digest for path at its current size and mtime.
func (c *Cache) Put(path string, info fs.FileInfo, digest string) error {
	e := entry{
		Size:    info.Size(),
		MtimeNS: info.ModTime().UnixNano(),
		Digest:  digest,
	}
	value, err := e.encode()
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(path), value)
	})
}

// Forget drops the entry for path, if any.
func (c *Cache) Forget(path string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(path))
	})
}

// DropAll clears the whole cache.
func (c *Cache) DropAll() error {
	return c.db.DropAll()
}
