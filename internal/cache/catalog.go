package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrExpired is returned by [Catalog.Get] when the entry outlived its TTL.
var ErrExpired = errors.New("cache entry expired")

// Catalog caches JSON encodable values until a deadline, which is encoded
// in the file name as "<id>.<unix seconds>.json".
type Catalog[T any] struct {
	store *store
	now   func() time.Time
}

// NewCatalog creates a new expiring cache under dir.
func NewCatalog[T any](dir string) (*Catalog[T], error) {
	s, err := newStore(dir, CatalogCache, ".json")
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	return &Catalog[T]{store: s, now: time.Now}, nil
}

func (c *Catalog[T]) matches(id string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(c.store.dir, id+".*.json"))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return matches, nil
}

// Get returns the value stored for id. A missing entry yields
// [os.ErrNotExist], an expired one is removed and yields [ErrExpired].
func (c *Catalog[T]) Get(id string) (T, error) {
	var v T
	if id == "" {
		return v, fmt.Errorf("catalog: %w", errInvalidID)
	}
	matches, err := c.matches(id)
	if err != nil {
		return v, err
	}
	if len(matches) == 0 {
		return v, fmt.Errorf("catalog: %s: %w", id, os.ErrNotExist)
	}

	name := strings.TrimSuffix(filepath.Base(matches[0]), ".json")
	expiresAt, err := strconv.ParseInt(strings.TrimPrefix(name, id+"."), 10, 64)
	if err != nil {
		return v, fmt.Errorf("catalog: invalid expiration in %q", name)
	}
	if expiresAt < c.now().Unix() {
		if err := os.Remove(matches[0]); err != nil {
			return v, fmt.Errorf("catalog: remove expired entry: %w", err)
		}
		return v, ErrExpired
	}

	err = c.store.read(name, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&v) //nolint:wrapcheck
	})
	return v, err
}

// Put stores v for id, replacing any previous entry, valid for ttl.
func (c *Catalog[T]) Put(id string, ttl time.Duration, v T) error {
	if id == "" {
		return fmt.Errorf("catalog: %w", errInvalidID)
	}
	if err := c.Delete(id); err != nil {
		return err
	}
	name := fmt.Sprintf("%s.%d", id, c.now().Add(ttl).Unix())
	return c.store.write(name, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(v) //nolint:wrapcheck
	})
}

// Delete removes every entry stored for id.
func (c *Catalog[T]) Delete(id string) error {
	matches, err := c.matches(id)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	return nil
}
