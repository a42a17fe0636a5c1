// Package integrity provides a reference contracts.IntegrityChecker backed
// by a bolt bucket: one small bucket, opened once, read and written
// through View/Update.
package integrity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lockstep-dev/lockstep/contracts"
)

var bucketName = []byte("integrity")

const witnessKey = "witness"

// witness is the persisted record of a successful install: the pattern
// set, the lockfile contents, the effective flags, and the registries
// used.
type witness struct {
	Patterns       []string                            `json:"patterns"`
	Lockfile       map[string]contracts.LockedReference `json:"lockfile"`
	Flags          any                                  `json:"flags"`
	UsedRegistries []string                             `json:"used_registries"`
	SavedAt        time.Time                            `json:"saved_at"`
}

// Checker is a reference contracts.IntegrityChecker.
type Checker struct {
	db      *bolt.DB
	present bool
}

// Open opens (creating if absent) a bolt database at path and returns a
// Checker backed by it.
func Open(path string) (*Checker, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening integrity db: %w", err)
	}
	c := &Checker{db: db}
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c.present = b != nil && b.Get([]byte(witnessKey)) != nil
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close releases the underlying bolt database.
func (c *Checker) Close() error { return c.db.Close() }

// Check implements contracts.IntegrityChecker.
func (c *Checker) Check(ctx context.Context, patterns []string, lockfileCache map[string]contracts.LockedReference, flags any) (contracts.IntegrityCheckResult, error) {
	var w *witness
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(witnessKey))
		if raw == nil {
			return nil
		}
		w = &witness{}
		return json.Unmarshal(raw, w)
	})
	if err != nil {
		return contracts.IntegrityCheckResult{}, fmt.Errorf("%w: reading integrity witness: %v", contracts.ErrCollaboratorFailure, err)
	}

	var missing []string
	for _, p := range patterns {
		if _, ok := lockfileCache[p]; !ok {
			missing = append(missing, p)
		}
	}

	if w == nil {
		return contracts.IntegrityCheckResult{IntegrityFileMissing: true, MissingPatterns: missing}, nil
	}

	return contracts.IntegrityCheckResult{
		IntegrityMatches:     samePatternSet(w.Patterns, patterns) && len(missing) == 0,
		IntegrityFileMissing: false,
		MissingPatterns:      missing,
	}, nil
}

// Save implements contracts.IntegrityChecker.
func (c *Checker) Save(ctx context.Context, patterns []string, lockImage map[string]contracts.LockedReference, flags any, usedRegistries []string) error {
	w := witness{
		Patterns:       append([]string{}, patterns...),
		Lockfile:       lockImage,
		Flags:          flags,
		UsedRegistries: append([]string{}, usedRegistries...),
		SavedAt:        time.Now(),
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("%w: marshaling integrity witness: %v", contracts.ErrCollaboratorFailure, err)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		return b.Put([]byte(witnessKey), raw)
	})
	if err != nil {
		return fmt.Errorf("%w: writing integrity witness: %v", contracts.ErrCollaboratorFailure, err)
	}
	c.present = true
	return nil
}

// RemoveIntegrityFile implements contracts.IntegrityChecker.
func (c *Checker) RemoveIntegrityFile(ctx context.Context) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(witnessKey))
	})
	if err != nil {
		return fmt.Errorf("%w: removing integrity witness: %v", contracts.ErrCollaboratorFailure, err)
	}
	c.present = false
	return nil
}

// FileExists implements contracts.IntegrityChecker.
func (c *Checker) FileExists() bool { return c.present }

func samePatternSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]string{}, a...), append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
