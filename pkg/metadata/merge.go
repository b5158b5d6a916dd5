package metadata

import (
	"fmt"
	"time"

	"github.com/gekkofs/gekkofs/internal/keyedmutex"
	"github.com/gekkofs/gekkofs/pkg/sorted"
)

// Store wraps a sorted.KeyValue with the typed, atomic compound
// updates the metadata plane needs. goleveldb (like most ordinary KV
// engines, unlike RocksDB) has no native merge-operator primitive;
// atomicity here is emulated with a per-key stripe lock guarding a
// get-then-put, which is sufficient because all callers go through
// this Store rather than writing the KeyValue directly.
type Store struct {
	kv     sorted.KeyValue
	cfg    FieldConfig
	stripe *keyedmutex.Map
}

// NewStore returns a Store backed by kv, serializing records per cfg.
func NewStore(kv sorted.KeyValue, cfg FieldConfig) *Store {
	return &Store{kv: kv, cfg: cfg, stripe: keyedmutex.New(256)}
}

// ErrExists is an error value for a key that is already present.
// Create never returns it: Create is a silent no-op on a present key
// and reports that outcome through its created result.
var ErrExists = fmt.Errorf("metadata: key already exists")

// Create implements the `create` merge operator: if key is absent,
// it is set to md; if present, this is a no-op and created reports
// false.
func (s *Store) Create(key string, md Metadata) (created bool, err error) {
	s.stripe.Lock(key)
	defer s.stripe.Unlock(key)

	if _, err := s.kv.Get(key); err == nil {
		return false, nil
	} else if err != sorted.ErrNotFound {
		return false, err
	}
	if err := s.kv.Set(key, Serialize(md, s.cfg)); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the parsed record for key.
func (s *Store) Get(key string) (Metadata, error) {
	v, err := s.kv.Get(key)
	if err != nil {
		return Metadata{}, err
	}
	return Parse(v, s.cfg)
}

// Remove deletes key's metadata entry. It is idempotent: removing an
// absent key is not an error.
func (s *Store) Remove(key string) error {
	s.stripe.Lock(key)
	defer s.stripe.Unlock(key)
	if err := s.kv.Delete(key); err != nil {
		return err
	}
	return nil
}

// IncreaseSize implements the `increase_size` merge operator: in
// append mode the new size is old size + size; otherwise it is
// max(old size, size).
func (s *Store) IncreaseSize(key string, size int64, append bool) (newSize int64, err error) {
	s.stripe.Lock(key)
	defer s.stripe.Unlock(key)

	md, err := s.getLocked(key)
	if err != nil {
		return 0, err
	}
	if append {
		md.Size += size
	} else if size > md.Size {
		md.Size = size
	}
	md.Mtime = time.Now().Unix()
	if err := s.kv.Set(key, Serialize(md, s.cfg)); err != nil {
		return 0, err
	}
	return md.Size, nil
}

// DecreaseSize implements the `decrease_size` merge operator: size is
// set to the caller-provided absolute value. The caller is assumed to
// have already verified size < current size; no protection against a
// concurrent shrink race is attempted here.
func (s *Store) DecreaseSize(key string, size int64) error {
	s.stripe.Lock(key)
	defer s.stripe.Unlock(key)

	md, err := s.getLocked(key)
	if err != nil {
		return err
	}
	md.Size = size
	md.Mtime = time.Now().Unix()
	return s.kv.Set(key, Serialize(md, s.cfg))
}

// Update applies fn to key's current record and stores the result,
// atomically with respect to the other operators on the same key. It
// returns the store's error unmodified when key is absent.
func (s *Store) Update(key string, fn func(Metadata) Metadata) error {
	s.stripe.Lock(key)
	defer s.stripe.Unlock(key)

	md, err := s.getLocked(key)
	if err != nil {
		return err
	}
	return s.kv.Set(key, Serialize(fn(md), s.cfg))
}

func (s *Store) getLocked(key string) (Metadata, error) {
	v, err := s.kv.Get(key)
	if err != nil {
		return Metadata{}, err
	}
	return Parse(v, s.cfg)
}

// Config returns the FieldConfig this store serializes with, for
// advertising via fs_config.
func (s *Store) Config() FieldConfig { return s.cfg }
