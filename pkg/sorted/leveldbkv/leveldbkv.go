// Package leveldbkv implements sorted.KeyValue on top of a single
// on-disk database, using github.com/syndtr/goleveldb. This is the
// engine the daemon uses for its metadata/ directory. Find takes
// only a lower bound, since a prefix scan with no upper bound is all
// the metadata plane's get_dirents needs.
package leveldbkv

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/gekkofs/gekkofs/pkg/sorted"
)

// Open opens (creating if absent) a leveldb database rooted at dir.
func Open(dir string) (sorted.KeyValue, error) {
	opts := &opt.Options{
		Filter: filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(dir, opts)
	if err != nil {
		return nil, err
	}
	return &kvis{
		db:        db,
		readOpts:  &opt.ReadOptions{},
		writeOpts: &opt.WriteOptions{Sync: false},
	}, nil
}

type kvis struct {
	db        *leveldb.DB
	readOpts  *opt.ReadOptions
	writeOpts *opt.WriteOptions
}

func (is *kvis) Get(key string) (string, error) {
	val, err := is.db.Get([]byte(key), is.readOpts)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return "", sorted.ErrNotFound
		}
		return "", err
	}
	return string(val), nil
}

func (is *kvis) Set(key, value string) error {
	return is.db.Put([]byte(key), []byte(value), is.writeOpts)
}

func (is *kvis) Delete(key string) error {
	return is.db.Delete([]byte(key), is.writeOpts)
}

// Find returns an iterator over keys >= key, with no upper bound.
// Callers that need a prefix scan (get_dirents) stop iterating
// themselves once a returned key no longer has the expected prefix.
func (is *kvis) Find(key string) sorted.Iterator {
	var startB []byte
	if key != "" {
		startB = []byte(key)
	}
	return &iter{it: is.db.NewIterator(&util.Range{Start: startB}, is.readOpts)}
}

func (is *kvis) BeginBatch() sorted.BatchMutation {
	return &lvbatch{batch: new(leveldb.Batch)}
}

type lvbatch struct {
	mu    sync.Mutex
	batch *leveldb.Batch
}

func (b *lvbatch) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batch.Put([]byte(key), []byte(value))
}

func (b *lvbatch) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batch.Delete([]byte(key))
}

func (is *kvis) CommitBatch(bm sorted.BatchMutation) error {
	b, ok := bm.(*lvbatch)
	if !ok {
		return errors.New("leveldbkv: invalid batch type")
	}
	return is.db.Write(b.batch, is.writeOpts)
}

func (is *kvis) Close() error {
	return is.db.Close()
}

type iter struct {
	it         iterator.Iterator
	skey, sval *string
	closed     bool
}

func (it *iter) Next() bool {
	if it.closed {
		panic("leveldbkv: Next called after iterator closed")
	}
	it.skey, it.sval = nil, nil
	return it.it.Next()
}

func (it *iter) Key() string {
	if it.skey == nil {
		s := string(it.it.Key())
		it.skey = &s
	}
	return *it.skey
}

func (it *iter) Value() string {
	if it.sval == nil {
		s := string(it.it.Value())
		it.sval = &s
	}
	return *it.sval
}

func (it *iter) Close() error {
	it.closed = true
	it.it.Release()
	return it.it.Error()
}
