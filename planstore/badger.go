package planstore

import (
	"context"

	"github.com/agentuity/go-plancache/plan"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
)

// Badger stores plans in an embedded BadgerDB using entry TTLs for expiry.
type Badger struct {
	db  *badger.DB
	cfg config
}

var _ Store = (*Badger)(nil)

// NewBadger opens a BadgerDB in dir. An empty dir opens an in-memory
// database.
func NewBadger(dir string, opts ...Option) (*Badger, error) {
	bopts := badger.DefaultOptions(dir)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts = bopts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(32 << 20)
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "planstore: open badger")
	}
	return &Badger{db: db, cfg: applyOptions(opts)}, nil
}

func (b *Badger) key(k string) []byte {
	return []byte(b.cfg.prefixKey(k))
}

func (b *Badger) Load(_ context.Context, key string) (*plan.Plan, bool, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "planstore: badger load %s", key)
	}
	p, err := decodePlan(data)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (b *Badger) Save(_ context.Context, key string, p *plan.Plan) error {
	data, err := encodePlan(p)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(b.key(key), data).WithTTL(b.cfg.expires))
	})
	return errors.Wrapf(err, "planstore: badger save %s", key)
}

func (b *Badger) Delete(_ context.Context, keys ...string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(b.key(k)); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "planstore: badger delete")
}

func (b *Badger) Close() error {
	return b.db.Close()
}
