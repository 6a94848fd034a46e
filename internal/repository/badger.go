package repository

import (
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"botfleet/internal/domain"
)

// BadgerRepository keeps snapshots in a BadgerDB key-value store. Badger
// transactions provide the atomic rename that backs ChangeStatus.
type BadgerRepository struct {
	db *badger.DB
}

var _ Repository = (*BadgerRepository)(nil)

// NewBadgerRepository opens (or creates) the database at dbPath.
func NewBadgerRepository(dbPath string) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// DB errors still surface from the operations themselves.
	opts.Logger = nil
	return openBadger(opts)
}

// NewInMemoryRepository opens a non-persistent store, used in tests.
func NewInMemoryRepository() (*BadgerRepository, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerRepository, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open snapshot store")
	}
	return &BadgerRepository{db: db}, nil
}

func (r *BadgerRepository) Store(key Key, snap *Snapshot) error {
	if err := key.validate(); err != nil {
		return err
	}
	if snap == nil {
		return errors.New("snapshot is required")
	}
	snap.UpdatedAt = time.Now().UTC()

	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key.String()), payload)
	})
}

func (r *BadgerRepository) Read(key Key) (*Snapshot, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}

	var payload []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "key %s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot at %s", key)
	}

	return decodeSnapshot(payload)
}

// ChangeStatus validates the transition against the status machine
// (stopped is terminal) and performs the move inside one transaction:
// write at the destination key, delete at the source key. Badger commits
// both or neither.
func (r *BadgerRepository) ChangeStatus(personID, exchange, botID string, from, to domain.Status) error {
	if from == to {
		return nil
	}
	src := Key{PersonID: personID, Exchange: exchange, BotID: botID, Status: from}
	if err := src.validate(); err != nil {
		return err
	}
	if !to.Valid() {
		return errors.Errorf("unknown status %q", to)
	}
	if !from.CanTransitionTo(to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	dst := src.WithStatus(to)

	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(src.String()))
		if err != nil {
			return err
		}
		payload, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(dst.String()), payload); err != nil {
			return err
		}
		return txn.Delete([]byte(src.String()))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.Wrapf(ErrInvalidTransition, "no snapshot at %s", src)
	}
	if err != nil {
		return errors.Wrapf(err, "move snapshot %s -> %s", src, dst)
	}
	return nil
}

func (r *BadgerRepository) Close() error {
	return r.db.Close()
}
