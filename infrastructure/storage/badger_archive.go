package storage

import (
	"chat-presence/contract"
	"chat-presence/errors"
	"context"
	goerrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.Archive = (*BadgerArchive)(nil)

// BadgerArchive stores archive documents under "archive:{key}".
type BadgerArchive struct {
	db *badger.DB
}

func NewBadgerArchive(db *badger.DB) *BadgerArchive {
	return &BadgerArchive{db: db}
}

func (a *BadgerArchive) Put(_ context.Context, key string, data []byte) error {
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(PrefixArchive+key), data)
	})
}

func (a *BadgerArchive) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(PrefixArchive + key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, errors.ErrArchiveNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", key, err)
	}
	return data, nil
}
