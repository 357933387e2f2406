package storage

import (
	"bytes"
	"chat-presence/contract"
	"chat-presence/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

var _ contract.Store = (*BadgerStore)(nil)

// BadgerStore keeps records under "tbl:{table}:{key}" and maintains one
// empty-valued entry per indexed field under "idx:{table}:{index}:{value}:{key}".
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

func recordKey(table, key string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", PrefixTable, table, key))
}

func tablePrefix(table string) []byte {
	return []byte(fmt.Sprintf("%s%s:", PrefixTable, table))
}

func indexPrefix(table, index, value string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s:", PrefixIndex, table, index, value))
}

func indexKey(table, index, value, key string) []byte {
	return append(indexPrefix(table, index, value), key...)
}

// Put replaces the record stored under key and refreshes its index entries.
func (s *BadgerStore) Put(_ context.Context, table, key string, record contract.Record) error {
	stored := lo.Assign(record, contract.Record{"id": key})
	return s.db.Update(func(txn *badger.Txn) error {
		previous, err := getRecord(txn, table, key)
		if err != nil && !goerrors.Is(err, errors.ErrRecordNotFound) {
			return err
		}
		return writeRecord(txn, table, key, previous, stored)
	})
}

// Update merges patch into an existing record.
func (s *BadgerStore) Update(_ context.Context, table, key string, patch contract.Record) error {
	return s.db.Update(func(txn *badger.Txn) error {
		previous, err := getRecord(txn, table, key)
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", table, key, err)
		}
		merged := lo.Assign(previous, patch, contract.Record{"id": key})
		return writeRecord(txn, table, key, previous, merged)
	})
}

// Delete is a no-op for a missing key.
func (s *BadgerStore) Delete(_ context.Context, table, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		previous, err := getRecord(txn, table, key)
		if goerrors.Is(err, errors.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, index := range contract.Indexes[table] {
			if err := txn.Delete(indexKey(table, index, previous.String(index), key)); err != nil {
				return err
			}
		}
		return txn.Delete(recordKey(table, key))
	})
}

func (s *BadgerStore) QueryByIndex(_ context.Context, table, index, value string) ([]contract.Record, error) {
	var records []contract.Record
	prefix := indexPrefix(table, index, value)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			record, err := getRecord(txn, table, key)
			if goerrors.Is(err, errors.ErrRecordNotFound) {
				s.log.Debug("Dangling index entry", "table", table, "index", index, "key", key)
				continue
			}
			if err != nil {
				return err
			}
			// Values holding the separator can share a prefix with another value.
			if record.String(index) != value {
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", table, index, err)
	}
	return records, nil
}

func (s *BadgerStore) Scan(_ context.Context, table string) ([]contract.Record, error) {
	var records []contract.Record
	prefix := tablePrefix(table)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				record, err := decodeRecord(v)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return records, nil
}

func getRecord(txn *badger.Txn, table, key string) (contract.Record, error) {
	item, err := txn.Get(recordKey(table, key))
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	var record contract.Record
	err = item.Value(func(v []byte) error {
		record, err = decodeRecord(v)
		return err
	})
	return record, err
}

// writeRecord stores next and moves the index entries that changed since previous.
func writeRecord(txn *badger.Txn, table, key string, previous, next contract.Record) error {
	data, err := encodeRecord(next)
	if err != nil {
		return err
	}
	for _, index := range contract.Indexes[table] {
		if previous != nil {
			if err := txn.Delete(indexKey(table, index, previous.String(index), key)); err != nil {
				return err
			}
		}
		if value := next.String(index); value != "" {
			if err := txn.Set(indexKey(table, index, value, key), nil); err != nil {
				return err
			}
		}
	}
	return txn.Set(recordKey(table, key), data)
}
