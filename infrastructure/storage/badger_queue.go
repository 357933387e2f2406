package storage

import (
	"chat-presence/contract"
	"chat-presence/delivery"
	"chat-presence/errors"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const defaultPollInterval = 100 * time.Millisecond

var _ delivery.Transport = (*BadgerQueue)(nil)

// BadgerQueue is a durable delivery transport.
// Each envelope lives under "queue:{name}:ready:{visibleAt}:{id}", a receive moves
// it to a later visibleAt so it reappears when its visibility timeout elapses.
// The current key is the receipt, a stale receipt no longer matches any key.
type BadgerQueue struct {
	db           *badger.DB
	log          *slog.Logger
	prefix       string
	pollInterval time.Duration
	now          func() time.Time
}

func NewBadgerQueue(db *badger.DB, log *slog.Logger, name string) *BadgerQueue {
	return &BadgerQueue{
		db:           db,
		log:          log,
		prefix:       fmt.Sprintf("%s%s:ready:", PrefixQueue, name),
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (q *BadgerQueue) WithClock(now func() time.Time) *BadgerQueue {
	q.now = now
	return q
}

func (q *BadgerQueue) readyKey(visibleAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", q.prefix, visibleAt.UnixNano(), id))
}

func (q *BadgerQueue) Send(_ context.Context, env delivery.Envelope) (string, error) {
	id := uuid.NewString()
	data, err := encodeRecord(contract.Record{
		"id":                    id,
		"type":                  string(env.Type),
		"payload":               string(env.Payload),
		"producerParticipantId": env.Attributes.ProducerParticipantID,
		"enqueuedAt":            contract.Millis(env.Attributes.EnqueuedAt),
		"receiveCount":          int64(0),
	})
	if err != nil {
		return "", err
	}

	visibleAt := q.now().Add(env.DeliveryDelay)
	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(q.readyKey(visibleAt, id), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store envelope: %w", err)
	}
	return id, nil
}

// ReceiveBatch claims up to max visible envelopes, polling until at least one
// is available or wait elapses.
func (q *BadgerQueue) ReceiveBatch(ctx context.Context, max int, wait, visibility time.Duration) ([]delivery.Received, error) {
	deadline := q.now().Add(wait)
	for {
		received, err := q.claim(max, visibility)
		if err != nil || len(received) > 0 {
			return received, err
		}
		if !q.now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

type claimed struct {
	key    []byte
	record contract.Record
}

func (q *BadgerQueue) claim(max int, visibility time.Duration) ([]delivery.Received, error) {
	var received []delivery.Received
	prefix := []byte(q.prefix)

	err := q.db.Update(func(txn *badger.Txn) error {
		now := q.now()
		var due []claimed

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(due) < max; it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			visibleAt, err := q.visibleAt(key)
			if err != nil {
				q.log.Warn("Malformed queue key skipped", "key", string(key), "error", err)
				continue
			}
			// Keys are ordered by visibility, nothing after this one is due.
			if visibleAt.After(now) {
				break
			}
			var record contract.Record
			err = item.Value(func(v []byte) error {
				record, err = decodeRecord(v)
				return err
			})
			if err != nil {
				it.Close()
				return err
			}
			due = append(due, claimed{key: key, record: record})
		}
		it.Close()

		for _, c := range due {
			count := c.record.Int("receiveCount") + 1
			c.record["receiveCount"] = count
			data, err := encodeRecord(c.record)
			if err != nil {
				return err
			}
			receipt := q.readyKey(now.Add(visibility), c.record.String("id"))
			if err := txn.Delete(c.key); err != nil {
				return err
			}
			if err := txn.Set(receipt, data); err != nil {
				return err
			}
			received = append(received, toReceived(c.record, string(receipt), int(count)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim envelopes: %w", err)
	}
	return received, nil
}

// Delete acknowledges an envelope by its latest receipt.
func (q *BadgerQueue) Delete(_ context.Context, receipt string) error {
	return q.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(receipt))
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrReceiptExpired
		}
		if err != nil {
			return err
		}
		return txn.Delete([]byte(receipt))
	})
}

// Depth counts the envelopes still held, visible or in flight.
func (q *BadgerQueue) Depth() (int, error) {
	count := 0
	prefix := []byte(q.prefix)
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (q *BadgerQueue) visibleAt(key []byte) (time.Time, error) {
	rest := strings.TrimPrefix(string(key), q.prefix)
	nanos, _, found := strings.Cut(rest, ":")
	if !found {
		return time.Time{}, fmt.Errorf("missing id separator")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}

func toReceived(r contract.Record, receipt string, count int) delivery.Received {
	return delivery.Received{
		Envelope: delivery.Envelope{
			Type:    delivery.Type(r.String("type")),
			Payload: []byte(r.String("payload")),
			Attributes: delivery.Attributes{
				ProducerParticipantID: r.String("producerParticipantId"),
				EnqueuedAt:            r.Time("enqueuedAt"),
			},
		},
		MessageID:    r.String("id"),
		Receipt:      receipt,
		ReceiveCount: count,
	}
}
