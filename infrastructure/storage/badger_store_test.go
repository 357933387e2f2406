package storage

import (
	"chat-presence/contract"
	"chat-presence/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBadgerStore_PutAndQueryByIndex(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, testLogger())
	ctx := context.Background()

	// Given two participants
	req.NoError(store.Put(ctx, contract.TableParticipants, "u1", contract.Record{
		"displayName": "alice", "status": "ONLINE", "lastActivityAt": int64(1700000000000),
	}))
	req.NoError(store.Put(ctx, contract.TableParticipants, "u2", contract.Record{
		"displayName": "bob", "status": "AWAY",
	}))

	// When querying by display name
	records, err := store.QueryByIndex(ctx, contract.TableParticipants, contract.IndexDisplayName, "alice")

	// Then only the matching record comes back with its key and numeric fields
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("u1", records[0].String("id"))
	req.Equal("ONLINE", records[0].String("status"))
	req.Equal(int64(1700000000000), records[0].Int("lastActivityAt"))
}

func TestBadgerStore_PutMovesIndexEntry(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, testLogger())
	ctx := context.Background()

	req.NoError(store.Put(ctx, contract.TableConnections, "c1", contract.Record{"participantId": "u1"}))

	// When the connection is rebound to another participant
	req.NoError(store.Put(ctx, contract.TableConnections, "c1", contract.Record{"participantId": "u2"}))

	// Then the old index value no longer finds it
	old, err := store.QueryByIndex(ctx, contract.TableConnections, contract.IndexParticipantID, "u1")
	req.NoError(err)
	req.Empty(old)
	current, err := store.QueryByIndex(ctx, contract.TableConnections, contract.IndexParticipantID, "u2")
	req.NoError(err)
	req.Len(current, 1)
}

func TestBadgerStore_UpdateMergesPatch(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, testLogger())
	ctx := context.Background()

	req.NoError(store.Put(ctx, contract.TableParticipants, "u1", contract.Record{
		"displayName": "alice", "status": "ONLINE", "createdAt": int64(1),
	}))

	// When patching the status
	req.NoError(store.Update(ctx, contract.TableParticipants, "u1", contract.Record{"status": "AWAY"}))

	// Then untouched fields survive and the index still resolves
	records, err := store.QueryByIndex(ctx, contract.TableParticipants, contract.IndexDisplayName, "alice")
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("AWAY", records[0].String("status"))
	req.Equal(int64(1), records[0].Int("createdAt"))
}

func TestBadgerStore_UpdateMissingRecord(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, testLogger())

	err := store.Update(context.Background(), contract.TableParticipants, "ghost", contract.Record{"status": "AWAY"})
	req.ErrorIs(err, errors.ErrRecordNotFound)
	req.True(errors.IsNotFound(err))
}

func TestBadgerStore_DeleteAndScan(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, testLogger())
	ctx := context.Background()

	req.NoError(store.Put(ctx, contract.TableConnections, "c1", contract.Record{"participantId": "u1"}))
	req.NoError(store.Put(ctx, contract.TableConnections, "c2", contract.Record{"participantId": "u1"}))
	req.NoError(store.Put(ctx, contract.TableMessages, "m1", contract.Record{"sessionId": "s1"}))

	// When deleting one connection, twice
	req.NoError(store.Delete(ctx, contract.TableConnections, "c1"))
	req.NoError(store.Delete(ctx, contract.TableConnections, "c1"))

	// Then the scan only sees the remaining connection of that table
	records, err := store.Scan(ctx, contract.TableConnections)
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("c2", records[0].String("id"))

	byParticipant, err := store.QueryByIndex(ctx, contract.TableConnections, contract.IndexParticipantID, "u1")
	req.NoError(err)
	req.Len(byParticipant, 1)
}

func TestBadgerStore_IndexValueSharingPrefix(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	store := NewBadgerStore(db, testLogger())
	ctx := context.Background()

	// Given a display name containing the key separator
	req.NoError(store.Put(ctx, contract.TableParticipants, "u1", contract.Record{"displayName": "a:b"}))
	req.NoError(store.Put(ctx, contract.TableParticipants, "u2", contract.Record{"displayName": "a"}))

	records, err := store.QueryByIndex(ctx, contract.TableParticipants, contract.IndexDisplayName, "a")
	req.NoError(err)
	req.Len(records, 1)
	req.Equal("u2", records[0].String("id"))
}
