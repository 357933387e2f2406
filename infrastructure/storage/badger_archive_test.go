package storage

import (
	"chat-presence/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBadgerArchive_PutGet(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	archive := NewBadgerArchive(db)
	ctx := context.Background()

	key := "chats/abc/2024-01-01T00:00:00Z-xyz.json"
	req.NoError(archive.Put(ctx, key, []byte(`{"messageCount":1}`)))

	data, err := archive.Get(ctx, key)
	req.NoError(err)
	req.JSONEq(`{"messageCount":1}`, string(data))
}

func TestBadgerArchive_GetMissing(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	_, err := NewBadgerArchive(db).Get(context.Background(), "chats/missing.json")
	req.ErrorIs(err, errors.ErrArchiveNotFound)
}
