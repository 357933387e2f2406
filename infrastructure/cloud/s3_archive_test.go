package cloud

import (
	"bytes"
	"chat-presence/errors"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Archive_PutGet(t *testing.T) {
	req := require.New(t)
	api := &fakeS3{objects: map[string][]byte{}}
	archive, err := NewS3Archive(api, "chat-archives")
	req.NoError(err)

	req.NoError(archive.Put(context.Background(), "chats/s1/a.json", []byte(`{"messages":[]}`)))
	req.Equal("chat-archives", aws.ToString(api.lastPut.Bucket))
	req.Equal("application/json", aws.ToString(api.lastPut.ContentType))

	data, err := archive.Get(context.Background(), "chats/s1/a.json")
	req.NoError(err)
	req.JSONEq(`{"messages":[]}`, string(data))
}

func TestS3Archive_GetMissing(t *testing.T) {
	archive, err := NewS3Archive(&fakeS3{objects: map[string][]byte{}}, "chat-archives")
	require.NoError(t, err)

	_, err = archive.Get(context.Background(), "chats/unknown.json")
	require.ErrorIs(t, err, errors.ErrArchiveNotFound)
}

func TestNewS3Archive_RequiresBucket(t *testing.T) {
	_, err := NewS3Archive(&fakeS3{}, " ")
	require.Error(t, err)
}
