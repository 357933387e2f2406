package cloud

import (
	"bytes"
	"chat-presence/contract"
	"chat-presence/errors"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ contract.Archive = (*S3Archive)(nil)

// s3API is the minimal S3 interface required by S3Archive.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive writes archive documents as JSON objects of one bucket.
type S3Archive struct {
	api    s3API
	bucket string
}

func NewS3Archive(api s3API, bucket string) (*S3Archive, error) {
	if api == nil {
		return nil, goerrors.New("s3 archive: api must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, goerrors.New("s3 archive: bucket name must not be empty")
	}
	return &S3Archive{api: api, bucket: bucket}, nil
}

func (a *S3Archive) Put(ctx context.Context, key string, data []byte) error {
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 archive: put %s: %w", key, err)
	}
	return nil
}

func (a *S3Archive) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := a.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	var noSuchKey *s3types.NoSuchKey
	if goerrors.As(err, &noSuchKey) {
		return nil, fmt.Errorf("s3 archive: %s: %w", key, errors.ErrArchiveNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("s3 archive: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 archive: read %s: %w", key, err)
	}
	return data, nil
}
