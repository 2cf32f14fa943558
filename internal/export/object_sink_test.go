package export

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	f.bucket, f.key, f.contentType = bucket, key, opts.ContentType
	f.body, _ = io.ReadAll(r)
	return minio.UploadInfo{Bucket: bucket, Key: key}, nil
}

func TestObjectSinkDeliver(t *testing.T) {
	fake := &fakePutter{}
	sink := &ObjectSink{client: fake, bucket: "exports", prefix: "/org-1/"}
	loc, err := sink.Deliver(context.Background(), "gemstones_20240101.csv", FormatCSV.ContentType(), []byte("a,b"))
	require.NoError(t, err)
	assert.Equal(t, "exports", fake.bucket)
	assert.True(t, strings.HasPrefix(fake.key, "org-1/"))
	assert.True(t, strings.HasSuffix(fake.key, "/gemstones_20240101.csv"))
	assert.Equal(t, "text/csv; charset=utf-8", fake.contentType)
	assert.Equal(t, []byte("a,b"), fake.body)
	assert.Equal(t, "s3://exports/"+fake.key, loc)
}

func TestObjectSinkError(t *testing.T) {
	sink := &ObjectSink{client: &fakePutter{err: errors.New("denied")}, bucket: "exports"}
	_, err := sink.Deliver(context.Background(), "x.csv", FormatCSV.ContentType(), nil)
	assert.ErrorContains(t, err, "denied")
}

func TestNewObjectSinkValidation(t *testing.T) {
	_, err := NewObjectSink(ObjectConfig{})
	assert.Error(t, err)
	_, err = NewObjectSink(ObjectConfig{EndpointURL: "http://localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "credentials")
	sink, err := NewObjectSink(ObjectConfig{EndpointURL: "http://localhost:9000", Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "b", sink.bucket)
}
