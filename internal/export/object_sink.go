package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig points the object sink at an S3-compatible bucket.
type ObjectConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
	UseSSL          bool
}

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectSink uploads documents to object storage.
type ObjectSink struct {
	client objectPutter
	bucket string
	prefix string
}

// NewObjectSink builds a MinIO/S3 client from cfg.
func NewObjectSink(cfg ObjectConfig) (*ObjectSink, error) {
	if cfg.EndpointURL == "" {
		return nil, fmt.Errorf("object sink: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object sink: bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("object sink: credentials are required")
	}
	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("object sink: invalid endpoint: %w", err)
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL || u.Scheme == "https"
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object sink: %w", err)
	}
	return &ObjectSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *ObjectSink) Deliver(ctx context.Context, fileName, contentType string, doc []byte) (string, error) {
	key := path.Join(strings.Trim(s.prefix, "/"), uuid.NewString(), fileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
