package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage stores each sandbox's blob as a single S3-compatible
// object, for deployments that front the bundler with object storage
// rather than a database. Grounded on the Keyhole-Koro-InsightifyCore
// pack repo's minio-go/v7 usage.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage connects to an S3/minio-compatible endpoint and ensures
// the backing bucket exists.
func NewMinioStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStorage{client: client, bucket: bucket}, nil
}

func (m *MinioStorage) objectName(sandboxID string) string {
	return "sandbox-graphs/" + sandboxID + ".blob"
}

func (m *MinioStorage) Save(ctx context.Context, sandboxID string, blob []byte) error {
	reader := bytes.NewReader(blob)
	_, err := m.client.PutObject(ctx, m.bucket, m.objectName(sandboxID), reader, int64(len(blob)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

func (m *MinioStorage) Load(ctx context.Context, sandboxID string) ([]byte, bool, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.objectName(sandboxID), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, nil
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, false, nil
	}
	return data, true, nil
}

func (m *MinioStorage) Clear(ctx context.Context, sandboxID string) error {
	return m.client.RemoveObject(ctx, m.bucket, m.objectName(sandboxID), minio.RemoveObjectOptions{})
}
