package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/starford/cvdesk/internal/checksum"
	"github.com/starford/cvdesk/internal/models"
)

// User metadata keys; S3 stores them as X-Amz-Meta-* headers.
const (
	metaFilename     = "Filename"
	metaLastModified = "Last-Modified-Ms"
	metaChecksum     = "Checksum"
)

// MinioOptions configures the S3-compatible backend.
type MinioOptions struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Minio implements Store on an S3-compatible bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the endpoint and makes sure the bucket exists.
func NewMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blobstore: bucket exists: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("blobstore: make bucket: %w", err)
		}
	}
	return &Minio{client: cli, bucket: opts.Bucket}, nil
}

// Put uploads doc as one object under id.
func (m *Minio) Put(ctx context.Context, id string, doc *models.Document) error {
	if err := checkID(id); err != nil {
		return err
	}
	_, err := m.client.PutObject(ctx, m.bucket, id, bytes.NewReader(doc.Data), int64(len(doc.Data)), minio.PutObjectOptions{
		ContentType: doc.MimeType,
		UserMetadata: map[string]string{
			metaFilename:     doc.Name,
			metaLastModified: strconv.FormatInt(doc.LastModified.UnixMilli(), 10),
			metaChecksum:     checksum.Sum(doc.Data),
		},
	})
	if err != nil {
		return fmt.Errorf("blobstore: put %s: %w", id, err)
	}
	return nil
}

// Get downloads the object under id.
func (m *Minio) Get(ctx context.Context, id string) (*models.Document, bool, error) {
	info, err := m.client.StatObject(ctx, m.bucket, id, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("blobstore: stat %s: %w", id, err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("blobstore: get %s: %w", id, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("blobstore: read %s: %w", id, err)
	}
	if err := checksum.Verify(data, userMeta(info, metaChecksum)); err != nil {
		return nil, false, fmt.Errorf("blobstore: %s: %w", id, err)
	}

	doc := &models.Document{
		Name:     userMeta(info, metaFilename),
		MimeType: info.ContentType,
		Data:     data,
	}
	if ms, err := strconv.ParseInt(userMeta(info, metaLastModified), 10, 64); err == nil && ms > 0 {
		doc.LastModified = time.UnixMilli(ms)
	}
	return withDefaults(doc), true, nil
}

// Delete removes the object under id. S3 reports success for missing keys.
func (m *Minio) Delete(ctx context.Context, id string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("blobstore: delete %s: %w", id, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// userMeta reads a user metadata value whether or not the SDK stripped the
// X-Amz-Meta- prefix.
func userMeta(info minio.ObjectInfo, key string) string {
	if v, ok := info.UserMetadata[key]; ok {
		return v
	}
	return info.Metadata.Get("X-Amz-Meta-" + key)
}
