// Package blob wraps the object store holding card upload bytes.
package blob

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// FinalizedObject describes a completed upload as reported by the bucket
// notification stream or the ingest webhook.
type FinalizedObject struct {
	Key         string
	Size        int64
	ContentType string
}

type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *Store) Bucket() string {
	return s.bucket
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *Store) Stat(ctx context.Context, key string) (FinalizedObject, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return FinalizedObject{}, fmt.Errorf("stat object %s: %w", key, err)
	}
	return FinalizedObject{Key: info.Key, Size: info.Size, ContentType: info.ContentType}, nil
}

// Remove deletes one object. A missing object is not an error: the caller
// is always cleaning up and an already-gone blob is the desired end state.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// RemovePrefix walks the prefix recursively (nested upload keys included)
// and removes each object best-effort. Individual failures are logged and
// counted, never returned: the caller proceeds regardless.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) (removed, failed int) {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objects {
		if object.Err != nil {
			log.Printf("blob: list %s: %v", prefix, object.Err)
			failed++
			continue
		}
		if err := s.Remove(ctx, object.Key); err != nil {
			log.Printf("blob: remove %s: %v", object.Key, err)
			failed++
			continue
		}
		removed++
	}
	return removed, failed
}

// ListenFinalized subscribes to the bucket's object-created notifications
// and forwards them as FinalizedObject values until ctx is cancelled.
// Notification keys arrive URL-encoded.
func (s *Store) ListenFinalized(ctx context.Context) <-chan FinalizedObject {
	out := make(chan FinalizedObject)
	events := s.client.ListenBucketNotification(ctx, s.bucket, "", "", []string{
		string(notification.ObjectCreatedAll),
	})

	go func() {
		defer close(out)
		for info := range events {
			if info.Err != nil {
				log.Printf("blob: notification stream: %v", info.Err)
				continue
			}
			for _, record := range info.Records {
				key, err := url.QueryUnescape(record.S3.Object.Key)
				if err != nil {
					log.Printf("blob: undecodable object key %q: %v", record.S3.Object.Key, err)
					continue
				}
				select {
				case out <- FinalizedObject{
					Key:         key,
					Size:        record.S3.Object.Size,
					ContentType: record.S3.Object.ContentType,
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
