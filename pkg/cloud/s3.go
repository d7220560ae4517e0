package cloud

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/retrohost/retrohost/pkg/logger"
)

type S3Client struct {
	c      *minio.Client
	bucket string
	log    *logger.Logger
}

func NewS3Client(ctx context.Context, endpoint, bucket, key, secret string, insecure bool, log *logger.Logger) (*S3Client, error) {
	s3Client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(key, secret, ""),
		Secure: !insecure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := s3Client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.New("bucket doesn't exist")
	}

	return &S3Client{bucket: bucket, c: s3Client, log: log}, nil
}

func (s *S3Client) Save(ctx context.Context, name string, data []byte, meta map[string]string) error {
	if s == nil || s.c == nil {
		return errors.New("s3 client was not initialised")
	}
	opts := minio.PutObjectOptions{
		ContentType:    "application/octet-stream",
		SendContentMd5: true,
		UserMetadata:   meta,
	}
	info, err := s.c.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return err
	}
	s.log.Debug().Msgf("Uploaded: %v (%v bytes)", info.Key, info.Size)
	return nil
}

func (s *S3Client) Load(ctx context.Context, name string) (data []byte, err error) {
	if s == nil || s.c == nil {
		return nil, errors.New("s3 client was not initialised")
	}
	r, err := s.c.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, r.Close()) }()

	if data, err = io.ReadAll(r); err != nil {
		return nil, err
	}
	s.log.Debug().Msgf("Downloaded: %v (%v bytes)", name, len(data))
	return data, nil
}

func (s *S3Client) Has(ctx context.Context, name string) bool {
	if s == nil || s.c == nil {
		return false
	}
	_, err := s.c.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	return err == nil
}
