package landing

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"cloud.google.com/go/storage"

	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

const gcsUploadTimeout = 2 * time.Minute

// objectWriters opens a writer for an object in a bucket.
type objectWriters interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
}

type gcsClient struct {
	client *storage.Client
}

func (c gcsClient) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

// GCSSink uploads into a Cloud Storage bucket under a prefix.
type GCSSink struct {
	writers objectWriters
	closer  io.Closer
	bucket  string
	prefix  string
}

// NewGCSSink uses application default credentials.
func NewGCSSink(ctx context.Context, cfg models.GCS) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLandingFailed, "Failed to create GCS client")
	}
	return &GCSSink{writers: gcsClient{client}, closer: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSSink) Name() string { return "gs://" + path.Join(s.bucket, s.prefix) }

func (s *GCSSink) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open file").
			WithContext("path", localPath)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, gcsUploadTimeout)
	defer cancel()

	object := path.Join(s.prefix, key)
	w := s.writers.NewWriter(ctx, s.bucket, object, contentType(key))
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return errors.Wrap(err, errors.ErrCodeLandingFailed, "Failed to write object").
			WithContext("bucket", s.bucket).
			WithContext("object", object)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeLandingFailed, "Failed to finalize object").
			WithContext("bucket", s.bucket).
			WithContext("object", object)
	}
	return nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
