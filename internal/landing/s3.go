package landing

import (
	"context"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"snowbank/pkg/errors"
	"snowbank/pkg/models"
)

// S3Sink uploads into an S3 bucket under a key prefix.
type S3Sink struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3Sink uses the default AWS credential chain.
func NewS3Sink(cfg models.S3) (*S3Sink, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLandingFailed, "Failed to create AWS session")
	}
	return NewS3SinkWithClient(s3.New(sess), cfg.Bucket, cfg.Prefix), nil
}

func NewS3SinkWithClient(client s3iface.S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Sink) Name() string { return "s3://" + path.Join(s.bucket, s.prefix) }

func (s *S3Sink) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFileOperation, "Failed to open file").
			WithContext("path", localPath)
	}
	defer f.Close()

	object := path.Join(s.prefix, key)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(object),
		Body:        f,
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLandingFailed, "Failed to upload to S3").
			WithContext("bucket", s.bucket).
			WithContext("key", object)
	}
	return nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".csv":
		return "text/csv"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
