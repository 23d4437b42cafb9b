package storagesvc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/submission"
)

// NewS3Client builds a client for an S3 compatible endpoint (minio in development).
func NewS3Client(ctx context.Context, conf core.StorageConfig) (*s3.Client, error) {
	awsConf, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKeyID, conf.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type S3Storage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        core.Logger
}

var _ submission.FileStorage = (*S3Storage)(nil)

func NewS3Storage(client *s3.Client, conf core.StorageConfig, logger core.Logger) *S3Storage {
	base := conf.PublicBaseURL
	if base == "" {
		base = conf.Endpoint
	}
	return &S3Storage{
		client:        client,
		bucket:        conf.Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		logger:        logger,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return errors.Wrapf(err, "creating bucket %s", s.bucket)
	}
	s.logger.Info(fmt.Sprintf("bucket %s created", s.bucket))
	return nil
}

// Upload puts the object at path, replacing any previous version.
func (s *S3Storage) Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.Wrapf(err, "putting object %s", path)
	}
	return nil
}

func (s *S3Storage) Delete(ctx context.Context, path string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}); err != nil {
		return errors.Wrapf(err, "deleting object %s", path)
	}
	return nil
}

func (s *S3Storage) PublicURL(path string) string {
	return s.publicBaseURL + "/" + s.bucket + "/" + strings.TrimLeft(path, "/")
}
