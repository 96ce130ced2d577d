package lake

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// s3API is the slice of the S3 client S3Sink needs for prefix deletion.
// *s3.S3 satisfies it; tests substitute a fake.
type s3API interface {
	ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
	DeleteObjectsWithContext(ctx aws.Context, in *s3.DeleteObjectsInput, opts ...request.Option) (*s3.DeleteObjectsOutput, error)
}

type uploaderAPI interface {
	UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3Sink stores parquet files under s3://Bucket/Prefix using multipart
// uploads.
type S3Sink struct {
	Bucket string
	Prefix string

	api      s3API
	uploader uploaderAPI
}

// NewS3Sink opens an S3 session for region and returns a sink over
// bucket/prefix.
func NewS3Sink(bucket, prefix, region string) (*S3Sink, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("lake: s3 session: %w", err)
	}
	return &S3Sink{
		Bucket:   bucket,
		Prefix:   prefix,
		api:      s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Remove deletes every object under the table prefix, in batches of up to
// 1000 keys per DeleteObjects call.
func (s *S3Sink) Remove(ctx context.Context, prefix string) error {
	full := path.Join(s.Prefix, prefix) + "/"

	var delErr error
	err := s.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(full),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		if len(page.Contents) == 0 {
			return true
		}
		ids := make([]*s3.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			ids[i] = &s3.ObjectIdentifier{Key: obj.Key}
		}
		_, delErr = s.api.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		return delErr == nil
	})
	if delErr != nil {
		return fmt.Errorf("lake: delete s3://%s/%s: %w", s.Bucket, full, delErr)
	}
	if err != nil {
		return fmt.Errorf("lake: list s3://%s/%s: %w", s.Bucket, full, err)
	}
	return nil
}

// Put uploads the local file to Prefix/key.
func (s *S3Sink) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path.Join(s.Prefix, key)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("lake: upload s3://%s/%s: %w", s.Bucket, path.Join(s.Prefix, key), err)
	}
	return nil
}
