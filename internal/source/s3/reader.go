// Package s3 streams Sparkify JSON trees from an S3 prefix. It mirrors the
// local-directory reader: catalog objects hold one JSON song record each,
// event objects are newline-delimited JSON.
package s3

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"musicdw/internal/source"
	"musicdw/pkg/records"
)

const warnLimit = 3

// objectAPI is the slice of the S3 client the reader needs. *s3.S3 satisfies
// it; tests substitute a fake.
type objectAPI interface {
	ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
	GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Reader streams records from every *.json object under Bucket/Prefix.
type Reader struct {
	Bucket string
	Prefix string

	api   objectAPI
	stats source.Stats
	warns int
}

// NewReader opens an S3 session for region and returns a Reader over
// bucket/prefix. Credentials come from the default AWS chain (environment,
// shared config, instance role).
func NewReader(bucket, prefix, region string) (*Reader, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("s3: session: %w", err)
	}
	return &Reader{Bucket: bucket, Prefix: prefix, api: s3.New(sess)}, nil
}

// Stats exposes the reader's counters.
func (r *Reader) Stats() *source.Stats { return &r.stats }

// ReadCatalog decodes each object as a single song record.
func (r *Reader) ReadCatalog(ctx context.Context, out chan<- records.Record) error {
	return r.each(ctx, func(ctx context.Context, key string) error {
		obj, err := r.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("s3: get s3://%s/%s: %w", r.Bucket, key, err)
		}
		defer obj.Body.Close()

		r.stats.Files.Add(1)
		rec, err := source.DecodeObject(obj.Body)
		if err != nil {
			r.stats.BadRecords.Add(1)
			r.warnf("s3: skip s3://%s/%s: %v", r.Bucket, key, err)
			return nil
		}
		return r.send(ctx, out, rec)
	})
}

// ReadEvents decodes each object as NDJSON. Bad lines are dropped and
// counted; the object keeps streaming.
func (r *Reader) ReadEvents(ctx context.Context, out chan<- records.Record) error {
	return r.each(ctx, func(ctx context.Context, key string) error {
		obj, err := r.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("s3: get s3://%s/%s: %w", r.Bucket, key, err)
		}
		defer obj.Body.Close()

		r.stats.Files.Add(1)
		err = source.DecodeLines(obj.Body, func(rec records.Record) error {
			return r.send(ctx, out, rec)
		}, func(line int, derr error) {
			r.stats.BadRecords.Add(1)
			r.warnf("s3: skip s3://%s/%s:%d: %v", r.Bucket, key, line, derr)
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("s3: read s3://%s/%s: %w", r.Bucket, key, err)
		}
		return err
	})
}

// each lists Bucket/Prefix and invokes visit for every *.json key.
func (r *Reader) each(ctx context.Context, visit func(ctx context.Context, key string) error) error {
	var visitErr error
	err := r.api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.Bucket),
		Prefix: aws.String(r.Prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			if visitErr = visit(ctx, key); visitErr != nil {
				return false
			}
		}
		return true
	})
	if visitErr != nil {
		return visitErr
	}
	if err != nil {
		return fmt.Errorf("s3: list s3://%s/%s: %w", r.Bucket, r.Prefix, err)
	}
	return nil
}

func (r *Reader) send(ctx context.Context, out chan<- records.Record, rec records.Record) error {
	select {
	case out <- rec:
		r.stats.Records.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reader) warnf(format string, args ...any) {
	r.warns++
	if r.warns <= warnLimit {
		log.Printf(format, args...)
	} else if r.warns == warnLimit+1 {
		log.Printf("s3: further warnings suppressed")
	}
}
