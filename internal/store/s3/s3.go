// Package s3 implements store.Backend on an Amazon S3 compatible bucket.
// The bucket is the store; every key is one object named Prefix+key.
//
// Object keys are strings on the wire, so keys must be valid UTF-8.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"cloudshelf/internal/store"
)

const listMax = 1000

var errInvalidKey = errors.New("s3 object keys must be valid UTF-8")

// Parameters configures a Store built by New.
type Parameters struct {
	Bucket         string
	Prefix         string
	Region         string
	RegionEndpoint string
	ForcePathStyle bool
	Secure         bool
	// Credentials may be nil to use the SDK's default chain.
	Credentials *credentials.Credentials
}

// Store holds the objects of one bucket under one prefix.
type Store struct {
	client S3Client
	bucket string
	prefix string
	region string
	closed atomic.Bool
}

// New constructs a Store from an AWS session built out of params.
func New(params Parameters) (*Store, error) {
	if params.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}

	awsConfig := aws.NewConfig()
	if params.Credentials != nil {
		awsConfig.WithCredentials(params.Credentials)
	}
	if params.RegionEndpoint != "" {
		awsConfig.WithEndpoint(params.RegionEndpoint)
	}
	awsConfig.WithS3ForcePathStyle(params.ForcePathStyle)
	awsConfig.WithRegion(params.Region)
	awsConfig.WithDisableSSL(!params.Secure)

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create new session with aws config: %v", err)
	}
	s := NewWithClient(s3.New(sess), params.Bucket, params.Prefix)
	s.region = params.Region
	return s, nil
}

// NewWithClient builds a Store on an existing client.
func NewWithClient(client S3Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// parseError maps S3 error codes onto the store error kinds.
func parseError(err error) error {
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return store.ErrKeyNotFound
		}
	}
	return err
}

func isBucketMissing(err error) bool {
	var awsErr awserr.Error
	if !errors.As(err, &awsErr) {
		return false
	}
	switch awsErr.Code() {
	case s3.ErrCodeNoSuchBucket, "NotFound":
		return true
	}
	return false
}

func (s *Store) objectKey(key []byte) (string, error) {
	if s.closed.Load() {
		return "", store.ErrClosed
	}
	if !utf8.Valid(key) {
		return "", fmt.Errorf("%w: %q", errInvalidKey, key)
	}
	return s.prefix + string(key), nil
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	name, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, parseError(err)
	}
	defer resp.Body.Close()

	val, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", name, err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key, value []byte) error {
	name, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		ContentType: aws.String("application/octet-stream"),
		Body:        bytes.NewReader(value),
	})
	return parseError(err)
}

// Delete reports ErrKeyNotFound for absent objects. DeleteObject itself
// succeeds on missing keys, so the object is checked first.
func (s *Store) Delete(ctx context.Context, key []byte) error {
	name, err := s.objectKey(key)
	if err != nil {
		return err
	}
	_, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return parseError(err)
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	return parseError(err)
}

// ForEachKey lists the whole prefix before calling fn.
func (s *Store) ForEachKey(ctx context.Context, fn func(key []byte) error) error {
	keys, err := s.list(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) list(ctx context.Context) ([][]byte, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var keys [][]byte
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix),
		MaxKeys: aws.Int64(listMax),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			name := aws.StringValue(obj.Key)
			if !strings.HasPrefix(name, s.prefix) {
				continue
			}
			keys = append(keys, []byte(strings.TrimPrefix(name, s.prefix)))
		}
		return true
	})
	if err != nil {
		return nil, parseError(err)
	}
	return keys, nil
}

// Len lists the prefix; S3 has no count operation.
func (s *Store) Len(ctx context.Context) (int, error) {
	keys, err := s.list(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *Store) Exists(ctx context.Context) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return true, nil
	}
	if isBucketMissing(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Create(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(s.region),
		}
	}
	_, err := s.client.CreateBucketWithContext(ctx, input)
	var awsErr awserr.Error
	if errors.As(err, &awsErr) && awsErr.Code() == s3.ErrCodeBucketAlreadyOwnedByYou {
		return nil
	}
	return err
}

// Sync is a no-op: every Set is durable once PutObject returns.
func (s *Store) Sync(context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
