// Package objstore is the gateway to object storage: get/put/delete of
// image and colorgram bytes keyed by path, with existence-check-before-
// overwrite semantics.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"colorsweep/internal/domain"
)

const defaultAttempts = 3

// Config holds object store connection settings.
type Config struct {
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
}

// Store reads and writes blobs in an S3-compatible object store. Network
// calls are retried a bounded number of times for transient failures.
type Store struct {
	api      s3iface.S3API
	log      *zap.Logger
	attempts uint64
}

// New creates an object store gateway from config.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("access key %s: %w", cfg.AccessKeyID, domain.ErrMissingCredentials)
	}
	awsCfg := aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.EndpointURL != "" {
		awsCfg.Endpoint = aws.String(cfg.EndpointURL)
	}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	sess, err := session.NewSession(&awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	return NewWithAPI(s3.New(sess), log), nil
}

// NewWithAPI creates a gateway over an existing S3 API (tests inject a
// fake here).
func NewWithAPI(api s3iface.S3API, log *zap.Logger) *Store {
	return &Store{api: api, log: log, attempts: defaultAttempts}
}

// Get returns the bytes at bucket/key. A missing key reports
// domain.ErrObjectNotFound, distinguishable from other failures.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var body []byte
	err := s.withRetry(ctx, func() error {
		out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				return backoff.Permanent(fmt.Errorf("s3://%s/%s: %w", bucket, key, domain.ErrObjectNotFound))
			}
			return classify(fmt.Errorf("get s3://%s/%s: %w", bucket, key, err))
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		if err != nil {
			return classify(fmt.Errorf("read s3://%s/%s: %w", bucket, key, err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Exists reports whether an object is present at bucket/key.
func (s *Store) Exists(ctx context.Context, bucket, key string) (bool, error) {
	var exists bool
	err := s.withRetry(ctx, func() error {
		_, err := s.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isNotFound(err) {
				exists = false
				return nil
			}
			return classify(fmt.Errorf("head s3://%s/%s: %w", bucket, key, err))
		}
		exists = true
		return nil
	})
	return exists, err
}

// Put writes bytes to bucket/key. When the key is already present and
// overwrite is false the write is skipped; the existence check is a
// separate read call, there is no atomic conditional put.
func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, overwrite bool) error {
	exists, err := s.Exists(ctx, bucket, key)
	if err != nil {
		return err
	}
	if exists && !overwrite {
		s.log.Debug("object already exists, not overwriting",
			zap.String("bucket", bucket), zap.String("key", key))
		return nil
	}
	err = s.withRetry(ctx, func() error {
		_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(body),
		})
		if err != nil {
			return classify(fmt.Errorf("put s3://%s/%s: %w", bucket, key, err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("uploaded object", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// Delete removes the object at bucket/key. A missing key is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	return s.withRetry(ctx, func() error {
		_, err := s.api.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil && !isNotFound(err) {
			return classify(fmt.Errorf("delete s3://%s/%s: %w", bucket, key, err))
		}
		return nil
	})
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	return backoff.Retry(fn, backoff.WithContext(backoff.WithMaxRetries(bo, s.attempts-1), ctx))
}

// classify marks non-transient request failures permanent so the retry
// loop stops on them immediately.
func classify(err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		code := reqErr.StatusCode()
		if code >= 500 || code == http.StatusTooManyRequests {
			return err
		}
		return backoff.Permanent(err)
	}
	// transport-level failure, worth retrying
	return err
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
