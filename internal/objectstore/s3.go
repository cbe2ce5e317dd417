package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"coursepipe/internal/config"
	"coursepipe/internal/services"
)

// S3Store uploads objects to Amazon S3 or a compatible API such as MinIO.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucket     string
	endpoint   string
	publicBase string
	pathStyle  bool
}

// NewS3Store builds a client from the storage configuration. Static
// credentials are used when both keys are set; otherwise the default AWS
// credential chain applies. A positive timeout bounds every HTTP request.
func NewS3Store(ctx context.Context, cfg config.Storage, timeout time.Duration) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, services.NewError(services.CodeConfigInvalid, "storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Region),
	}
	if timeout > 0 {
		loadOpts = append(loadOpts, awscfg.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(timeout)))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	store := &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucket:     cfg.Bucket,
		endpoint:   cfg.Endpoint,
		publicBase: cfg.PublicBaseURL,
		pathStyle:  cfg.UsePathStyle,
	}
	if cfg.MakeBucket {
		if err := store.ensureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return storeError("create bucket", s.bucket, err)
	}
	return nil
}

// Put uploads r under key using the multipart-aware uploader.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
		ACL:    types.ObjectCannedACLPrivate,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", storeError("put", key, err)
	}
	return s.URL(key), nil
}

// Get opens the object body. The caller closes it.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, storeError("get", key, fmt.Errorf("%w: %w", services.ErrNotFound, err))
		}
		return nil, storeError("get", key, err)
	}
	return out.Body, nil
}

// DeletePrefix lists and deletes every object under prefix page by page.
func (s *S3Store) DeletePrefix(ctx context.Context, prefix string) error {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return fmt.Errorf("prefix is required")
	}

	listInput := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(trimmed),
	}
	for {
		output, err := s.client.ListObjectsV2(ctx, listInput)
		if err != nil {
			return storeError("list", trimmed, err)
		}

		if len(output.Contents) > 0 {
			identifiers := make([]types.ObjectIdentifier, 0, len(output.Contents))
			for _, obj := range output.Contents {
				identifiers = append(identifiers, types.ObjectIdentifier{Key: obj.Key})
			}
			_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{
					Objects: identifiers,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return storeError("delete", trimmed, err)
			}
		}

		if !aws.ToBool(output.IsTruncated) || output.NextContinuationToken == nil {
			break
		}
		listInput.ContinuationToken = output.NextContinuationToken
	}
	return nil
}

// URL prefers the configured public base; otherwise it addresses the object
// through the endpoint (path style) or as an s3:// URI.
func (s *S3Store) URL(key string) string {
	switch {
	case s.publicBase != "":
		return joinURL(s.publicBase, key)
	case s.endpoint != "":
		return joinURL(joinURL(s.endpoint, s.bucket), key)
	default:
		return fmt.Sprintf("s3://%s/%s", s.bucket, strings.TrimLeft(key, "/"))
	}
}

// Describe returns the endpoint and bucket.
func (s *S3Store) Describe() (string, string) {
	return s.endpoint, s.bucket
}

var _ Store = (*S3Store)(nil)
