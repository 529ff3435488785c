// Package s3blob implements gateway.BlobGateway on the S3 API. Supabase
// storage, MinIO and AWS S3 all serve it.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
	"github.com/dmitrijs2005/farmmarket/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectAPI is the part of *s3.Client the store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Options configure the S3 client.
type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	// PublicURL is the base under which objects are publicly readable,
	// e.g. https://xyz.supabase.co/storage/v1/object/public.
	PublicURL string
}

// Store implements gateway.BlobGateway.
type Store struct {
	api        ObjectAPI
	publicBase string
}

var _ gateway.BlobGateway = (*Store)(nil)

// New builds an S3 client from opts with static credentials and path-style
// addressing.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint: %w", common.ErrNotConfigured)
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	return NewWithAPI(client, opts.PublicURL), nil
}

// NewWithAPI wraps an existing ObjectAPI.
func NewWithAPI(api ObjectAPI, publicBase string) *Store {
	return &Store{api: api, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *Store) Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, size int64) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		return mapError("upload "+bucket+"/"+path, err)
	}
	return nil
}

// PublicURL does no I/O. Path segments are escaped; the separators are kept.
func (s *Store) PublicURL(bucket, path string) string {
	segs := strings.Split(path, "/")
	for i, p := range segs {
		segs[i] = url.PathEscape(p)
	}
	return s.publicBase + "/" + url.PathEscape(bucket) + "/" + strings.Join(segs, "/")
}

func (s *Store) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	ids := make([]types.ObjectIdentifier, 0, len(paths))
	for _, p := range paths {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(p)})
	}

	out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return mapError("remove from "+bucket, err)
	}
	if out != nil && len(out.Errors) > 0 {
		e := out.Errors[0]
		return fmt.Errorf("remove %s/%s: %w", bucket, aws.ToString(e.Key), &gateway.RemoteError{
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}
	return nil
}

// mapError converts SDK errors: service answers become *gateway.RemoteError,
// everything else is a transport failure.
func mapError(op string, err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return gateway.Transport(op, err)
	}

	re := &gateway.RemoteError{Code: apiErr.ErrorCode(), Message: apiErr.ErrorMessage()}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		re.Status = respErr.HTTPStatusCode()
	}
	if re.Message == "" {
		re.Message = re.Code
	}
	return fmt.Errorf("%s: %w", op, re)
}
