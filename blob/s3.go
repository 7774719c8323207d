package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/utils"
)

// S3Store reads artifacts from a single S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Store loads the default AWS credential chain for region.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	if bucket == "" {
		return nil, utils.Errorf("s3 artifact source requires a bucket")
	}
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket, region: cfg.Region}, nil
}

// Get downloads s3://bucket/key. The bucket must be the one the store was built for.
func (s *S3Store) Get(ctx context.Context, url string) ([]byte, error) {
	bucket, key, err := SplitS3URL(url)
	if err != nil {
		return nil, err
	}
	if bucket != s.bucket {
		return nil, fmt.Errorf("requested bucket %s does not match configured bucket %s", bucket, s.bucket)
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// SplitS3URL splits s3://bucket/key.
func SplitS3URL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, constants.SchemeS3)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %s needs a bucket and a key", ErrUnsupportedURL, url)
	}
	return bucket, key, nil
}
