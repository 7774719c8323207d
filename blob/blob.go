// Package blob fetches artifact bytes from the filesystem or S3.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/awantoch/loanscore/constants"
)

// ErrUnsupportedURL is returned for artifact URLs no driver can read.
var ErrUnsupportedURL = errors.New("unsupported artifact URL")

// Store is a read-only artifact source.
type Store interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// NewStore picks a driver from the URL scheme: s3:// uses S3 in region,
// file:// and bare paths use the local filesystem.
func NewStore(ctx context.Context, url, region string) (Store, error) {
	switch {
	case strings.HasPrefix(url, constants.SchemeS3):
		bucket, _, err := SplitS3URL(url)
		if err != nil {
			return nil, err
		}
		return NewS3Store(ctx, bucket, region)
	case strings.Contains(url, "://") && !strings.HasPrefix(url, constants.SchemeFile):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	default:
		return NewFilesystemStore(), nil
	}
}
