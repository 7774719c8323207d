package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/awantoch/loanscore/constants"
)

// FilesystemStore reads artifacts from local paths or file:// URLs.
type FilesystemStore struct{}

func NewFilesystemStore() *FilesystemStore {
	return &FilesystemStore{}
}

// Get reads the file named by url.
func (f *FilesystemStore) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, constants.SchemeFile)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrUnsupportedURL)
	}
	if strings.Contains(path, "://") {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}
