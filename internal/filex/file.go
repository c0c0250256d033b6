// Package filex has the small filesystem helpers used by the client.
package filex

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by ReadImage for files above the limit.
var ErrTooLarge = errors.New("file too large")

// ErrNotImage is returned by ReadImage when the content is not an image.
var ErrNotImage = errors.New("not an image")

// EnsureParentDir creates the directory that will hold path, if any.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// ReadImage reads at most limit bytes from path and sniffs its content type.
func ReadImage(path string, limit int64) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%s: %w", path, ErrTooLarge)
	}

	ct := http.DetectContentType(data)
	if len(ct) < 6 || ct[:6] != "image/" {
		return nil, "", fmt.Errorf("%s (%s): %w", path, ct, ErrNotImage)
	}
	return data, ct, nil
}
