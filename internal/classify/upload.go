package classify

import (
	"errors"
	"fmt"
)

// DefaultMaxUploadBytes is the largest scan the console forwards.
const DefaultMaxUploadBytes int64 = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/jpg":  true,
}

var (
	ErrUnsupportedImage = errors.New("please upload a valid image file (JPG, PNG)")
	ErrImageTooLarge    = errors.New("file is too large")
)

// CheckUpload validates a scan before it is sent to the backend.
func CheckUpload(contentType string, size, limit int64) error {
	if !allowedImageTypes[contentType] {
		return fmt.Errorf("%w: got %q", ErrUnsupportedImage, contentType)
	}
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, size, limit)
	}
	return nil
}
