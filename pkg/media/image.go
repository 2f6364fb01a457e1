package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const maxImageSize = 15 * 1024 * 1024 // 15MB raw (base64 adds ~33% → ~20MB encoded)

var (
	ErrEmptyImage    = errors.New("image file is empty")
	ErrImageTooLarge = errors.New("image file too large")
	ErrNotAnImage    = errors.New("file is not a supported image")
)

// imageExts maps file extensions to MIME types for supported image formats.
var imageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IsSupportedImage reports whether path has a recognized image extension.
func IsSupportedImage(path string) bool {
	_, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// EncodeImage reads an image from disk in one pass and returns it as a
// base64 ContentPart. The file is closed before returning.
func EncodeImage(path string) (*ContentPart, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyImage
	}
	if info.Size() > maxImageSize {
		return nil, fmt.Errorf("%w: %s, %.1f MB", ErrImageTooLarge, filepath.Base(path), float64(info.Size())/(1024*1024))
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}

	mimeType, ok := imageExts[strings.ToLower(filepath.Ext(path))]
	if !ok {
		// No recognized extension, sniff content type from the first 512 bytes
		mimeType = http.DetectContentType(data)
		if !strings.HasPrefix(mimeType, "image/") {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotAnImage, filepath.Base(path), mimeType)
		}
	}

	return &ContentPart{
		Type:      "image",
		MediaType: mimeType,
		Data:      base64.StdEncoding.EncodeToString(data),
		FileName:  filepath.Base(path),
	}, nil
}
