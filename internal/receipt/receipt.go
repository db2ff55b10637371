// Package receipt validates proof-of-payment images and keeps them in a blob store.
package receipt

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the largest receipt accepted, in bytes.
const MaxSize = 5 << 20

var (
	ErrUnsupportedMediaType = errors.New("unsupported receipt type")
	ErrPayloadTooLarge      = errors.New("receipt exceeds 5 MB")
	ErrInvalidPayload       = errors.New("invalid receipt payload")
)

var (
	allowedExtensions = []string{"jpg", "jpeg", "png", "gif"}
	allowedTypes      = []string{"image/jpeg", "image/png", "image/gif"}
)

// Upload is a receipt as received from a client. Filename and ContentType are
// whatever the client declared and may be empty.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Validate checks size, declared extension and type, and the sniffed content.
// It returns the detected content type.
func Validate(u Upload) (string, error) {
	if len(u.Data) > MaxSize {
		return "", ErrPayloadTooLarge
	}
	if len(u.Data) == 0 {
		return "", fmt.Errorf("%w: empty file", ErrInvalidPayload)
	}

	if u.Filename != "" {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Filename), "."))
		if !slices.Contains(allowedExtensions, ext) {
			return "", fmt.Errorf("%w: extension %q", ErrUnsupportedMediaType, ext)
		}
	}

	declared := declaredType(u.ContentType)
	if declared != "" && !slices.Contains(allowedTypes, declared) {
		return "", fmt.Errorf("%w: declared %s", ErrUnsupportedMediaType, declared)
	}

	detected := mimetype.Detect(u.Data)
	sniffed := detected.String()
	if !slices.Contains(allowedTypes, sniffed) {
		return "", fmt.Errorf("%w: content is %s", ErrUnsupportedMediaType, sniffed)
	}
	if declared != "" && declared != sniffed {
		return "", fmt.Errorf("%w: declared %s but content is %s", ErrUnsupportedMediaType, declared, sniffed)
	}
	return sniffed, nil
}

// declaredType normalizes a client content type. The generic octet-stream
// default counts as no declaration.
func declaredType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	switch mt {
	case "application/octet-stream":
		return ""
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	}
	return mt
}

// FromMultipart reads an uploaded file part. At most MaxSize+1 bytes are read
// so an oversized part is detected without buffering all of it.
func FromMultipart(fh *multipart.FileHeader) (Upload, error) {
	if fh.Size > MaxSize {
		return Upload{}, ErrPayloadTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxSize {
		return Upload{}, ErrPayloadTooLarge
	}
	return Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
