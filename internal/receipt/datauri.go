package receipt

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const dataURIPrefix = "data:"

// IsDataURI reports whether ref is an inline data URI.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, dataURIPrefix)
}

// ParseDataURI decodes a base64 data URI ("data:image/png;base64,....").
func ParseDataURI(s string) (Upload, error) {
	if !IsDataURI(s) {
		return Upload{}, fmt.Errorf("%w: not a data URI", ErrInvalidPayload)
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, dataURIPrefix), ",")
	if !ok {
		return Upload{}, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	contentType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return Upload{}, fmt.Errorf("%w: data URI must be base64 encoded", ErrInvalidPayload)
	}

	// Reject before decoding anything that cannot fit in MaxSize.
	if base64.StdEncoding.DecodedLen(len(payload)) > base64.StdEncoding.DecodedLen(base64.StdEncoding.EncodedLen(MaxSize)) {
		return Upload{}, ErrPayloadTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return Upload{ContentType: contentType, Data: data}, nil
}

// EncodeDataURI renders data as a base64 data URI.
func EncodeDataURI(contentType string, data []byte) string {
	return dataURIPrefix + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
