package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidDataURL = errors.New("invalid data URL")

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// UploadedMedia is a pending attachment held until a generation succeeds.
type UploadedMedia struct {
	Name    string
	MIME    string
	DataURL string
	Size    int
}

func NewUploadedMedia(name, mime string, data []byte) *UploadedMedia {
	return &UploadedMedia{
		Name:    name,
		MIME:    mime,
		DataURL: EncodeDataURL(mime, data),
		Size:    len(data),
	}
}

func (m *UploadedMedia) Type() MediaType {
	if strings.HasPrefix(m.MIME, "video/") {
		return MediaVideo
	}
	return MediaImage
}

func (m *UploadedMedia) Bytes() ([]byte, error) {
	_, data, err := ParseDataURL(m.DataURL)
	return data, err
}

func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURL decodes a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mime, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if mime == "" {
		mime = "text/plain"
	}
	return mime, data, nil
}
