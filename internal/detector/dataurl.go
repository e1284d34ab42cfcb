package detector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotDataURL = errors.New("image is not a data URL")
	ErrNotBase64  = errors.New("image data URL is not base64 encoded")
	ErrEmptyImage = errors.New("image data URL has no payload")
	ErrNotAnImage = errors.New("image data URL does not carry an image")
)

// Frame is one captured still image
type Frame struct {
	Data     []byte
	MIMEType string
	Name     string
}

// EncodeDataURL renders a frame the way browsers do for canvas captures:
// data:<mime>;base64,<payload>. An empty MIME type is sniffed from the data.
func EncodeDataURL(f Frame) string {
	mime := f.MIMEType
	if mime == "" {
		mime = http.DetectContentType(f.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// DecodeDataURL parses and validates an image data URL
func DecodeDataURL(s string) (Frame, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return Frame{}, ErrNotDataURL
	}

	params := strings.Split(strings.TrimPrefix(header, "data:"), ";")
	mime := params[0]
	encoded := false
	for _, p := range params[1:] {
		if p == "base64" {
			encoded = true
		}
	}
	if !encoded {
		return Frame{}, ErrNotBase64
	}
	if mime != "" && !strings.HasPrefix(mime, "image/") {
		return Frame{}, ErrNotAnImage
	}
	if payload == "" {
		return Frame{}, ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrNotBase64, err)
	}

	return Frame{Data: data, MIMEType: mime}, nil
}
