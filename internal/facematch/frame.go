package facematch

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrInvalidFrame reports a scan payload that is not a decodable image.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a captured image that has been checked to decode.
type Frame struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// DecodeDataURL parses a "data:image/...;base64," URL (or bare base64) and
// verifies the payload is an image the server can read.
func DecodeDataURL(s string) (Frame, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Frame{}, fmt.Errorf("%w: empty image", ErrInvalidFrame)
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return Frame{}, fmt.Errorf("%w: data url has no payload", ErrInvalidFrame)
		}
		s = s[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return DecodeImage(raw)
}

// DecodeImage verifies raw bytes decode as a supported bitmap.
func DecodeImage(raw []byte) (Frame, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return Frame{}, fmt.Errorf("%w: empty bitmap", ErrInvalidFrame)
	}
	return Frame{Data: raw, Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// Base64 returns the frame payload in standard base64.
func (f Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}
