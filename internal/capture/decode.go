package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"net/url"
	"os"
	"strings"

	// registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedURL is returned for preview URLs that are neither data: nor
// file: URLs.
var ErrUnsupportedURL = errors.New("unsupported preview url")

// Decode loads the image behind a preview URL.
func Decode(u string) (image.Image, error) {
	data, err := readURL(u)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return img, nil
}

// DecodeRGBA is Decode followed by ToRGBA.
func DecodeRGBA(u string) (*image.RGBA, error) {
	img, err := Decode(u)
	if err != nil {
		return nil, err
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as an *image.RGBA with its origin at (0,0). An RGBA
// image already at the origin is returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func readURL(u string) ([]byte, error) {
	switch {
	case strings.HasPrefix(u, "data:"):
		return readDataURL(u)
	case strings.HasPrefix(u, "file:"):
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("parse file url: %w", err)
		}
		data, err := os.ReadFile(parsed.Path)
		if err != nil {
			return nil, fmt.Errorf("read preview file: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: %.32q", ErrUnsupportedURL, u)
}

func readDataURL(u string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(u, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if !strings.HasSuffix(header, ";base64") {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed data url: %w", err)
		}
		return []byte(s), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}
