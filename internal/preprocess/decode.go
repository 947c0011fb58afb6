// Package preprocess turns an encoded diagram image into the padded grayscale
// tensor the node model consumes, recording the scale needed to map grid
// coordinates back to the source image.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

const dataURLPrefix = "data:image/png;base64,"

var (
	ErrDecode      = errors.New("image decode error")
	ErrInvalidCrop = errors.New("invalid crop")
	ErrChannel     = errors.New("invalid channel count")
)

// DecodeImage parses a base64 PNG, with or without the data-URL prefix.
func DecodeImage(encoded string) (image.Image, error) {
	raw := strings.TrimPrefix(encoded, dataURLPrefix)

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image data: %w", ErrDecode, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse image: %w", ErrDecode, err)
	}
	return img, nil
}
