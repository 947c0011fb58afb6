package preprocess

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop cuts out the rectangle (x, y, w, h), clamped to the image bounds, and
// converts it to BT.709 luma.
func Crop(img image.Image, x, y, w, h int) (*image.Gray, error) {
	rect, err := ClampRect(img.Bounds(), x, y, w, h)
	if err != nil {
		return nil, err
	}
	return Luma(imaging.Crop(img, rect)), nil
}

// ClampRect validates (x, y, w, h), given relative to the top-left of bounds,
// and clips it to bounds. The result is in the image's own coordinates.
func ClampRect(bounds image.Rectangle, x, y, w, h int) (image.Rectangle, error) {
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: width/height must be > 0, got %dx%d", ErrInvalidCrop, w, h)
	}
	if x < 0 || y < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: origin (%d,%d) is negative", ErrInvalidCrop, x, y)
	}

	iw, ih := bounds.Dx(), bounds.Dy()
	x0 := min(x, iw)
	y0 := min(y, ih)
	w = min(w, iw-x0)
	h = min(h, ih-y0)
	if w == 0 || h == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: crop (%d,%d) is outside image bounds %dx%d", ErrInvalidCrop, x, y, iw, ih)
	}
	return image.Rect(x0, y0, x0+w, y0+h).Add(bounds.Min), nil
}

// Luma converts an NRGBA buffer to 8-bit luma with the BT.709 integer weights
// the model was trained on. Alpha is ignored.
func Luma(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srcRow := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			r, g, bl := uint32(srcRow[x*4]), uint32(srcRow[x*4+1]), uint32(srcRow[x*4+2])
			dstRow[x] = uint8((2126*r + 7152*g + 722*bl + 5000) / 10000)
		}
	}
	return dst
}
