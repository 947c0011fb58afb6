package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// PadToMultiple grows buf on the right and bottom with black pixels until both
// sides are multiples of multiple. Content stays anchored at the origin, so
// padding adds no coordinate offset.
func PadToMultiple(buf *image.Gray, multiple int) (*image.Gray, int, int) {
	if multiple <= 0 {
		return buf, 0, 0
	}

	w, h := buf.Bounds().Dx(), buf.Bounds().Dy()
	padW := (multiple - w%multiple) % multiple
	padH := (multiple - h%multiple) % multiple
	if padW == 0 && padH == 0 {
		return buf, 0, 0
	}

	canvas := imaging.New(w+padW, h+padH, color.Black)
	canvas = imaging.Paste(canvas, buf, image.Pt(0, 0))
	return Luma(canvas), padW, padH
}
