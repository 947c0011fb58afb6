package preprocess

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/Brownie44l1/node-detect-api/internal/model"
)

// Resampler scales a grayscale buffer to exact dimensions.
type Resampler interface {
	Resize(src *image.Gray, w, h int) *image.Gray
}

type imagingResampler struct {
	filter imaging.ResampleFilter
}

func (r imagingResampler) Resize(src *image.Gray, w, h int) *image.Gray {
	return Luma(imaging.Resize(src, w, h, r.filter))
}

type nfntResampler struct {
	interp resize.InterpolationFunction
}

func (r nfntResampler) Resize(src *image.Gray, w, h int) *image.Gray {
	out := resize.Resize(uint(w), uint(h), src, r.interp)
	if g, ok := out.(*image.Gray); ok {
		return g
	}
	return Luma(imaging.Clone(out))
}

// NewResampler maps a ModelConfig.ResizeFilter name to a Resampler. The empty
// name selects Catmull-Rom.
func NewResampler(name string) Resampler {
	switch name {
	case model.FilterLanczos:
		return imagingResampler{filter: imaging.Lanczos}
	case model.FilterBicubic:
		return nfntResampler{interp: resize.Bicubic}
	case model.FilterMitchell:
		return nfntResampler{interp: resize.MitchellNetravali}
	case model.FilterLanczos3:
		return nfntResampler{interp: resize.Lanczos3}
	default:
		return imagingResampler{filter: imaging.CatmullRom}
	}
}

// ResizeKeepAspect shrinks buf so its longer side equals maxSide. It returns
// the real per-axis ratios (new/old), which differ from the nominal scale by
// rounding and must be used for the inverse mapping.
func ResizeKeepAspect(buf *image.Gray, maxSide int, r Resampler) (*image.Gray, float64, float64) {
	w, h := buf.Bounds().Dx(), buf.Bounds().Dy()
	longer := max(w, h)
	if maxSide <= 0 || longer <= maxSide {
		return buf, 1.0, 1.0
	}

	scale := float64(maxSide) / float64(longer)
	newW := max(int(math.Round(float64(w)*scale)), 1)
	newH := max(int(math.Round(float64(h)*scale)), 1)

	if r == nil {
		r = NewResampler("")
	}
	resized := r.Resize(buf, newW, newH)
	return resized, float64(newW) / float64(w), float64(newH) / float64(h)
}
