package preprocess

import (
	"fmt"
	"image"

	"github.com/Brownie44l1/node-detect-api/internal/model"
)

// ToTensor builds a [1, inChannels, H, W] tensor with intensities in [0, 1],
// repeating the gray plane once per channel.
func ToTensor(buf *image.Gray, inChannels int) (model.Tensor, error) {
	if inChannels <= 0 {
		return model.Tensor{}, fmt.Errorf("%w: model expects at least one input channel, got %d", ErrChannel, inChannels)
	}

	b := buf.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h

	data := make([]float32, plane*inChannels)
	for y := 0; y < h; y++ {
		row := buf.Pix[buf.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			data[y*w+x] = float32(row[x]) / 255.0
		}
	}
	for c := 1; c < inChannels; c++ {
		copy(data[c*plane:(c+1)*plane], data[:plane])
	}

	return model.Tensor{
		Shape: []int64{1, int64(inChannels), int64(h), int64(w)},
		Data:  data,
	}, nil
}
