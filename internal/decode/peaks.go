// Package decode extracts node keypoints from the model's dense logit grid and
// maps them back into image space.
package decode

import (
	"math"
	"sort"

	"github.com/Brownie44l1/node-detect-api/internal/model"
)

// Grid is a [C, H, W] slice of logits, channel-major.
type Grid struct {
	Logits   []float32
	Channels int
	Height   int
	Width    int
}

// GridFromTensor views a [1, C, H, W] output tensor as a Grid.
func GridFromTensor(t model.Tensor) Grid {
	return Grid{
		Logits:   t.Data,
		Channels: int(t.Shape[1]),
		Height:   int(t.Shape[2]),
		Width:    int(t.Shape[3]),
	}
}

func (g Grid) at(ch, y, x int) float32 {
	return g.Logits[(ch*g.Height+y)*g.Width+x]
}

// Peak is a grid-space detection.
type Peak struct {
	X       int
	Y       int
	Channel int
	Score   float32
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

// localMaxima scans every cell of the valid region. A cell whose sigmoid
// score reaches thresh is a peak unless some cell in the surrounding window,
// clipped to the valid region, has a strictly larger logit.
func localMaxima(g Grid, validW, validH, window int, thresh float32) []Peak {
	var peaks []Peak
	half := max(window, 1) / 2

	for ch := 0; ch < g.Channels; ch++ {
		for y := 0; y < validH; y++ {
			for x := 0; x < validW; x++ {
				v := g.at(ch, y, x)
				score := sigmoid(v)
				if score < thresh {
					continue
				}

				if isMax(g, ch, x, y, half, validW, validH, v) {
					peaks = append(peaks, Peak{X: x, Y: y, Channel: ch, Score: score})
				}
			}
		}
	}

	return peaks
}

func isMax(g Grid, ch, x, y, half, validW, validH int, v float32) bool {
	y0, y1 := max(y-half, 0), min(y+half, validH-1)
	x0, x1 := max(x-half, 0), min(x+half, validW-1)
	for yy := y0; yy <= y1; yy++ {
		for xx := x0; xx <= x1; xx++ {
			if g.at(ch, yy, xx) > v {
				return false
			}
		}
	}
	return true
}

func sortByScore(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].Score > peaks[j].Score
	})
}

// DecodePeaks returns the ranked peaks of g inside [0, validW) x [0, validH).
// If nothing clears cfg.Thresh and FallbackTopK is set, the best local maxima
// regardless of score are returned instead and the caps are not applied.
func DecodePeaks(g Grid, validW, validH int, cfg model.DecodeConfig) []Peak {
	validW = min(max(validW, 0), g.Width)
	validH = min(max(validH, 0), g.Height)

	peaks := localMaxima(g, validW, validH, cfg.Window, cfg.Thresh)

	if len(peaks) == 0 && cfg.FallbackTopK > 0 {
		fallback := localMaxima(g, validW, validH, cfg.Window, float32(math.Inf(-1)))
		sortByScore(fallback)
		if len(fallback) > cfg.FallbackTopK {
			fallback = fallback[:cfg.FallbackTopK]
		}
		return fallback
	}

	if cfg.PerChannelTopK > 0 {
		byChannel := make([][]Peak, g.Channels)
		for _, p := range peaks {
			byChannel[p.Channel] = append(byChannel[p.Channel], p)
		}
		peaks = peaks[:0]
		for _, group := range byChannel {
			sortByScore(group)
			if len(group) > cfg.PerChannelTopK {
				group = group[:cfg.PerChannelTopK]
			}
			peaks = append(peaks, group...)
		}
	}

	sortByScore(peaks)
	if cfg.MaxPeaks > 0 && len(peaks) > cfg.MaxPeaks {
		peaks = peaks[:cfg.MaxPeaks]
	}

	return peaks
}
