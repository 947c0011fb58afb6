// Package detect finds horizontal line tips in a diagram rectangle without the
// model: luminance, an Otsu threshold, right-to-left dark runs per row, then
// one tip per cluster of nearby rows.
package detect

import (
	"image"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/preprocess"
)

const (
	// MinRun is the shortest dark run, in pixels, that counts as a line.
	MinRun = 6
	// RowGap is the row distance below which raw tips join one cluster.
	RowGap = 5

	defaultThreshold = 128
)

type point struct {
	x, y int
}

// Tips returns one tip per horizontal line found in the rectangle (x, y, w, h)
// of img, in full-image coordinates, ordered top to bottom.
func Tips(img image.Image, x, y, w, h int) ([]model.PredictedNode, error) {
	rect, err := preprocess.ClampRect(img.Bounds(), x, y, w, h)
	if err != nil {
		return nil, err
	}

	gray := imaging.Grayscale(imaging.Crop(img, rect))
	gw, gh := gray.Bounds().Dx(), gray.Bounds().Dy()
	lum := make([]uint8, gw*gh)
	for i := range lum {
		lum[i] = gray.Pix[i*4]
	}

	var hist [256]int
	for _, v := range lum {
		hist[v]++
	}
	threshold := otsuThreshold(hist, len(lum))

	raw := darkRunTips(lum, gw, gh, threshold)
	tips := clusterRows(raw)

	ox, oy := rect.Min.X-img.Bounds().Min.X, rect.Min.Y-img.Bounds().Min.Y
	for i := range tips {
		tips[i].X += float64(ox)
		tips[i].Y += float64(oy)
	}

	log.WithFields(log.Fields{
		"threshold": threshold,
		"raw":       len(raw),
		"tips":      len(tips),
	}).Debug("Tip detection complete")

	return tips, nil
}

// otsuThreshold returns the level t maximizing the between-class variance of
// {v <= t} and {v > t}. A single-level histogram yields 128.
func otsuThreshold(hist [256]int, n int) int {
	var sum float64
	for i, c := range hist {
		sum += float64(i * c)
	}

	threshold := defaultThreshold
	var sumB, maxVar float64
	wB := 0
	for t, c := range hist {
		wB += c
		if wB == 0 {
			continue
		}
		wF := n - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * c)

		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > maxVar {
			maxVar = between
			threshold = t
		}
	}
	return threshold
}

// darkRunTips scans every row right to left and records the rightmost pixel
// of each run of at least MinRun pixels at or below threshold.
func darkRunTips(lum []uint8, w, h, threshold int) []point {
	var tips []point
	for y := 0; y < h; y++ {
		row := lum[y*w : (y+1)*w]
		run := 0
		for x := w - 1; x >= 0; x-- {
			if int(row[x]) <= threshold {
				run++
				continue
			}
			if run >= MinRun {
				tips = append(tips, point{x: x + run, y: y})
			}
			run = 0
		}
		if run >= MinRun {
			tips = append(tips, point{x: run - 1, y: y})
		}
	}
	return tips
}

// clusterRows merges raw tips whose rows are less than RowGap apart from the
// previous one. Each cluster becomes a tip at its rightmost x and mean y.
// raw must be ordered by row.
func clusterRows(raw []point) []model.PredictedNode {
	tips := []model.PredictedNode{}
	var group []point

	flush := func() {
		if len(group) == 0 {
			return
		}
		maxX, sumY := group[0].x, 0
		for _, p := range group {
			maxX = max(maxX, p.x)
			sumY += p.y
		}
		tips = append(tips, model.PredictedNode{
			X:        float64(maxX),
			Y:        float64(sumY) / float64(len(group)),
			NodeType: model.NodeTip,
			Score:    1,
		})
		group = group[:0]
	}

	for _, p := range raw {
		if len(group) > 0 && p.y-group[len(group)-1].y >= RowGap {
			flush()
		}
		group = append(group, p)
	}
	flush()

	return tips
}
