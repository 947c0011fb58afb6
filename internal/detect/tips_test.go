package detect

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/Brownie44l1/node-detect-api/internal/model"
	"github.com/Brownie44l1/node-detect-api/internal/preprocess"
)

type hline struct {
	x0, x1, y int
}

func createDiagram(width, height int, ink color.NRGBA, lines ...hline) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, l := range lines {
		for x := l.x0; x <= l.x1; x++ {
			img.SetNRGBA(x, l.y, ink)
		}
	}
	return img
}

var black = color.NRGBA{0, 0, 0, 255}

func TestTips(t *testing.T) {
	tests := []struct {
		name  string
		ink   color.NRGBA
		lines []hline
		want  []model.PredictedNode
	}{
		{
			name:  "single line",
			ink:   black,
			lines: []hline{{10, 39, 10}},
			want:  []model.PredictedNode{{X: 39, Y: 10}},
		},
		{
			name:  "shorter than min run",
			ink:   black,
			lines: []hline{{10, 14, 10}},
			want:  nil,
		},
		{
			name:  "exactly min run",
			ink:   black,
			lines: []hline{{10, 15, 10}},
			want:  []model.PredictedNode{{X: 15, Y: 10}},
		},
		{
			name:  "thick line is one tip",
			ink:   black,
			lines: []hline{{10, 39, 10}, {10, 39, 11}, {10, 39, 12}},
			want:  []model.PredictedNode{{X: 39, Y: 11}},
		},
		{
			name:  "separate lines",
			ink:   black,
			lines: []hline{{10, 39, 10}, {5, 29, 30}},
			want:  []model.PredictedNode{{X: 39, Y: 10}, {X: 29, Y: 30}},
		},
		{
			name:  "close rows merge to rightmost",
			ink:   black,
			lines: []hline{{10, 39, 10}, {10, 49, 13}},
			want:  []model.PredictedNode{{X: 49, Y: 11.5}},
		},
		{
			name:  "rows at the gap stay apart",
			ink:   black,
			lines: []hline{{10, 39, 10}, {10, 39, 15}},
			want:  []model.PredictedNode{{X: 39, Y: 10}, {X: 39, Y: 15}},
		},
		{
			name:  "run reaching left edge",
			ink:   black,
			lines: []hline{{0, 19, 5}},
			want:  []model.PredictedNode{{X: 19, Y: 5}},
		},
		{
			name:  "coloured ink",
			ink:   color.NRGBA{255, 0, 0, 255},
			lines: []hline{{20, 59, 20}},
			want:  []model.PredictedNode{{X: 59, Y: 20}},
		},
		{
			name: "blank",
			ink:  black,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := createDiagram(64, 40, tt.ink, tt.lines...)
			got, err := Tips(img, 0, 0, 64, 40)
			if err != nil {
				t.Fatalf("Tips failed: %v", err)
			}
			if got == nil {
				t.Fatal("Tips returned nil, want an empty slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i, w := range tt.want {
				g := got[i]
				if g.X != w.X || g.Y != w.Y {
					t.Errorf("tip %d: got (%v,%v), want (%v,%v)", i, g.X, g.Y, w.X, w.Y)
				}
				if g.NodeType != model.NodeTip || g.Score != 1 {
					t.Errorf("tip %d: got type %q score %v", i, g.NodeType, g.Score)
				}
			}
		})
	}
}

func TestTips_RectOffset(t *testing.T) {
	img := createDiagram(64, 40, black, hline{10, 39, 10})

	got, err := Tips(img, 8, 4, 40, 30)
	if err != nil {
		t.Fatalf("Tips failed: %v", err)
	}
	if len(got) != 1 || got[0].X != 39 || got[0].Y != 10 {
		t.Errorf("got %+v, want one tip at (39,10) in image space", got)
	}
}

func TestTips_InvalidRect(t *testing.T) {
	img := createDiagram(16, 16, black)
	for _, r := range [][4]int{{0, 0, 0, 5}, {-1, 0, 5, 5}, {16, 0, 4, 4}} {
		if _, err := Tips(img, r[0], r[1], r[2], r[3]); !errors.Is(err, preprocess.ErrInvalidCrop) {
			t.Errorf("rect %v: got %v, want ErrInvalidCrop", r, err)
		}
	}
}

func TestOtsuThreshold(t *testing.T) {
	tests := []struct {
		name   string
		levels map[int]int
		want   int
	}{
		{"two levels", map[int]int{40: 100, 220: 300}, 40},
		{"black on white", map[int]int{0: 30, 255: 2530}, 0},
		{"single level", map[int]int{200: 500}, defaultThreshold},
		{"empty", map[int]int{}, defaultThreshold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hist [256]int
			n := 0
			for v, c := range tt.levels {
				hist[v] = c
				n += c
			}
			if got := otsuThreshold(hist, n); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDarkRunTips_MultipleRunsInRow(t *testing.T) {
	// two dark runs in one row, separated by a light gap
	row := []uint8{
		0, 0, 0, 0, 0, 0, 0, 255, 255, 0, 0, 0, 0, 0, 0, 255,
	}
	got := darkRunTips(row, len(row), 1, 100)
	want := []point{{x: 14, y: 0}, {x: 6, y: 0}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("run %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
