package preprocess

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func createGray(width, height int, fill func(x, y int) uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeImage(t *testing.T) {
	src := createGray(12, 7, func(x, y int) uint8 { return uint8(x * 10) })
	encoded := encodePNG(t, src)

	for _, in := range []string{encoded, dataURLPrefix + encoded} {
		img, err := DecodeImage(in)
		if err != nil {
			t.Fatalf("DecodeImage failed: %v", err)
		}
		if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 7 {
			t.Errorf("dimensions: got %v, want 12x7", img.Bounds())
		}
	}
}

func TestDecodeImage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad base64", "not*base64!"},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello world"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeImage(tt.in); !errors.Is(err, ErrDecode) {
				t.Errorf("got %v, want ErrDecode", err)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(x + y)
			src.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}

	got, err := Crop(src, 5, 10, 8, 4)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if got.Bounds() != image.Rect(0, 0, 8, 4) {
		t.Fatalf("bounds: got %v, want 8x4 at origin", got.Bounds())
	}
	if v := got.GrayAt(0, 0).Y; v != 15 {
		t.Errorf("top-left: got %d, want 15", v)
	}
	if v := got.GrayAt(7, 3).Y; v != 5+7+10+3 {
		t.Errorf("bottom-right: got %d, want %d", v, 5+7+10+3)
	}
}

func TestCrop_LumaWeights(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 1))
	src.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	src.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 255})
	src.SetNRGBA(2, 0, color.NRGBA{0, 0, 255, 255})
	src.SetNRGBA(3, 0, color.NRGBA{255, 255, 255, 255})

	got, err := Crop(src, 0, 0, 4, 1)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	tests := []struct {
		name string
		x    int
		want uint8
	}{
		{"red", 0, 54},
		{"green", 1, 182},
		{"blue", 2, 18},
		{"white", 3, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v := got.GrayAt(tt.x, 0).Y; v != tt.want {
				t.Errorf("got %d, want %d", v, tt.want)
			}
		})
	}
}

func TestCrop_OffsetBounds(t *testing.T) {
	src := image.NewGray(image.Rect(10, 20, 30, 40))
	src.SetGray(12, 23, color.Gray{Y: 200})

	got, err := Crop(src, 2, 3, 4, 4)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if v := got.GrayAt(0, 0).Y; v != 200 {
		t.Errorf("top-left: got %d, want 200", v)
	}
}

func TestCrop_Clamped(t *testing.T) {
	src := createGray(20, 10, func(x, y int) uint8 { return 128 })

	got, err := Crop(src, 15, 5, 100, 100)
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if got.Bounds().Dx() != 5 || got.Bounds().Dy() != 5 {
		t.Errorf("clamped size: got %v, want 5x5", got.Bounds())
	}
}

func TestCrop_Invalid(t *testing.T) {
	src := createGray(20, 10, func(x, y int) uint8 { return 0 })

	tests := []struct {
		name       string
		x, y, w, h int
	}{
		{"zero width", 0, 0, 0, 5},
		{"zero height", 0, 0, 5, 0},
		{"negative width", 0, 0, -3, 5},
		{"negative origin", -1, 0, 5, 5},
		{"right of image", 20, 0, 5, 5},
		{"below image", 0, 10, 5, 5},
		{"far outside", 500, 500, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(src, tt.x, tt.y, tt.w, tt.h); !errors.Is(err, ErrInvalidCrop) {
				t.Errorf("got %v, want ErrInvalidCrop", err)
			}
		})
	}
}

func TestResizeKeepAspect_NoOp(t *testing.T) {
	src := createGray(30, 20, func(x, y int) uint8 { return uint8(x) })

	tests := []struct {
		name    string
		maxSide int
	}{
		{"disabled", 0},
		{"equal", 30},
		{"larger", 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sx, sy := ResizeKeepAspect(src, tt.maxSide, nil)
			if got != src {
				t.Error("expected the input buffer back")
			}
			if sx != 1.0 || sy != 1.0 {
				t.Errorf("scale: got %v,%v want 1,1", sx, sy)
			}
		})
	}
}

func TestResizeKeepAspect(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape", 200, 100, 50, 50, 25},
		{"portrait", 100, 300, 60, 20, 60},
		{"rounding", 101, 33, 50, 50, 16},
		{"thin stays 1px", 1000, 1, 10, 10, 1},
	}

	for _, filter := range []string{"", "lanczos", "bicubic", "mitchell", "lanczos3"} {
		for _, tt := range tests {
			t.Run(filter+"/"+tt.name, func(t *testing.T) {
				src := createGray(tt.w, tt.h, func(x, y int) uint8 { return uint8((x + y) % 256) })
				got, sx, sy := ResizeKeepAspect(src, tt.max, NewResampler(filter))

				if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
					t.Fatalf("size: got %v, want %dx%d", got.Bounds(), tt.wantW, tt.wantH)
				}
				if want := float64(tt.wantW) / float64(tt.w); sx != want {
					t.Errorf("scaleX: got %v, want %v", sx, want)
				}
				if want := float64(tt.wantH) / float64(tt.h); sy != want {
					t.Errorf("scaleY: got %v, want %v", sy, want)
				}
			})
		}
	}
}

func TestPadToMultiple(t *testing.T) {
	tests := []struct {
		name               string
		w, h, multiple     int
		wantW, wantH       int
		wantPadW, wantPadH int
	}{
		{"disabled", 13, 7, 0, 13, 7, 0, 0},
		{"aligned", 32, 64, 32, 32, 64, 0, 0},
		{"both", 13, 7, 8, 16, 8, 3, 1},
		{"width only", 30, 32, 32, 32, 32, 2, 0},
		{"multiple one", 5, 3, 1, 5, 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := createGray(tt.w, tt.h, func(x, y int) uint8 { return 200 })
			got, padW, padH := PadToMultiple(src, tt.multiple)

			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Fatalf("size: got %v, want %dx%d", got.Bounds(), tt.wantW, tt.wantH)
			}
			if padW != tt.wantPadW || padH != tt.wantPadH {
				t.Errorf("padding: got %d,%d want %d,%d", padW, padH, tt.wantPadW, tt.wantPadH)
			}
			if tt.multiple > 0 && (got.Bounds().Dx()%tt.multiple != 0 || got.Bounds().Dy()%tt.multiple != 0) {
				t.Errorf("%v is not a multiple of %d", got.Bounds(), tt.multiple)
			}
			if padW == 0 && padH == 0 && got != src {
				t.Error("aligned input should be returned unchanged")
			}
		})
	}
}

func TestPadToMultiple_ContentAtOrigin(t *testing.T) {
	src := createGray(5, 3, func(x, y int) uint8 { return 200 })
	got, _, _ := PadToMultiple(src, 4)

	if v := got.GrayAt(4, 2).Y; v != 200 {
		t.Errorf("content pixel: got %d, want 200", v)
	}
	if v := got.GrayAt(7, 0).Y; v != 0 {
		t.Errorf("right padding: got %d, want 0", v)
	}
	if v := got.GrayAt(0, 3).Y; v != 0 {
		t.Errorf("bottom padding: got %d, want 0", v)
	}
}

func TestToTensor(t *testing.T) {
	src := createGray(3, 2, func(x, y int) uint8 { return uint8(y*3+x) * 51 })

	tensor, err := ToTensor(src, 3)
	if err != nil {
		t.Fatalf("ToTensor failed: %v", err)
	}

	wantShape := []int64{1, 3, 2, 3}
	for i, d := range wantShape {
		if tensor.Shape[i] != d {
			t.Fatalf("shape: got %v, want %v", tensor.Shape, wantShape)
		}
	}
	if len(tensor.Data) != 18 {
		t.Fatalf("data length: got %d, want 18", len(tensor.Data))
	}

	for c := 0; c < 3; c++ {
		for i := 0; i < 6; i++ {
			want := float32(uint8(i)*51) / 255.0
			if got := tensor.Data[c*6+i]; got != want {
				t.Errorf("channel %d pixel %d: got %v, want %v", c, i, got, want)
			}
		}
	}
	if tensor.Data[5] != 1.0 {
		t.Errorf("white pixel should normalize to 1, got %v", tensor.Data[5])
	}
}

func TestToTensor_InvalidChannels(t *testing.T) {
	src := createGray(2, 2, func(x, y int) uint8 { return 0 })
	for _, c := range []int{0, -1} {
		if _, err := ToTensor(src, c); !errors.Is(err, ErrChannel) {
			t.Errorf("channels=%d: got %v, want ErrChannel", c, err)
		}
	}
}
