package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, uniform(8, 6, color.RGBA{10, 200, 30, 255})))

	img, format, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestDecode_Invalid(t *testing.T) {
	_, _, err := Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = Decode(nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestDiseaseTensor_ScalesToUnitRange(t *testing.T) {
	img := uniform(40, 30, color.RGBA{255, 51, 0, 255})

	tensor := DiseaseTensor(img, 224, NHWC)

	assert.Equal(t, []int64{1, 224, 224, 3}, tensor.Shape)
	require.Len(t, tensor.Data, 224*224*3)
	assert.InDelta(t, 1.0, tensor.Data[0], 1.0/255)
	assert.InDelta(t, 0.2, tensor.Data[1], 1.0/255)
	assert.InDelta(t, 0.0, tensor.Data[2], 1.0/255)

	last := len(tensor.Data) - 3
	assert.InDelta(t, 1.0, tensor.Data[last], 1.0/255)
}

func TestDiseaseTensor_NCHW(t *testing.T) {
	img := uniform(16, 16, color.RGBA{0, 255, 0, 255})

	tensor := DiseaseTensor(img, 4, NCHW)

	assert.Equal(t, []int64{1, 3, 4, 4}, tensor.Shape)
	assert.Equal(t, NCHW, tensor.Layout)
	for i := 0; i < 16; i++ {
		assert.InDelta(t, 0.0, tensor.Data[i], 1.0/255)
		assert.InDelta(t, 1.0, tensor.Data[16+i], 1.0/255)
		assert.InDelta(t, 0.0, tensor.Data[32+i], 1.0/255)
	}
}

func TestDiseaseTensor_DefaultSize(t *testing.T) {
	tensor := DiseaseTensor(uniform(2, 2, color.RGBA{1, 2, 3, 255}), 0, "")
	assert.Equal(t, []int64{1, DefaultSize, DefaultSize, 3}, tensor.Shape)
	assert.Equal(t, NHWC, tensor.Layout)
}

func TestGatekeeperTensor_CaffeMeans(t *testing.T) {
	img := uniform(10, 10, color.RGBA{255, 0, 0, 255})

	tensor := GatekeeperTensor(img, 224, NHWC)

	require.Len(t, tensor.Data, 224*224*3)
	assert.InDelta(t, -103.939, tensor.Data[0], 1.0)
	assert.InDelta(t, -116.779, tensor.Data[1], 1.0)
	assert.InDelta(t, 131.32, tensor.Data[2], 1.0)
}

func TestBrightness(t *testing.T) {
	tests := []struct {
		name string
		c    color.RGBA
		want float64
	}{
		{"black", color.RGBA{0, 0, 0, 255}, 0},
		{"white", color.RGBA{255, 255, 255, 255}, 255},
		{"dark gray", color.RGBA{30, 30, 30, 255}, 30},
		{"pure green", color.RGBA{0, 255, 0, 255}, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Brightness(uniform(5, 5, tt.c)), 0.5)
		})
	}
}

func TestBrightness_NonZeroOrigin(t *testing.T) {
	img := uniform(10, 10, color.RGBA{100, 100, 100, 255})
	sub := img.SubImage(image.Rect(2, 2, 6, 6))
	assert.InDelta(t, 100.0, Brightness(sub), 0.01)
}

// cutout is a leaf-colored image whose first seven columns are fully transparent.
func cutout() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			a := uint8(255)
			if x < 7 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: 120, G: 160, B: 80, A: a})
		}
	}
	return img
}

func TestBrightness_IgnoresAlpha(t *testing.T) {
	assert.InDelta(t, 139.0, Brightness(cutout()), 0.5)
}

func TestDiseaseTensor_IgnoresAlpha(t *testing.T) {
	tensor := DiseaseTensor(cutout(), 4, NHWC)

	require.Len(t, tensor.Data, 4*4*3)
	for i := 0; i < len(tensor.Data); i += 3 {
		assert.InDelta(t, 120.0/255, tensor.Data[i], 2.0/255)
		assert.InDelta(t, 160.0/255, tensor.Data[i+1], 2.0/255)
		assert.InDelta(t, 80.0/255, tensor.Data[i+2], 2.0/255)
	}
}

func TestDecode_RejectsOversizedCanvas(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, uniform(8, 6, color.RGBA{10, 200, 30, 255})))

	limit := MaxPixels
	MaxPixels = 47
	t.Cleanup(func() { MaxPixels = limit })

	_, _, err := Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrDecode)

	MaxPixels = 48
	_, _, err = Decode(buf.Bytes())
	assert.NoError(t, err)
}
