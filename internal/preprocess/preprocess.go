// Package preprocess turns uploaded image bytes into the fixed-size float32
// tensors the classifiers consume.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// ErrDecode is returned when the bytes cannot be interpreted as an image.
var ErrDecode = errors.New("image decode failed")

// DefaultSize is the spatial size every bundled classifier expects.
const DefaultSize = 224

// MaxPixels caps the declared canvas size accepted by Decode.
var MaxPixels = 40_000_000

// Layout is the memory order of a batch-1 tensor.
type Layout string

const (
	NHWC Layout = "nhwc" // 1 x H x W x C, the Keras export default
	NCHW Layout = "nchw" // 1 x C x H x W
)

// ImageNet channel means in BGR order, subtracted by the ResNet50 "caffe" input contract.
var imagenetMeanBGR = [3]float32{103.939, 116.779, 123.68}

// Tensor is a batch-1 float32 image tensor.
type Tensor struct {
	Data   []float32
	Shape  []int64
	Layout Layout
}

// Decode reads an image from raw bytes. Supported formats: JPEG, PNG, GIF.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// GatekeeperTensor resizes img to size x size and applies the caffe-style
// ImageNet preprocessing: RGB to BGR, then per-channel mean subtraction on the
// 0-255 range.
func GatekeeperTensor(img image.Image, size int, layout Layout) Tensor {
	return toTensor(img, size, layout, func(r, g, b uint8) [3]float32 {
		return [3]float32{
			float32(b) - imagenetMeanBGR[0],
			float32(g) - imagenetMeanBGR[1],
			float32(r) - imagenetMeanBGR[2],
		}
	})
}

// DiseaseTensor resizes img to size x size as RGB and scales channels to [0,1].
func DiseaseTensor(img image.Image, size int, layout Layout) Tensor {
	return toTensor(img, size, layout, func(r, g, b uint8) [3]float32 {
		return [3]float32{
			float32(r) / 255.0,
			float32(g) / 255.0,
			float32(b) / 255.0,
		}
	})
}

func toTensor(img image.Image, size int, layout Layout, pixel func(r, g, b uint8) [3]float32) Tensor {
	if size <= 0 {
		size = DefaultSize
	}
	resized := resize.Resize(uint(size), uint(size), dropAlpha(img), resize.Bicubic)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	const channels = 3
	data := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := pixel(rgb(resized.At(bounds.Min.X+x, bounds.Min.Y+y)))

			pixelIndex := y*width + x
			for c := 0; c < channels; c++ {
				if layout == NCHW {
					data[c*plane+pixelIndex] = v[c]
				} else {
					data[pixelIndex*channels+c] = v[c]
				}
			}
		}
	}

	shape := []int64{1, int64(height), int64(width), channels}
	if layout == NCHW {
		shape = []int64{1, channels, int64(height), int64(width)}
	} else {
		layout = NHWC
	}
	return Tensor{Data: data, Shape: shape, Layout: layout}
}

// Brightness is the mean 8-bit luma of img using the ITU-R 601 weights
// (L = R*299/1000 + G*587/1000 + B*114/1000).
func Brightness(img image.Image) float64 {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += uint64(luma(rgb(img.At(x, y))))
		}
	}
	return float64(sum) / float64(n)
}

// luma uses the same 16-bit fixed point weights as common imaging libraries
// so that gray inputs map to themselves.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

// rgb reads the straight (non-premultiplied) color channels of c, so
// transparent pixels keep their color instead of turning black.
func rgb(c color.Color) (r, g, b uint8) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}

// dropAlpha returns img with every pixel made opaque. The resizer works on
// premultiplied values, so alpha has to go before resampling.
func dropAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := rgb(img.At(x, y))
			out.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out
}
