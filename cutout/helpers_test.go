package cutout

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/chaos-io/cutout/segment"
	"github.com/stretchr/testify/require"
)

// fakeRemover 记录调用次数，按 fn 返回结果
type fakeRemover struct {
	calls atomic.Int32
	fn    func(img image.Image) (image.Image, error)
}

func (f *fakeRemover) Remove(ctx context.Context, img image.Image, params segment.MattingParams) (image.Image, error) {
	f.calls.Add(1)
	return f.fn(img)
}

// withAlpha 复制 RGB，alpha 由 alphaAt 决定
func withAlpha(alphaAt func(x, y int) uint8) func(img image.Image) (image.Image, error) {
	return func(img image.Image) (image.Image, error) {
		src := toNRGBA(img)
		out := cloneNRGBA(src)
		for y := 0; y < out.Rect.Dy(); y++ {
			for x := 0; x < out.Rect.Dx(); x++ {
				out.Pix[y*out.Stride+x*4+3] = alphaAt(x, y)
			}
		}
		return out, nil
	}
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func noiseImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// circleImage 白底黑色实心圆
func circleImage(w, h, cx, cy, r int) *image.NRGBA {
	img := solidImage(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r && image.Pt(x, y).In(img.Rect) {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeNRGBA(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return toNRGBA(img)
}
