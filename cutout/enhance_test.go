package cutout

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhance_UniformColorIsStable(t *testing.T) {
	t.Parallel()

	img := &RasterImage{Mode: ModeRGB, Pix: solidImage(12, 9, color.NRGBA{R: 120, G: 130, B: 140, A: 255})}
	out := Enhance(img)

	require.Equal(t, ModeRGB, out.Mode)
	require.Equal(t, img.Pix.Rect, out.Pix.Rect)
	for i := 0; i < len(out.Pix.Pix); i += 4 {
		assert.InDelta(t, 120, out.Pix.Pix[i], 1)
		assert.InDelta(t, 130, out.Pix.Pix[i+1], 1)
		assert.InDelta(t, 140, out.Pix.Pix[i+2], 1)
		assert.Equal(t, uint8(255), out.Pix.Pix[i+3])
	}
}

func TestEnhance_SmallBoundedChange(t *testing.T) {
	t.Parallel()

	// 线性渐变：模糊与锐化在内部几乎不改变它，差异主要来自对比度
	src := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 100, A: 255})
		}
	}
	img := &RasterImage{Mode: ModeRGB, Pix: src}
	before := cloneNRGBA(src)

	out := Enhance(img)
	assert.Equal(t, before.Pix, src.Pix, "input must not be modified")

	changed := 0
	maxDiff := 0
	for i := 0; i < len(src.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := int(out.Pix.Pix[i+c]) - int(src.Pix[i+c])
			if d < 0 {
				d = -d
			}
			maxDiff = max(maxDiff, d)
			if d > 0 {
				changed++
			}
		}
	}
	assert.Positive(t, changed)
	assert.LessOrEqual(t, maxDiff, 10)
}

// sceneImage 渐变背景上叠加暗色方块和亮色圆，带有硬边缘
func sceneImage() *RasterImage {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255}
			switch {
			case x >= 8 && x < 28 && y >= 10 && y < 30:
				c = color.NRGBA{R: 20, G: 30, B: 40, A: 255}
			case (x-44)*(x-44)+(y-44)*(y-44) <= 12*12:
				c = color.NRGBA{R: 240, G: 220, B: 200, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return &RasterImage{Mode: ModeRGB, Pix: img}
}

func TestEnhance_TwiceIsBounded(t *testing.T) {
	t.Parallel()

	once := Enhance(sceneImage())
	twice := Enhance(once)
	require.Equal(t, once.Pix.Rect, twice.Pix.Rect)

	changed, maxDiff, sum := 0, 0, 0
	for i := 0; i < len(once.Pix.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			d := int(twice.Pix.Pix[i+c]) - int(once.Pix.Pix[i+c])
			if d < 0 {
				d = -d
			}
			maxDiff = max(maxDiff, d)
			sum += d
			if d > 0 {
				changed++
			}
		}
	}

	// 再增强一次仍有变化，但幅度很小
	assert.Positive(t, changed)
	assert.LessOrEqual(t, maxDiff, 48)
	mean := float64(sum) / float64(64*64*3)
	assert.LessOrEqual(t, mean, 4.0)
}

func TestEnhance_DropsAlpha(t *testing.T) {
	t.Parallel()

	src := solidImage(6, 6, color.NRGBA{R: 50, G: 60, B: 70, A: 255})
	src.SetNRGBA(2, 2, color.NRGBA{R: 50, G: 60, B: 70, A: 0})
	img := &RasterImage{Mode: ModeRGBA, Pix: src}

	out := Enhance(img)
	assert.Equal(t, ModeRGB, out.Mode)
	assert.False(t, hasUsefulAlpha(out.Pix))

	// 输入保持原样
	assert.Equal(t, ModeRGBA, img.Mode)
	assert.Equal(t, uint8(0), img.Pix.NRGBAAt(2, 2).A)
}

func TestAdjustContrast_IdentityFactor(t *testing.T) {
	t.Parallel()

	src := noiseImage(8, 8, 7)
	out := adjustContrast(src, 1)
	assert.Equal(t, src.Pix, out.Pix)
}
