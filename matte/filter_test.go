package matte

import (
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func stepMatrix(w, h, edge int) *mat.Dense {
	m := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := edge; x < w; x++ {
			m.Set(y, x, 255)
		}
	}
	return m
}

func TestFromAlphaApplyAlpha(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 10, 20, 30, uint8(i)
	}

	m := FromAlpha(img)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, float64(img.Pix[4*4+3]), m.At(1, 1))

	m.Set(0, 0, 300)
	m.Set(0, 1, -4)
	m.Set(0, 2, 127.6)
	ApplyAlpha(img, m)
	assert.Equal(t, uint8(255), img.Pix[3])
	assert.Equal(t, uint8(0), img.Pix[7])
	assert.Equal(t, uint8(128), img.Pix[11])
	// 颜色通道不受影响
	assert.Equal(t, []uint8{10, 20, 30}, img.Pix[8:11])
}

func TestApplyAlpha_DimensionMismatch(t *testing.T) {
	t.Parallel()

	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	assert.Panics(t, func() { ApplyAlpha(img, mat.NewDense(2, 3, nil)) })
}

func TestBilateral_PreservesHardEdge(t *testing.T) {
	t.Parallel()

	src := stepMatrix(10, 6, 5)
	got := Bilateral(src, 5, 75, 75)

	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			want := src.At(y, x)
			assert.InDelta(t, want, got.At(y, x), 1, "pixel (%d,%d)", x, y)
		}
	}
}

func TestBilateral_SmoothsFlatNoise(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	src := mat.NewDense(16, 16, nil)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.Set(y, x, 120+float64(rng.Intn(21)-10))
		}
	}
	got := Bilateral(src, 5, 75, 75)

	spread := func(m *mat.Dense) float64 {
		return mat.Max(m) - mat.Min(m)
	}
	assert.Less(t, spread(got), spread(src))
	for _, v := range got.RawMatrix().Data {
		assert.Equal(t, float64(int(v)), v, "output must stay on 8-bit levels")
	}
}

func TestBand(t *testing.T) {
	t.Parallel()

	m := mat.NewDense(1, 7, []float64{0, 1, 99, 100, 180, 254, 255})
	Band(m, 100)
	assert.Equal(t, []float64{0, 0, 0, 255, 255, 255, 255}, m.RawMatrix().Data)
}

func TestBand_KeepsExtremes(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	data := make([]float64, 400)
	for i := range data {
		data[i] = float64(rng.Intn(256))
	}
	before := append([]float64(nil), data...)
	m := mat.NewDense(20, 20, data)
	Band(m, 100)

	for i, v := range m.RawMatrix().Data {
		assert.True(t, v == 0 || v == 255, "value %v not banded", v)
		if before[i] == 0 || before[i] == 255 {
			assert.Equal(t, before[i], v)
		}
	}
}

func TestGaussianKernel(t *testing.T) {
	t.Parallel()

	k := GaussianKernel(0.5)
	require.Len(t, k, 5)
	var sum float64
	for _, v := range k {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Greater(t, k[2], k[1])
	assert.InDelta(t, k[1], k[3], 1e-12)
}

func TestGaussian_SoftensStepOnly(t *testing.T) {
	t.Parallel()

	src := stepMatrix(12, 4, 6)
	got := Gaussian(src, 0.5)

	assert.InDelta(t, 0, got.At(2, 0), 1e-9)
	assert.InDelta(t, 255, got.At(2, 11), 1e-9)
	left, right := got.At(2, 5), got.At(2, 6)
	assert.Greater(t, left, 0.0)
	assert.Less(t, right, 255.0)
	assert.Less(t, left, right)
}

func TestErodeDilateOpen(t *testing.T) {
	t.Parallel()

	m := mat.NewDense(7, 7, nil)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			m.Set(y, x, 255)
		}
	}
	// 孤立噪点
	m.Set(0, 6, 255)

	eroded := Erode(m, 3)
	assert.Equal(t, 255.0, eroded.At(3, 3))
	assert.Equal(t, 0.0, eroded.At(2, 2))
	assert.Equal(t, 0.0, eroded.At(0, 6))

	dilated := Dilate(m, 3)
	assert.Equal(t, 255.0, dilated.At(1, 1))
	assert.Equal(t, 0.0, dilated.At(0, 0))

	opened := Open(m, 3)
	assert.Equal(t, 255.0, opened.At(2, 2))
	assert.Equal(t, 0.0, opened.At(0, 6))

	same := Erode(m, 1)
	assert.True(t, mat.Equal(m, same))
}

func TestReflect101(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 2, reflect101(-2, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(6, 5))
	assert.Equal(t, 0, reflect101(-3, 1))
	assert.Equal(t, 1, reflect101(-3, 2))
}

func TestThreshold(t *testing.T) {
	t.Parallel()

	m := mat.NewDense(1, 5, []float64{0, 126, 127, 128, 255})
	Threshold(m, 127)
	assert.Equal(t, []float64{0, 0, 255, 255, 255}, m.RawRowView(0))
}
