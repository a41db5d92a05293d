// Package matte holds the single-channel alpha plane used by the cutout
// pipeline and the filters that run on it.
//
// A plane is a *mat.Dense with one row per image row and one column per
// pixel. Values are kept as float64 in the 0-255 range and are only rounded
// back to uint8 when written into an image.
package matte

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// FromAlpha 提取 NRGBA 图像的 alpha 通道
func FromAlpha(img *image.NRGBA) *mat.Dense {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	m := mat.NewDense(h, w, nil)
	raw := m.RawMatrix()
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			raw.Data[y*raw.Stride+x] = float64(img.Pix[row+x*4+3])
		}
	}
	return m
}

// FromGray 把灰度图当作 alpha 平面
func FromGray(g *image.Gray) *mat.Dense {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	m := mat.NewDense(h, w, nil)
	raw := m.RawMatrix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			raw.Data[y*raw.Stride+x] = float64(g.Pix[y*g.Stride+x])
		}
	}
	return m
}

// ApplyAlpha writes m back into the alpha channel of img. R, G and B are
// left untouched. It panics if the dimensions differ.
func ApplyAlpha(img *image.NRGBA, m *mat.Dense) {
	h, w := m.Dims()
	if w != img.Rect.Dx() || h != img.Rect.Dy() {
		panic("matte: alpha plane does not match image bounds")
	}
	raw := m.RawMatrix()
	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			img.Pix[row+x*4+3] = Clamp8(raw.Data[y*raw.Stride+x])
		}
	}
}

// Clamp8 rounds v to the nearest integer and clamps it to [0,255].
func Clamp8(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// reflect101 maps an out-of-range index the way OpenCV's BORDER_REFLECT_101
// does: gfedcb|abcdefgh|gfedcba.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
