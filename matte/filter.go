package matte

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bilateral 双边滤波：平坦区域平滑，透明度突变处（真实边缘）保持锐利
//
// The window is the disc of the given diameter, the border is reflected
// (101) and every output value is rounded to an 8-bit level, so the result
// has the same value domain as the input channel.
func Bilateral(src *mat.Dense, diameter int, sigmaColor, sigmaSpace float64) *mat.Dense {
	h, w := src.Dims()
	radius := diameter / 2
	if radius < 1 {
		radius = 1
	}

	type tap struct {
		dx, dy int
		weight float64
	}
	var taps []tap
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			if d2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx: dx, dy: dy, weight: math.Exp(d2 * spaceCoeff)})
		}
	}

	var colorWeight [256]float64
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	in := src.RawMatrix()
	dst := mat.NewDense(h, w, nil)
	out := dst.RawMatrix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := int(Clamp8(in.Data[y*in.Stride+x]))
			var sum, norm float64
			for _, t := range taps {
				yy := reflect101(y+t.dy, h)
				xx := reflect101(x+t.dx, w)
				v := int(Clamp8(in.Data[yy*in.Stride+xx]))
				diff := v - center
				if diff < 0 {
					diff = -diff
				}
				wt := t.weight * colorWeight[diff]
				sum += float64(v) * wt
				norm += wt
			}
			out.Data[y*out.Stride+x] = float64(Clamp8(sum / norm))
		}
	}
	return dst
}

// Band 半透明像素二值化：0 < a < threshold 置 0，threshold <= a < 255 置 255。
// 完全透明（0）与完全不透明（255）的像素保持不变。
func Band(m *mat.Dense, threshold float64) {
	raw := m.RawMatrix()
	for y := 0; y < raw.Rows; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+raw.Cols]
		for i, a := range row {
			if a <= 0 || a >= 255 {
				continue
			}
			if a < threshold {
				row[i] = 0
			} else {
				row[i] = 255
			}
		}
	}
}

// Threshold sets every value >= t to 255 and the rest to 0.
func Threshold(m *mat.Dense, t float64) {
	raw := m.RawMatrix()
	for y := 0; y < raw.Rows; y++ {
		row := raw.Data[y*raw.Stride : y*raw.Stride+raw.Cols]
		for i, a := range row {
			if a >= t {
				row[i] = 255
			} else {
				row[i] = 0
			}
		}
	}
}

// GaussianKernel returns a normalised 1-D kernel of radius ceil(3σ).
func GaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// Gaussian 可分离高斯平滑（先横向后纵向），边界反射
func Gaussian(src *mat.Dense, sigma float64) *mat.Dense {
	h, w := src.Dims()
	kernel := GaussianKernel(sigma)
	radius := len(kernel) / 2

	in := src.RawMatrix()
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, kv := range kernel {
				xx := reflect101(x+k-radius, w)
				sum += in.Data[y*in.Stride+xx] * kv
			}
			tmp[y*w+x] = sum
		}
	}

	dst := mat.NewDense(h, w, nil)
	out := dst.RawMatrix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k, kv := range kernel {
				yy := reflect101(y+k-radius, h)
				sum += tmp[yy*w+x] * kv
			}
			out.Data[y*out.Stride+x] = sum
		}
	}
	return dst
}

// Erode 方形结构元素的最小值滤波（边长 size）
func Erode(src *mat.Dense, size int) *mat.Dense {
	return rankFilter(src, size, math.Min)
}

// Dilate 方形结构元素的最大值滤波（边长 size）
func Dilate(src *mat.Dense, size int) *mat.Dense {
	return rankFilter(src, size, math.Max)
}

// Open is an erosion followed by a dilation with the same square element.
func Open(src *mat.Dense, size int) *mat.Dense {
	return Dilate(Erode(src, size), size)
}

// rankFilter runs a separable min/max filter; a square element decomposes
// into a horizontal and a vertical pass.
func rankFilter(src *mat.Dense, size int, pick func(a, b float64) float64) *mat.Dense {
	h, w := src.Dims()
	dst := mat.DenseCopyOf(src)
	if size <= 1 {
		return dst
	}
	lo := size / 2
	hi := size - 1 - lo

	in := src.RawMatrix()
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := in.Data[y*in.Stride+clampIndex(x-lo, w)]
			for xx := x - lo + 1; xx <= x+hi; xx++ {
				v = pick(v, in.Data[y*in.Stride+clampIndex(xx, w)])
			}
			tmp[y*w+x] = v
		}
	}

	out := dst.RawMatrix()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := tmp[clampIndex(y-lo, h)*w+x]
			for yy := y - lo + 1; yy <= y+hi; yy++ {
				v = pick(v, tmp[clampIndex(yy, h)*w+x])
			}
			out.Data[y*out.Stride+x] = v
		}
	}
	return dst
}
