package cutout

import (
	"image"

	"github.com/chaos-io/cutout/matte"
	"github.com/disintegration/imaging"
)

// 分割前的轻度增强，幅度很小，肉眼几乎看不出变化
const (
	enhanceBlurSigma = 0.5
	enhanceContrast  = 1.03
	enhanceSharpness = 1.05
)

// smoothKernel 是锐化时用作"退化图"的 3x3 平滑核
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// Enhance runs blur, contrast and sharpness, in that order, on an RGB image
// and returns a new RGB image. The input is not modified.
func Enhance(img *RasterImage) *RasterImage {
	src := img
	if img.Mode != ModeRGB {
		src = img.toRGB()
		defer src.Release()
	}

	blurred := imaging.Blur(src.Pix, enhanceBlurSigma)
	contrasted := adjustContrast(blurred, enhanceContrast)
	sharpened := adjustSharpness(contrasted, enhanceSharpness)

	out := &RasterImage{Mode: ModeRGB, Pix: sharpened}
	out.dropAlpha()
	return out
}

// adjustContrast 以平均亮度为中心按 factor 拉伸，factor=1 不变
func adjustContrast(img *image.NRGBA, factor float64) *image.NRGBA {
	var sum float64
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		sum += 0.299*float64(img.Pix[i]) + 0.587*float64(img.Pix[i+1]) + 0.114*float64(img.Pix[i+2])
		n++
	}
	if n == 0 {
		return img
	}
	mean := float64(int(sum/float64(n) + 0.5))

	dst := image.NewNRGBA(img.Rect)
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			dst.Pix[i+c] = matte.Clamp8(mean + factor*(float64(img.Pix[i+c])-mean))
		}
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}

// adjustSharpness 与平滑图做外插：out = smooth + factor*(img-smooth)
func adjustSharpness(img *image.NRGBA, factor float64) *image.NRGBA {
	smooth := imaging.Convolve3x3(img, smoothKernel, &imaging.ConvolveOptions{Normalize: true})

	dst := image.NewNRGBA(img.Rect)
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			s := float64(smooth.Pix[i+c])
			dst.Pix[i+c] = matte.Clamp8(s + factor*(float64(img.Pix[i+c])-s))
		}
		dst.Pix[i+3] = img.Pix[i+3]
	}
	return dst
}
