package cutout

import (
	"image"
	"image/draw"
)

type ColorMode int

const (
	ModeRGB ColorMode = iota
	ModeRGBA
)

func (m ColorMode) String() string {
	if m == ModeRGBA {
		return "RGBA"
	}
	return "RGB"
}

// RasterImage 管线中流转的像素缓冲，同一时刻只属于一个阶段
//
// RGB images are stored as NRGBA with every alpha byte at 255.
type RasterImage struct {
	Mode ColorMode
	Pix  *image.NRGBA
}

func (r *RasterImage) Width() int {
	return r.Pix.Rect.Dx()
}

func (r *RasterImage) Height() int {
	return r.Pix.Rect.Dy()
}

// Release drops the pixel store so the buffer can be reclaimed. It is safe
// to call more than once and on a nil receiver.
func (r *RasterImage) Release() {
	if r == nil {
		return
	}
	r.Pix = nil
}

func (r *RasterImage) released() bool {
	return r == nil || r.Pix == nil
}

// toRGB returns a copy with the alpha channel dropped.
func (r *RasterImage) toRGB() *RasterImage {
	dst := &RasterImage{Mode: ModeRGB, Pix: cloneNRGBA(r.Pix)}
	dst.dropAlpha()
	return dst
}

func (r *RasterImage) dropAlpha() {
	for i := 3; i < len(r.Pix.Pix); i += 4 {
		r.Pix.Pix[i] = 255
	}
	r.Mode = ModeRGB
}

// toNRGBA 转为原点在 (0,0) 的 NRGBA
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) && nrgba.Stride == 4*nrgba.Rect.Dx() {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// hasUsefulAlpha 检查 alpha 通道是否真的包含透明信息
// 只要存在非 255（非完全不透明），就认为是 RGBA 图
func hasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}
