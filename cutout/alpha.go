package cutout

import (
	"github.com/chaos-io/cutout/matte"
)

const (
	bilateralDiameter = 5
	bilateralSigma    = 75.0
	bandThreshold     = 100.0
	antiAliasSigma    = 0.5
)

// RefineAlpha 精修 alpha 通道：
//  1. 双边滤波，平滑平坦区域同时保留真实边缘
//  2. 半透明像素按阈值二值化，去掉低置信度的半透明光晕
//  3. 轻度高斯平滑，重新引入一圈抗锯齿边缘
//
// R, G and B are copied unchanged. The input is not modified.
func RefineAlpha(img *RasterImage) *RasterImage {
	alpha := matte.FromAlpha(img.Pix)
	smoothed := matte.Bilateral(alpha, bilateralDiameter, bilateralSigma, bilateralSigma)
	matte.Band(smoothed, bandThreshold)
	final := matte.Gaussian(smoothed, antiAliasSigma)

	out := &RasterImage{Mode: ModeRGBA, Pix: cloneNRGBA(img.Pix)}
	matte.ApplyAlpha(out.Pix, final)
	return out
}
