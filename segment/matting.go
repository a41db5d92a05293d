package segment

import (
	"github.com/chaos-io/cutout/matte"
	"gonum.org/v1/gonum/mat"
)

const (
	postProcessOpen  = 3
	postProcessSigma = 2.0
	postProcessLevel = 127
)

// ApplyMatting turns a raw confidence mask into the alpha returned by a
// Remover.
//
// With PostProcessMask the mask is opened, blurred and re-thresholded to
// drop specks and stair-steps. The trimap step then forces confident
// foreground to 255 and confident background to 0; both regions are eroded
// by ErodeSize first, so the band around the boundary keeps the raw value.
func ApplyMatting(mask *mat.Dense, params MattingParams) *mat.Dense {
	if params.PostProcessMask {
		mask = postProcess(mask)
	}

	h, w := mask.Dims()
	fg := mat.NewDense(h, w, nil)
	bg := mat.NewDense(h, w, nil)
	fgLevel := float64(params.ForegroundThreshold)
	bgLevel := float64(params.BackgroundThreshold)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := mask.At(y, x)
			if v > fgLevel {
				fg.Set(y, x, 255)
			}
			if v < bgLevel {
				bg.Set(y, x, 255)
			}
		}
	}
	if params.ErodeSize > 0 {
		fg = matte.Erode(fg, params.ErodeSize)
		bg = matte.Erode(bg, params.ErodeSize)
	}

	alpha := mat.DenseCopyOf(mask)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case fg.At(y, x) == 255:
				alpha.Set(y, x, 255)
			case bg.At(y, x) == 255:
				alpha.Set(y, x, 0)
			}
		}
	}
	return alpha
}

func postProcess(mask *mat.Dense) *mat.Dense {
	bin := mat.DenseCopyOf(mask)
	matte.Threshold(bin, postProcessLevel+1)
	bin = matte.Open(bin, postProcessOpen)
	smooth := matte.Gaussian(bin, postProcessSigma)
	matte.Threshold(smooth, postProcessLevel)
	return smooth
}
