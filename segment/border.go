package segment

import (
	"context"
	"image"
	"image/draw"
	"sort"

	"github.com/chaos-io/cutout/matte"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"
)

const (
	// Lab 距离低于 nearDistance 视为背景，高于 farDistance 视为前景
	nearDistance = 0.04
	farDistance  = 0.20
)

// BorderRemover 不依赖外部模型的背景估计：
// 取图像边框像素的中位色作为背景色，按 CIE-Lab 距离给出原始前景置信度。
// 适合纯色或近似纯色背景（商品图、证件照）。
type BorderRemover struct{}

func NewBorderRemover() *BorderRemover {
	return &BorderRemover{}
}

func (b *BorderRemover) Remove(ctx context.Context, img image.Image, params MattingParams) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	bg := borderColor(src)
	mask := mat.NewDense(h, w, nil)
	raw := mask.RawMatrix()
	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			i := row + x*4
			c := colorful.Color{
				R: float64(src.Pix[i]) / 255,
				G: float64(src.Pix[i+1]) / 255,
				B: float64(src.Pix[i+2]) / 255,
			}
			raw.Data[y*raw.Stride+x] = confidence(c.DistanceLab(bg))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	alpha := ApplyMatting(mask, params)

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(out.Pix, src.Pix)
	matte.ApplyAlpha(out, alpha)
	return out, nil
}

func confidence(d float64) float64 {
	switch {
	case d <= nearDistance:
		return 0
	case d >= farDistance:
		return 255
	}
	return (d - nearDistance) / (farDistance - nearDistance) * 255
}

// borderColor 边框像素逐通道取中位数
func borderColor(img *image.NRGBA) colorful.Color {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	ring := max(1, min(w, h)/50)

	var rs, gs, bs []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x >= ring && x < w-ring && y >= ring && y < h-ring {
				continue
			}
			i := y*img.Stride + x*4
			rs = append(rs, int(img.Pix[i]))
			gs = append(gs, int(img.Pix[i+1]))
			bs = append(bs, int(img.Pix[i+2]))
		}
	}
	return colorful.Color{
		R: float64(median(rs)) / 255,
		G: float64(median(gs)) / 255,
		B: float64(median(bs)) / 255,
	}
}

func median(v []int) int {
	sort.Ints(v)
	return v[len(v)/2]
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) && nrgba.Stride == 4*nrgba.Rect.Dx() {
		return nrgba
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
