package cutout

import (
	"image"
	"image/draw"
)

// alphaBBox 从 alpha 通道计算主体 bounding box
// 把 alpha > threshold 的像素当作"主体"，找所有主体像素的坐标
func alphaBBox(img *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()

	minX, minY := w, h
	maxX, maxY := 0, 0
	found := false

	for y := 0; y < h; y++ {
		row := y * img.Stride
		for x := 0; x < w; x++ {
			if img.Pix[row+x*4+3] <= threshold {
				continue
			}
			found = true
			minX = min(minX, x)
			minY = min(minY, y)
			maxX = max(maxX, x)
			maxY = max(maxY, y)
		}
	}

	if !found {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CropToSubject trims fully transparent margins. An image without any
// visible pixel is returned as a copy of itself.
func CropToSubject(img *RasterImage) *RasterImage {
	bbox, ok := alphaBBox(img.Pix, 0)
	if !ok {
		return &RasterImage{Mode: img.Mode, Pix: cloneNRGBA(img.Pix)}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bbox.Dx(), bbox.Dy()))
	draw.Draw(dst, dst.Bounds(), img.Pix, bbox.Min, draw.Src)
	return &RasterImage{Mode: img.Mode, Pix: dst}
}
