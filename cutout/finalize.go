package cutout

import (
	"bytes"
	"image/png"
	"runtime/debug"
)

// Finalize 以最优压缩编码为 PNG
func Finalize(img *RasterImage) ([]byte, error) {
	if img.released() {
		return nil, newError(StageEncode, ErrEncodingFailed, errReleased)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img.Pix); err != nil {
		return nil, newError(StageEncode, ErrEncodingFailed, err)
	}
	return buf.Bytes(), nil
}

// Reclaimer collects every buffer a request allocates and releases them all
// in one pass. Reclaim always ends with a forced collection that returns
// freed memory to the OS.
type Reclaimer struct {
	buffers []*RasterImage
	// forced 统计强制回收次数，测试用
	forced int
}

func (r *Reclaimer) Track(imgs ...*RasterImage) {
	for _, img := range imgs {
		if img != nil {
			r.buffers = append(r.buffers, img)
		}
	}
}

func (r *Reclaimer) Reclaim() {
	for _, img := range r.buffers {
		img.Release()
	}
	r.buffers = nil
	debug.FreeOSMemory()
	r.forced++
}
