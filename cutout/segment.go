package cutout

import (
	"context"
	"fmt"

	"github.com/chaos-io/cutout/segment"
)

// Segmenter 持有一个分割会话（模型只加载一次）和固定的抠图参数
type Segmenter struct {
	remover segment.Remover
	params  segment.MattingParams
}

func NewSegmenter(remover segment.Remover, params segment.MattingParams) *Segmenter {
	return &Segmenter{remover: remover, params: params}
}

// Segment hands the RGB image to the remover and returns its RGBA result.
// Every remover failure, including a panic, is reported as
// ErrSegmentationFailed. There is no retry.
func (s *Segmenter) Segment(ctx context.Context, img *RasterImage) (out *RasterImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, newError(StageSegment, ErrSegmentationFailed, fmt.Errorf("remover panic: %v", r))
		}
	}()

	res, err := s.remover.Remove(ctx, img.Pix, s.params)
	if err != nil {
		return nil, newError(StageSegment, ErrSegmentationFailed, err)
	}
	if res == nil {
		return nil, newError(StageSegment, ErrSegmentationFailed, fmt.Errorf("remover returned no image"))
	}

	b := res.Bounds()
	if b.Dx() != img.Width() || b.Dy() != img.Height() {
		return nil, newError(StageSegment, ErrSegmentationFailed,
			fmt.Errorf("remover returned %dx%d for a %dx%d input", b.Dx(), b.Dy(), img.Width(), img.Height()))
	}

	pix := toNRGBA(res)
	if pix == img.Pix {
		// 后端原样返回了输入缓冲，复制一份以保证所有权独立
		pix = cloneNRGBA(pix)
	}
	return &RasterImage{Mode: ModeRGBA, Pix: pix}, nil
}
