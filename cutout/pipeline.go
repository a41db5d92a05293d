// Package cutout is the background-removal pipeline: validate, enhance,
// segment, refine alpha, encode. Stages run strictly in that order and each
// one owns the buffer it produces until the next stage has returned.
package cutout

import (
	"context"
	"errors"
	"time"

	"github.com/chaos-io/cutout/segment"
	"go.uber.org/zap"
)

// Options are per-request switches that do not change the pipeline itself.
type Options struct {
	// Crop 去掉结果四周完全透明的边
	Crop bool
}

// Result holds the output of a pipeline run.
type Result struct {
	Data   []byte // encoded RGBA PNG
	Width  int
	Height int
}

type Pipeline struct {
	validator *Validator
	segmenter *Segmenter
	logger    *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func NewPipeline(limits SizeConstraint, remover segment.Remover, params segment.MattingParams, opts ...Option) *Pipeline {
	p := &Pipeline{
		validator: NewValidator(limits),
		segmenter: NewSegmenter(remover, params),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the whole pipeline with default options and returns the PNG.
func (p *Pipeline) Process(ctx context.Context, raw []byte) ([]byte, error) {
	res, err := p.Run(ctx, raw, Options{})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Run executes validate → enhance → segment → refine → encode. Every
// intermediate buffer is released as soon as the next stage owns its
// output, and a final reclamation pass runs on success and failure alike.
func (p *Pipeline) Run(ctx context.Context, raw []byte, opts Options) (*Result, error) {
	rec := &Reclaimer{}
	defer rec.Reclaim()

	// 1. 解码 + 校验
	start := time.Now()
	img, err := p.validator.Validate(raw)
	if err != nil {
		return nil, p.fail(err)
	}
	rec.Track(img)
	p.stageDone(StageValidate, start,
		zap.Int("width", img.Width()), zap.Int("height", img.Height()), zap.Stringer("mode", img.Mode))

	// 2. 分割前增强
	start = time.Now()
	enhanced := Enhance(img)
	rec.Track(enhanced)
	img.Release()
	p.stageDone(StageEnhance, start)

	// 3. 背景分割
	start = time.Now()
	segmented, err := p.segmenter.Segment(ctx, enhanced)
	if err != nil {
		return nil, p.fail(err)
	}
	rec.Track(segmented)
	enhanced.Release()
	p.stageDone(StageSegment, start)

	// 4. alpha 精修
	start = time.Now()
	refined := RefineAlpha(segmented)
	rec.Track(refined)
	segmented.Release()
	if opts.Crop {
		cropped := CropToSubject(refined)
		rec.Track(cropped)
		refined.Release()
		refined = cropped
	}
	p.stageDone(StageRefine, start, zap.Bool("crop", opts.Crop))

	// 5. 编码
	start = time.Now()
	data, err := Finalize(refined)
	if err != nil {
		return nil, p.fail(err)
	}
	res := &Result{Data: data, Width: refined.Width(), Height: refined.Height()}
	refined.Release()
	p.stageDone(StageEncode, start, zap.Int("bytes", len(data)))

	return res, nil
}

func (p *Pipeline) stageDone(stage Stage, start time.Time, fields ...zap.Field) {
	fields = append(fields, zap.String("stage", string(stage)), zap.Duration("cost", time.Since(start)))
	p.logger.Debug("stage done", fields...)
}

func (p *Pipeline) fail(err error) error {
	var perr *ProcessingError
	if errors.As(err, &perr) {
		p.logger.Warn("pipeline failed",
			zap.String("stage", string(perr.Stage)),
			zap.Bool("client_error", perr.ClientError()),
			zap.Error(err))
	} else {
		p.logger.Warn("pipeline failed", zap.Error(err))
	}
	return err
}
