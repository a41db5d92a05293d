// Package segment is the background segmentation capability used by the
// cutout pipeline. A Remover takes an RGB image and returns an RGBA image
// whose alpha channel is a raw, unrefined foreground estimate.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
)

const (
	// ModelBorder selects the in-process border-colour estimator.
	ModelBorder = "border"
	// ModelU2Net is the default rembg model.
	ModelU2Net = "u2net"
)

var ErrEmptyEndpoint = errors.New("segment: remote model requires an endpoint")

// MattingParams 控制抠图时的光晕/腐蚀行为
type MattingParams struct {
	// 原始置信度高于该值的像素强制完全不透明
	ForegroundThreshold uint8
	// 原始置信度低于该值的像素强制完全透明
	BackgroundThreshold uint8
	// 前景边界腐蚀尺寸，用于去除光晕
	ErodeSize int
	// 由分割模型自身再做一次 mask 精修
	PostProcessMask bool
}

func DefaultMattingParams() MattingParams {
	return MattingParams{
		ForegroundThreshold: 240,
		BackgroundThreshold: 10,
		ErodeSize:           10,
		PostProcessMask:     true,
	}
}

func (p MattingParams) Validate() error {
	if p.BackgroundThreshold >= p.ForegroundThreshold {
		return fmt.Errorf("segment: background threshold %d must be below foreground threshold %d",
			p.BackgroundThreshold, p.ForegroundThreshold)
	}
	if p.ErodeSize < 0 {
		return fmt.Errorf("segment: negative erode size %d", p.ErodeSize)
	}
	return nil
}

type Remover interface {
	Remove(ctx context.Context, img image.Image, params MattingParams) (image.Image, error)
}

// SessionConfig 描述一个分割会话（模型只加载一次，之后复用）
type SessionConfig struct {
	Model    string
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewSession returns the Remover for cfg.Model. The border model runs in
// process; every other name is forwarded to a rembg server at cfg.Endpoint.
func NewSession(cfg SessionConfig) (Remover, error) {
	switch cfg.Model {
	case ModelBorder:
		return NewBorderRemover(), nil
	case "":
		cfg.Model = ModelU2Net
	}
	if cfg.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	return NewHTTPRemover(cfg), nil
}
