package cutout

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SizeConstraint 进程级常量，启动时确定，处理请求期间不可修改
type SizeConstraint struct {
	// 最长边上限（像素），<= 0 表示不限制
	MaxDimensionPixels int
	// PNG 最优压缩后的字节上限，<= 0 表示不限制
	MaxEncodedBytes int64
	// 解码前按文件头声明的 w*h 检查的像素上限，<= 0 表示不限制
	MaxDecodedPixels int64
}

func DefaultSizeConstraint() SizeConstraint {
	return SizeConstraint{
		MaxDimensionPixels: 1024,
		MaxEncodedBytes:    10 << 20,
		MaxDecodedPixels:   32 << 20,
	}
}

// Validator decodes uploads and enforces the SizeConstraint.
type Validator struct {
	limits SizeConstraint
}

func NewValidator(limits SizeConstraint) *Validator {
	return &Validator{limits: limits}
}

// Validate 解码、统一颜色模式、按最长边等比缩放并检查编码后大小
func (v *Validator) Validate(raw []byte) (*RasterImage, error) {
	if len(raw) == 0 {
		return nil, newError(StageValidate, ErrInvalidImage, fmt.Errorf("empty input"))
	}

	if err := v.checkDeclaredSize(raw); err != nil {
		return nil, err
	}

	decoded, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, newError(StageValidate, ErrInvalidImage, err)
	}
	if decoded.Bounds().Empty() {
		return nil, newError(StageValidate, ErrInvalidImage, fmt.Errorf("%s image has no pixels", format))
	}

	img := normalize(decoded)
	if resized := resizeWithinMax(img.Pix, v.limits.MaxDimensionPixels); resized != img.Pix {
		mode := img.Mode
		img.Release()
		img = &RasterImage{Mode: mode, Pix: resized}
		if mode == ModeRGB {
			img.dropAlpha()
		}
	}

	if v.limits.MaxEncodedBytes > 0 {
		n, err := encodedSize(img.Pix)
		if err != nil {
			img.Release()
			return nil, newError(StageValidate, ErrEncodingFailed, err)
		}
		if n > v.limits.MaxEncodedBytes {
			cause := fmt.Errorf("%dx%d encodes to %d bytes, limit is %d", img.Width(), img.Height(), n, v.limits.MaxEncodedBytes)
			img.Release()
			return nil, newError(StageValidate, ErrTooLarge, cause)
		}
	}
	return img, nil
}

// checkDeclaredSize 只读文件头，声明的画布过大时不进入完整解码
func (v *Validator) checkDeclaredSize(raw []byte) error {
	if v.limits.MaxDecodedPixels <= 0 {
		return nil
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return newError(StageValidate, ErrInvalidImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > v.limits.MaxDecodedPixels {
		return newError(StageValidate, ErrTooLarge,
			fmt.Errorf("%s declares %dx%d (%d pixels), limit is %d", format, cfg.Width, cfg.Height, pixels, v.limits.MaxDecodedPixels))
	}
	return nil
}

// normalize 除 RGB/RGBA 以外的模式（灰度、调色板、CMYK、YCbCr 等）都转为 RGB
func normalize(img image.Image) *RasterImage {
	pix := toNRGBA(img)
	if hasUsefulAlpha(pix) {
		return &RasterImage{Mode: ModeRGBA, Pix: pix}
	}
	return &RasterImage{Mode: ModeRGB, Pix: pix}
}

// resizeWithinMax 缩放（最长边 <= maxSize），每条边向下取整
func resizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	longest := max(w, h)

	if maxSize <= 0 || longest <= maxSize {
		return img
	}

	newW, newH := scaledSize(w, h, maxSize)
	resized := resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
	return toNRGBA(resized)
}

// scaledSize 等价于 floor(w*scale)、floor(h*scale)，scale = maxSize/longest；
// 用整数运算避免浮点误差让最长边变成 maxSize-1
func scaledSize(w, h, maxSize int) (int, int) {
	longest := max(w, h)
	return max(1, w*maxSize/longest), max(1, h*maxSize/longest)
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// encodedSize 以最优压缩编码 PNG，只计字节数不保留数据
func encodedSize(img image.Image) (int64, error) {
	cw := &countingWriter{}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(cw, img); err != nil {
		return 0, err
	}
	return cw.n, nil
}
