package segment

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"strconv"
	"strings"

	nhttp "github.com/chaos-io/cutout/util/http"
	"go.uber.org/zap"
)

const removePath = "/api/remove"

// HTTPRemover 通过 rembg HTTP 服务做背景去除
type HTTPRemover struct {
	model     string
	removeURL string
	cli       nhttp.IClient
	logger    *zap.Logger
}

func NewHTTPRemover(cfg SessionConfig) *HTTPRemover {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPRemover{
		model:     cfg.Model,
		removeURL: strings.TrimRight(cfg.Endpoint, "/") + removePath,
		cli:       nhttp.NewHTTPClientWithTimeout(cfg.Timeout),
		logger:    logger,
	}
}

/*
	curl -X POST "$BASE_URL/api/remove" \
	  -F "file=@my_image.png" \
	  -F "model=u2net" -F "a=true" -F "af=240" -F "ab=10" -F "ae=10" -F "ppm=true"

返回 image/png
*/
func (r *HTTPRemover) Remove(ctx context.Context, img image.Image, params MattingParams) (image.Image, error) {
	body, contentType, err := r.form(img, params)
	if err != nil {
		return nil, err
	}

	var data []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.removeURL,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   &data,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response from %s", r.removeURL)
	}

	r.logger.Debug("get the response", zap.String("model", r.model), zap.Int("bytes", len(data)))

	out, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode response image: %w", err)
	}
	return out, nil
}

func (r *HTTPRemover) form(img image.Image, params MattingParams) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// file 文件字段
	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode form file: %w", err)
	}

	// 其他字段
	fields := [][2]string{
		{"model", r.model},
		{"a", "true"},
		{"af", strconv.Itoa(int(params.ForegroundThreshold))},
		{"ab", strconv.Itoa(int(params.BackgroundThreshold))},
		{"ae", strconv.Itoa(params.ErodeSize)},
		{"ppm", strconv.FormatBool(params.PostProcessMask)},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
