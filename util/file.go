package util

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	httputil "github.com/chaos-io/cutout/util/http"
)

// IsURL 判断输入是否为 http(s) 地址
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ReadSource 读取本地图片或下载远程图片，返回原始字节，不做解码
func ReadSource(ctx context.Context, cli httputil.IClient, source string) ([]byte, error) {
	if IsURL(source) {
		return DownloadImage(ctx, cli, source)
	}
	return OpenImage(source)
}

// DownloadImage 下载图片
func DownloadImage(ctx context.Context, cli httputil.IClient, url string) ([]byte, error) {
	var data []byte
	err := cli.DoHTTPRequest(ctx, &httputil.RequestParam{
		RequestURI: url,
		Method:     http.MethodGet,
		Response:   &data,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return data, nil
}

// OpenImage 读取本地图片
func OpenImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return data, nil
}
