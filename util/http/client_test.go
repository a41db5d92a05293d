package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()
	httpClient, ok := client.(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, httpClient.client.Timeout)

	custom, ok := NewHTTPClientWithTimeout(5 * time.Second).(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, custom.client.Timeout)

	fallback, ok := NewHTTPClientWithTimeout(0).(*HTTPClient)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, fallback.client.Timeout)
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		requestParam *RequestParam
		handler      http.HandlerFunc
		wantErrMsg   string
	}{
		{
			name:         "成功的GET请求",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				_, _ = w.Write([]byte(`{"message": "success"}`))
			},
		},
		{
			name: "POST请求带JSON body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   map[string]interface{}{"key": "value"},
				Header: map[string]string{"Content-Type": "application/json"},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				var data map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&data))
				assert.Equal(t, "value", data["key"])
				_, _ = w.Write([]byte(`{"received": true}`))
			},
		},
		{
			name: "POST请求带[]byte body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   []byte("raw bytes"),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "raw bytes", string(body))
			},
		},
		{
			name:         "服务器返回错误状态码",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error": "server error"}`))
			},
			wantErrMsg: "HTTP request failed with status 500",
		},
		{
			name:         "请求超时",
			requestParam: &RequestParam{Method: http.MethodGet, Timeout: 50 * time.Millisecond},
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			wantErrMsg: "context deadline exceeded",
		},
		{
			name:         "请求参数为nil",
			requestParam: nil,
			wantErrMsg:   "request param is nil",
		},
		{
			name:         "无效的URL",
			requestParam: &RequestParam{Method: http.MethodGet, RequestURI: "://invalid-url"},
			wantErrMsg:   "missing protocol scheme",
		},
		{
			name:         "JSON序列化失败",
			requestParam: &RequestParam{Method: http.MethodPost, Body: make(chan int)},
			wantErrMsg:   "json: unsupported type: chan int",
		},
		{
			name: "响应体不是JSON",
			requestParam: &RequestParam{
				Method:   http.MethodGet,
				Response: &map[string]interface{}{},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			wantErrMsg: "decode response",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.handler != nil && tt.requestParam != nil {
				server := httptest.NewServer(tt.handler)
				defer server.Close()
				tt.requestParam.RequestURI = server.URL
			}

			err := NewHTTPClient().DoHTTPRequest(context.Background(), tt.requestParam)
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPClient_DoHTTPRequest_RawResponse(t *testing.T) {
	t.Parallel()

	payload := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var got []byte
	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
		Response:   &got,
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHTTPClient_DoHTTPRequest_Multipart(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "u2net", r.FormValue("model"))
		f, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer func() {
			_ = f.Close()
		}()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "image-bytes", string(data))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "image.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("image-bytes"))
	_ = writer.WriteField("model", "u2net")
	require.NoError(t, writer.Close())

	var resp struct {
		OK bool `json:"ok"`
	}
	err = NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodPost,
		RequestURI: server.URL,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &resp,
	})
	require.NoError(t, err)
	assert.True(t, resp.OK)
}

func TestHTTPClient_DoHTTPRequest_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := NewHTTPClient().DoHTTPRequest(ctx, &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestHTTPClient_DoHTTPRequest_ErrorBodyTruncated(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Less(t, len(err.Error()), 700)
}
