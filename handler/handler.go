package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/chaos-io/cutout/cache"
	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/storage"
	"github.com/chaos-io/cutout/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var ErrBusy = errors.New("no processing slot available")

// Processor 背景移除管线
type Processor interface {
	Run(ctx context.Context, raw []byte, opts cutout.Options) (*cutout.Result, error)
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// UploadResponse 上传接口响应
type UploadResponse struct {
	Status       string `json:"status"`
	ProcessedURL string `json:"processedUrl"`
}

type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

type Handler struct {
	upload   config.UploadConfig
	pipeline Processor
	store    *storage.Store
	cache    cache.ResultCache
	logger   *zap.Logger
	build    BuildInfo

	// 处理槽位，容量即最大并发数
	semaphore    chan struct{}
	queueTimeout time.Duration
}

func New(cfg *config.Config, pipeline Processor, store *storage.Store, resultCache cache.ResultCache, logger *zap.Logger, build BuildInfo) *Handler {
	if resultCache == nil {
		resultCache = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		upload:       cfg.Upload,
		pipeline:     pipeline,
		store:        store,
		cache:        resultCache,
		logger:       logger,
		build:        build,
		semaphore:    make(chan struct{}, max(1, cfg.Pipeline.MaxConcurrent)),
		queueTimeout: cfg.Pipeline.QueueTimeout,
	}
}

// Register 注册全部路由
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Health)
	r.GET("/version", h.Version)
	r.POST("/process", h.Process)

	api := r.Group("/api/images")
	{
		api.POST("/upload", h.Upload)
	}

	if h.store != nil {
		r.Static(storage.URLPrefix, h.store.Dir())
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cutout",
	})
}

func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}

// Process 返回去背景后的 PNG
func (h *Handler) Process(c *gin.Context) {
	data, ok := h.handle(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// Upload 保存处理结果并返回访问地址
func (h *Handler) Upload(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "result storage is not configured"})
		return
	}

	data, ok := h.handle(c)
	if !ok {
		return
	}

	name, url, err := h.store.Save(data)
	if err != nil {
		h.logger.Error("failed to store result", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "failed to store the result image",
			Error:   err.Error(),
		})
		return
	}

	h.logger.Info("result stored", zap.String("file", name))
	c.JSON(http.StatusOK, UploadResponse{
		Status:       "completed",
		ProcessedURL: url,
	})
}

// handle 读取上传、查缓存、排队处理；失败时已写好响应
func (h *Handler) handle(c *gin.Context) ([]byte, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "no image file provided",
			Error:   err.Error(),
		})
		return nil, false
	}

	// 验证文件大小
	if h.upload.MaxSize > 0 && file.Size > h.upload.MaxSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: fmt.Sprintf("file exceeds the upload limit (%d MB)", h.upload.MaxSize/(1024*1024)),
		})
		return nil, false
	}

	raw, err := readFile(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "failed to read the uploaded file",
			Error:   err.Error(),
		})
		return nil, false
	}

	// 验证文件类型
	contentType := file.Header.Get("Content-Type")
	if !h.isAllowedType(contentType) && !h.isAllowedType(http.DetectContentType(raw)) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "unsupported file type",
			Error:   contentType,
		})
		return nil, false
	}

	crop := c.DefaultPostForm("crop", c.DefaultQuery("crop", "false")) == "true"
	md5 := util.BytesMD5(raw)
	ctx := c.Request.Context()

	logger := h.logger.With(zap.String("md5", md5), zap.Bool("crop", crop))
	logger.Info("image received", zap.String("filename", file.Filename), zap.Int64("size", file.Size))

	cached, err := h.cache.Get(ctx, md5, crop)
	if err != nil {
		logger.Warn("failed to get cache", zap.Error(err))
	}
	if cached != nil {
		logger.Info("cache hit")
		return cached, true
	}

	release, err := h.acquire(ctx)
	if err != nil {
		logger.Warn("request rejected", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Message: "server is busy, try again later",
			Error:   err.Error(),
		})
		return nil, false
	}
	res, err := h.pipeline.Run(ctx, raw, cutout.Options{Crop: crop})
	release()
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}

	if err := h.cache.Set(ctx, md5, crop, res.Data); err != nil {
		logger.Warn("failed to set cache", zap.Error(err))
	}
	logger.Info("image processed", zap.Int("width", res.Width), zap.Int("height", res.Height))
	return res.Data, true
}

// acquire 在 queueTimeout 内等待处理槽位
func (h *Handler) acquire(ctx context.Context) (func(), error) {
	if h.queueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.queueTimeout)
		defer cancel()
	}

	select {
	case h.semaphore <- struct{}{}:
		return func() { <-h.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var perr *cutout.ProcessingError
	if !errors.As(err, &perr) {
		h.logger.Error("unexpected pipeline error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "image processing failed",
			Error:   err.Error(),
		})
		return
	}

	if perr.ClientError() {
		h.logger.Info("rejected image", zap.String("stage", string(perr.Stage)), zap.Error(err))
	} else {
		h.logger.Error("image processing failed", zap.String("stage", string(perr.Stage)), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(perr.HTTPStatus(), ErrorResponse{
		Message: perr.Message(),
		Error:   err.Error(),
		Stage:   string(perr.Stage),
	})
}

func (h *Handler) isAllowedType(contentType string) bool {
	// 去掉 "; charset=..." 之类的参数
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	for _, allowed := range h.upload.AllowedTypes {
		if strings.EqualFold(contentType, allowed) {
			return true
		}
	}
	return false
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return io.ReadAll(f)
}
