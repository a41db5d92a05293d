package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaos-io/cutout/cache"
	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/handler"
	"github.com/chaos-io/cutout/middleware"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/storage"
	"github.com/chaos-io/cutout/util"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP background-removal service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "Listen address, overrides server.port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Server.Port = port
	}

	// 初始化日志
	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.Sync()
	logger := util.Logger

	logger.Info("starting cutout server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("model", cfg.Segmenter.Model))

	// 分割会话在启动时建立一次，所有请求共享
	session := cfg.Segmenter.Session()
	session.Logger = logger.Named("segment")
	remover, err := segment.NewSession(session)
	if err != nil {
		return fmt.Errorf("create segmentation session: %w", err)
	}
	pipeline := cutout.NewPipeline(cfg.Pipeline.SizeConstraint(), remover, cfg.Matting.Params(),
		cutout.WithLogger(logger.Named("pipeline")))

	store, err := storage.New(cfg.Storage.Dir, cfg.Storage.PublicBaseURL, logger.Named("storage"))
	if err != nil {
		return err
	}
	sweeper, err := store.StartSweeper(cfg.Storage.SweepSpec, cfg.Storage.Retention)
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resultCache, closeCache := newCache(ctx, cfg.Redis, logger)
	defer closeCache()

	h := handler.New(cfg, pipeline, store, resultCache, logger.Named("handler"), handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	})

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger.Named("http")))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.MaxMultipartMemory = cfg.Upload.MaxSize
	h.Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache redis 不可用时退化为不缓存
func newCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (cache.ResultCache, func()) {
	if !cfg.Enabled {
		return cache.Noop{}, func() {}
	}

	rc := cache.NewRedisCache(cfg.Addr, cfg.Password, cfg.DB, cfg.TTL)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		_ = rc.Close()
		return cache.Noop{}, func() {}
	}

	logger.Info("redis connected successfully", zap.String("addr", cfg.Addr))
	return rc, func() { _ = rc.Close() }
}
