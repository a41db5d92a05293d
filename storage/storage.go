package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const (
	// URLPrefix 结果图片的静态访问路径
	URLPrefix = "/uploads"

	filePrefix = "processed-"
	fileExt    = ".png"
)

// Store 把处理结果落盘并生成可访问的 URL
type Store struct {
	dir     string
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

func New(dir, publicBaseURL string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save 写入 processed-<ksuid>.png，返回文件名与公开 URL
func (s *Store) Save(data []byte) (name, url string, err error) {
	name = filePrefix + ksuid.New().String() + fileExt
	path := filepath.Join(s.dir, name)

	// 先写临时文件再改名，/uploads 只会看到完整文件
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", "", fmt.Errorf("rename %s: %w", name, err)
	}

	s.logger.Debug("result stored", zap.String("file", name), zap.Int("bytes", len(data)))
	return name, s.URL(name), nil
}

func (s *Store) URL(name string) string {
	return s.baseURL + URLPrefix + "/" + name
}

// Sweep 删除早于 retention 的结果文件，只处理本服务生成的文件
func (s *Store) Sweep(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read storage dir: %w", err)
	}

	deadline := s.now().Add(-retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(deadline) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warn("failed to delete expired result", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// StartSweeper 按 cron 表达式定期清理，返回的 cron 由调用方 Stop
func (s *Store) StartSweeper(spec string, retention time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(retention)
		if err != nil {
			s.logger.Warn("sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("expired results deleted", zap.Int("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep spec %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
