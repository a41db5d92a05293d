package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/chaos-io/cutout/cutout"
	"github.com/chaos-io/cutout/segment"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 CUTOUT_SERVER_PORT 覆盖 server.port
const EnvPrefix = "CUTOUT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Matting   MattingConfig   `mapstructure:"matting"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type PipelineConfig struct {
	MaxDimension     int   `mapstructure:"max_dimension"`
	MaxEncodedBytes  int64 `mapstructure:"max_encoded_bytes"`
	MaxDecodedPixels int64 `mapstructure:"max_decoded_pixels"`
	MaxConcurrent    int   `mapstructure:"max_concurrent"`

	// 排队等待处理槽位的最长时间
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
}

type MattingConfig struct {
	ForegroundThreshold uint8 `mapstructure:"foreground_threshold"`
	BackgroundThreshold uint8 `mapstructure:"background_threshold"`
	ErodeSize           int   `mapstructure:"erode_size"`
	PostProcessMask     bool  `mapstructure:"post_process_mask"`
}

type SegmenterConfig struct {
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Dir           string        `mapstructure:"dir"`
	PublicBaseURL string        `mapstructure:"public_base_url"`
	Retention     time.Duration `mapstructure:"retention"`
	SweepSpec     string        `mapstructure:"sweep_spec"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Load 从 YAML 文件加载配置，环境变量优先于文件
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

// FromEnv 只使用默认值和环境变量
func FromEnv() (*Config, error) {
	return unmarshal(newViper())
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return getDefaultConfig()
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Matting.Params().Validate(); err != nil {
		return fmt.Errorf("invalid matting config: %w", err)
	}
	if c.Pipeline.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid pipeline config: max_concurrent must be positive, got %d", c.Pipeline.MaxConcurrent)
	}
	if c.Segmenter.Model != segment.ModelBorder && c.Segmenter.Endpoint == "" {
		return fmt.Errorf("invalid segmenter config: model %q: %w", c.Segmenter.Model, segment.ErrEmptyEndpoint)
	}
	return nil
}

func (p PipelineConfig) SizeConstraint() cutout.SizeConstraint {
	return cutout.SizeConstraint{
		MaxDimensionPixels: p.MaxDimension,
		MaxEncodedBytes:    p.MaxEncodedBytes,
		MaxDecodedPixels:   p.MaxDecodedPixels,
	}
}

func (m MattingConfig) Params() segment.MattingParams {
	return segment.MattingParams{
		ForegroundThreshold: m.ForegroundThreshold,
		BackgroundThreshold: m.BackgroundThreshold,
		ErodeSize:           m.ErodeSize,
		PostProcessMask:     m.PostProcessMask,
	}
}

func (s SegmenterConfig) Session() segment.SessionConfig {
	return segment.SessionConfig{
		Model:    s.Model,
		Endpoint: s.Endpoint,
		Timeout:  s.Timeout,
	}
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("upload.max_size", d.Upload.MaxSize)
	v.SetDefault("upload.allowed_types", d.Upload.AllowedTypes)

	v.SetDefault("pipeline.max_dimension", d.Pipeline.MaxDimension)
	v.SetDefault("pipeline.max_encoded_bytes", d.Pipeline.MaxEncodedBytes)
	v.SetDefault("pipeline.max_decoded_pixels", d.Pipeline.MaxDecodedPixels)
	v.SetDefault("pipeline.max_concurrent", d.Pipeline.MaxConcurrent)
	v.SetDefault("pipeline.queue_timeout", d.Pipeline.QueueTimeout)

	v.SetDefault("matting.foreground_threshold", d.Matting.ForegroundThreshold)
	v.SetDefault("matting.background_threshold", d.Matting.BackgroundThreshold)
	v.SetDefault("matting.erode_size", d.Matting.ErodeSize)
	v.SetDefault("matting.post_process_mask", d.Matting.PostProcessMask)

	v.SetDefault("segmenter.model", d.Segmenter.Model)
	v.SetDefault("segmenter.endpoint", d.Segmenter.Endpoint)
	v.SetDefault("segmenter.timeout", d.Segmenter.Timeout)

	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.public_base_url", d.Storage.PublicBaseURL)
	v.SetDefault("storage.retention", d.Storage.Retention)
	v.SetDefault("storage.sweep_spec", d.Storage.SweepSpec)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)
}

func getDefaultConfig() *Config {
	limits := cutout.DefaultSizeConstraint()
	params := segment.DefaultMattingParams()

	return &Config{
		Server: ServerConfig{
			Port:         ":5000",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			CORSOrigins:  []string{"http://localhost:5173"},
		},
		Upload: UploadConfig{
			MaxSize: 20 * 1024 * 1024,
			AllowedTypes: []string{
				"image/jpeg", "image/jpg", "image/png", "image/webp",
				"image/gif", "image/bmp", "image/tiff",
			},
		},
		Pipeline: PipelineConfig{
			MaxDimension:     limits.MaxDimensionPixels,
			MaxEncodedBytes:  limits.MaxEncodedBytes,
			MaxDecodedPixels: limits.MaxDecodedPixels,
			MaxConcurrent:    2,
			QueueTimeout:     30 * time.Second,
		},
		Matting: MattingConfig{
			ForegroundThreshold: params.ForegroundThreshold,
			BackgroundThreshold: params.BackgroundThreshold,
			ErodeSize:           params.ErodeSize,
			PostProcessMask:     params.PostProcessMask,
		},
		Segmenter: SegmenterConfig{
			Model:    segment.ModelU2Net,
			Endpoint: "http://localhost:7000",
			Timeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Dir:           "./uploads",
			PublicBaseURL: "http://localhost:5000",
			Retention:     24 * time.Hour,
			SweepSpec:     "@every 1h",
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
	}
}
