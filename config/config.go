// Package config loads scribe settings from defaults, an optional YAML file
// and SCRIBE_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ByLCY/scribe/artifact"
	"github.com/ByLCY/scribe/generator"
	"github.com/ByLCY/scribe/layout"
	canvasrenderer "github.com/ByLCY/scribe/renderer/canvas"
	"github.com/ByLCY/scribe/strokecache"
	"github.com/ByLCY/scribe/style"
	"github.com/ByLCY/scribe/synth"
)

// EnvPrefix prefixes every environment override, eg. SCRIBE_TASKS_MAX_RUNNING.
const EnvPrefix = "SCRIBE"

// Generator kinds.
const (
	GeneratorSynthetic = "synthetic"
	GeneratorRemote    = "remote"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Page      PageConfig      `mapstructure:"page"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Artifact  ArtifactConfig  `mapstructure:"artifact"`
	// StyleSheet is an optional YAML style sheet layered over the built-ins.
	StyleSheet string `mapstructure:"style_sheet"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TasksConfig struct {
	MaxRunning      int           `mapstructure:"max_running"`
	MaxQueue        int           `mapstructure:"max_queue"`
	WordConcurrency int           `mapstructure:"word_concurrency"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Format          string        `mapstructure:"format"`
}

// PageConfig holds page geometry and odd-page margins in cm. Width, Height
// and LineHeight are lengths such as "210mm" or "8.5in"; bare numbers are mm.
type PageConfig struct {
	Width        string  `mapstructure:"width"`
	Height       string  `mapstructure:"height"`
	NumLines     int     `mapstructure:"num_lines"`
	LineHeight   string  `mapstructure:"line_height"`
	MarginLeft   float64 `mapstructure:"margin_left"`
	MarginRight  float64 `mapstructure:"margin_right"`
	MarginTop    float64 `mapstructure:"margin_top"`
	MarginBottom float64 `mapstructure:"margin_bottom"`
}

type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type GeneratorConfig struct {
	Kind     string        `mapstructure:"kind"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Latency  time.Duration `mapstructure:"latency"`
}

type ArtifactConfig struct {
	Backend string   `mapstructure:"backend"`
	Dir     string   `mapstructure:"dir"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

func setDefaults(v *viper.Viper) {
	page := layout.DefaultConfig()
	tasks := synth.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tasks.max_running", tasks.MaxRunning)
	v.SetDefault("tasks.max_queue", tasks.MaxQueue)
	v.SetDefault("tasks.word_concurrency", tasks.WordConcurrency)
	v.SetDefault("tasks.retention", tasks.Retention)
	v.SetDefault("tasks.cleanup_interval", tasks.CleanupInterval)
	v.SetDefault("tasks.format", string(tasks.Format))

	v.SetDefault("page.width", fmt.Sprintf("%gmm", page.PageWidth))
	v.SetDefault("page.height", fmt.Sprintf("%gmm", page.PageHeight))
	v.SetDefault("page.num_lines", page.NumLines)
	v.SetDefault("page.line_height", "0")
	v.SetDefault("page.margin_left", page.Margins.Left)
	v.SetDefault("page.margin_right", page.Margins.Right)
	v.SetDefault("page.margin_top", page.Margins.Top)
	v.SetDefault("page.margin_bottom", page.Margins.Bottom)

	v.SetDefault("cache.size", 4096)
	v.SetDefault("cache.ttl", time.Duration(0))

	v.SetDefault("generator.kind", GeneratorSynthetic)
	v.SetDefault("generator.endpoint", "")
	v.SetDefault("generator.timeout", 30*time.Second)
	v.SetDefault("generator.latency", time.Duration(0))

	v.SetDefault("artifact.backend", artifact.BackendMemory)
	v.SetDefault("artifact.dir", "artifacts")
	v.SetDefault("artifact.s3.endpoint", "")
	v.SetDefault("artifact.s3.region", "")
	v.SetDefault("artifact.s3.access_key", "")
	v.SetDefault("artifact.s3.secret_key", "")
	v.SetDefault("artifact.s3.bucket", "")
	v.SetDefault("artifact.s3.prefix", "")
	v.SetDefault("artifact.s3.use_ssl", false)

	v.SetDefault("style_sheet", "")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot produce a working service.
func (c *Config) Validate() error {
	if _, err := canvasrenderer.ParseFormat(c.Tasks.Format); err != nil {
		return fmt.Errorf("tasks.format: %w", err)
	}
	switch strings.ToLower(c.Generator.Kind) {
	case GeneratorSynthetic:
	case GeneratorRemote:
		if strings.TrimSpace(c.Generator.Endpoint) == "" {
			return fmt.Errorf("generator.endpoint is required for the remote generator")
		}
	default:
		return fmt.Errorf("unknown generator kind %q", c.Generator.Kind)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("cache.size must be positive, got %d", c.Cache.Size)
	}
	if c.Page.NumLines <= 0 {
		return fmt.Errorf("page.num_lines must be positive, got %d", c.Page.NumLines)
	}
	for key, raw := range map[string]string{
		"page.width":       c.Page.Width,
		"page.height":      c.Page.Height,
		"page.line_height": c.Page.LineHeight,
	} {
		if _, err := layout.ParseLength(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// millimetres converts a validated length setting.
func millimetres(raw string) float64 {
	l, _ := layout.ParseLength(raw)
	return l.ToMM()
}

// Layout returns the page geometry.
func (c *Config) Layout() layout.DocumentConfig {
	return layout.DocumentConfig{
		PageWidth:  millimetres(c.Page.Width),
		PageHeight: millimetres(c.Page.Height),
		NumLines:   c.Page.NumLines,
		LineHeight: millimetres(c.Page.LineHeight),
		Margins: layout.PageMargins{
			Left:   c.Page.MarginLeft,
			Right:  c.Page.MarginRight,
			Top:    c.Page.MarginTop,
			Bottom: c.Page.MarginBottom,
		},
	}
}

// Synth returns the orchestrator settings.
func (c *Config) Synth() synth.Config {
	format, _ := canvasrenderer.ParseFormat(c.Tasks.Format)
	return synth.Config{
		MaxRunning:      c.Tasks.MaxRunning,
		MaxQueue:        c.Tasks.MaxQueue,
		WordConcurrency: c.Tasks.WordConcurrency,
		Retention:       c.Tasks.Retention,
		CleanupInterval: c.Tasks.CleanupInterval,
		Layout:          c.Layout(),
		Format:          format,
	}
}

func (c *Config) CacheConfig() strokecache.Config {
	return strokecache.Config{Size: c.Cache.Size, TTL: c.Cache.TTL}
}

func (c *Config) ArtifactConfig() artifact.Config {
	s3 := c.Artifact.S3
	return artifact.Config{
		Backend: c.Artifact.Backend,
		Dir:     c.Artifact.Dir,
		S3: artifact.S3Config{
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			UseSSL:    s3.UseSSL,
		},
	}
}

// NewGenerator builds the configured handwriting generator.
func (c *Config) NewGenerator() generator.Generator {
	if strings.ToLower(c.Generator.Kind) == GeneratorRemote {
		return generator.NewRemote(c.Generator.Endpoint, c.Generator.Timeout)
	}
	g := generator.NewSynthetic()
	g.Latency = c.Generator.Latency
	return g
}

// Sheet returns the built-in styles, extended by the configured sheet file.
func (c *Config) Sheet() (*style.Sheet, error) {
	if c.StyleSheet == "" {
		return style.DefaultSheet(), nil
	}
	return style.LoadSheetFile(c.StyleSheet)
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
