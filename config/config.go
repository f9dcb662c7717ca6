// ytblog/config/config.go
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	BaseURL     string `mapstructure:"BASE"`
	RoutePrefix string `mapstructure:"ROUTE_PREFIX"`
	PublicURL   string `mapstructure:"PUBLIC_URL"`

	DBPath        string `mapstructure:"DB_PATH"`
	StorageDir    string `mapstructure:"STORAGE_DIR"`
	StorageFolder string `mapstructure:"STORAGE_FOLDER"`

	YtDlpBin        string        `mapstructure:"YTDLP_BIN"`
	YtDlpExtraArgs  string        `mapstructure:"YTDLP_EXTRA_ARGS"`
	DownloadEnabled bool          `mapstructure:"DOWNLOAD_ENABLED"`
	JobTimeout      time.Duration `mapstructure:"JOB_TIMEOUT"`
	DownloadTimeout time.Duration `mapstructure:"DOWNLOAD_TIMEOUT"`
	FinalizeTimeout time.Duration `mapstructure:"FINALIZE_TIMEOUT"`
	DownloadRetries int           `mapstructure:"DOWNLOAD_RETRIES"`
	DownloadBackoff time.Duration `mapstructure:"DOWNLOAD_BACKOFF"`
	MaxConcurrency  int           `mapstructure:"MAX_CONCURRENCY"`

	FFBin          string        `mapstructure:"FF_BIN"`
	ThumbnailSizes []int         `mapstructure:"THUMBNAIL_SIZES"`
	MaxCoverSize   int64         `mapstructure:"MAX_COVER_SIZE"`
	CoverTimeout   time.Duration `mapstructure:"COVER_TIMEOUT"`
	ThumbBaseURL   string        `mapstructure:"THUMB_BASE_URL"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// stringToDurationHookFunc parses Go duration strings such as "2h" or "12m3s".
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable sizes such as "200MB".
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		err := size.UnmarshalText([]byte(data.(string)))
		if err != nil {
			// Not a size string, let other parsers handle it.
			return data, nil
		}

		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")
	vp.SetDefault("ROUTE_PREFIX", "/api/youtube")
	vp.SetDefault("PUBLIC_URL", "/storage")
	vp.SetDefault("DB_PATH", "data/ytblog.db")
	vp.SetDefault("STORAGE_DIR", "data/attachments")
	vp.SetDefault("STORAGE_FOLDER", "blog")
	vp.SetDefault("YTDLP_BIN", "yt-dlp")
	vp.SetDefault("YTDLP_EXTRA_ARGS", "")
	vp.SetDefault("DOWNLOAD_ENABLED", true)
	vp.SetDefault("JOB_TIMEOUT", "2h")
	vp.SetDefault("DOWNLOAD_TIMEOUT", "1h58m20s")
	vp.SetDefault("FINALIZE_TIMEOUT", "1m")
	vp.SetDefault("DOWNLOAD_RETRIES", 2)
	vp.SetDefault("DOWNLOAD_BACKOFF", "30s")
	vp.SetDefault("MAX_CONCURRENCY", 1)
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("THUMBNAIL_SIZES", []int{150, 300, 600})
	vp.SetDefault("MAX_COVER_SIZE", "10MB")
	vp.SetDefault("COVER_TIMEOUT", "30s")
	vp.SetDefault("THUMB_BASE_URL", "https://i.ytimg.com/vi")
	vp.SetDefault("THROTTLE_CPU", 10.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "1GB")
	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_FORMAT", "json")

	vp.SetConfigName("ytblog_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/ytblog/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("YTBLOG")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// Hooks run in order, each one receiving the previous hook's output.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, err
	}
	if cfg.DownloadTimeout >= cfg.JobTimeout {
		return nil, fmt.Errorf("DOWNLOAD_TIMEOUT (%s) must be shorter than JOB_TIMEOUT (%s)",
			cfg.DownloadTimeout, cfg.JobTimeout)
	}

	return &cfg, nil
}
