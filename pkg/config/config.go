package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github/martinmaurice/apipoller/pkg/enum"
)

var (
	FileReadErr   = errors.New("could not read config file")
	ValidationErr = errors.New("invalid config")
)

const minPollInterval = time.Second

type throttleRawConfig struct {
	Algorithm      string        `mapstructure:"algorithm"`
	Capacity       int           `mapstructure:"capacity"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
	LeakRate       float64       `mapstructure:"leak_rate"`
}

type stopRawConfig struct {
	ID       string `mapstructure:"id"`
	Key      string `mapstructure:"key"`
	Active   *bool  `mapstructure:"active"`
	TimeSpan int    `mapstructure:"time_span"`
}

type rawConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	ImageDir    string        `mapstructure:"image_dir"`
	Sources     struct {
		Vasttrafik struct {
			Throttle       throttleRawConfig `mapstructure:"throttle"`
			PollInterval   time.Duration     `mapstructure:"poll_interval"`
			BaseURL        string            `mapstructure:"base_url"`
			AccessTokenURL string            `mapstructure:"access_token_url"`
			TimeSpan       int               `mapstructure:"time_span"`
			StopsKey       string            `mapstructure:"stops_key"`
			Stops          []stopRawConfig   `mapstructure:"stops"`
		} `mapstructure:"vasttrafik"`
		Schoolmeal struct {
			Throttle       throttleRawConfig `mapstructure:"throttle"`
			PollInterval   time.Duration     `mapstructure:"poll_interval"`
			BaseURL        string            `mapstructure:"base_url"`
			Schools        []string          `mapstructure:"schools"`
			ForceRefreshAt string            `mapstructure:"force_refresh_at"`
		} `mapstructure:"schoolmeal"`
		GBGCamera struct {
			Throttle           throttleRawConfig `mapstructure:"throttle"`
			PollInterval       time.Duration     `mapstructure:"poll_interval"`
			BaseURL            string            `mapstructure:"base_url"`
			Cameras            []int             `mapstructure:"cameras"`
			CatalogueRefreshAt string            `mapstructure:"catalogue_refresh_at"`
		} `mapstructure:"gbgcamera"`
	} `mapstructure:"sources"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("image_dir", "./images")

	v.SetDefault("sources.vasttrafik.throttle.algorithm", enum.TokenBucket.String())
	v.SetDefault("sources.vasttrafik.throttle.capacity", 40)
	v.SetDefault("sources.vasttrafik.throttle.refill_interval", "60s")
	v.SetDefault("sources.vasttrafik.poll_interval", "10s")
	v.SetDefault("sources.vasttrafik.base_url", "https://api.vasttrafik.se/bin/rest.exe/v2")
	v.SetDefault("sources.vasttrafik.access_token_url", "https://api.vasttrafik.se/token")
	v.SetDefault("sources.vasttrafik.time_span", 60)
	v.SetDefault("sources.vasttrafik.stops_key", "vasttrafik/stops")

	v.SetDefault("sources.schoolmeal.throttle.algorithm", enum.TokenBucket.String())
	v.SetDefault("sources.schoolmeal.throttle.capacity", 2)
	v.SetDefault("sources.schoolmeal.throttle.refill_interval", "12s")
	v.SetDefault("sources.schoolmeal.poll_interval", "30m")
	v.SetDefault("sources.schoolmeal.base_url", "https://skolmaten.se/api/3")
	v.SetDefault("sources.schoolmeal.force_refresh_at", "00:00:00")

	v.SetDefault("sources.gbgcamera.throttle.algorithm", enum.TokenBucket.String())
	v.SetDefault("sources.gbgcamera.throttle.capacity", 2)
	v.SetDefault("sources.gbgcamera.throttle.refill_interval", "60s")
	v.SetDefault("sources.gbgcamera.poll_interval", "30s")
	v.SetDefault("sources.gbgcamera.base_url", "http://data.goteborg.se/TrafficCamera/v0.2")
	v.SetDefault("sources.gbgcamera.catalogue_refresh_at", "03:00:00")
}

type ThrottleConfig struct {
	Algorithm      enum.Algorithm
	Capacity       int
	RefillInterval time.Duration // Token Bucket Specific
	LeakRate       float64       // Leaky Bucket Specific
}

func (t ThrottleConfig) validate() error {
	if t.Capacity <= 0 {
		return errors.New("capacity must not be less than or equal to zero")
	}

	if t.Algorithm == enum.TokenBucket && t.RefillInterval <= 0 {
		return errors.New("refill_interval must not be less than or equal to zero")
	}

	if t.Algorithm == enum.LeakyBucket && t.LeakRate <= 0 {
		return errors.New("leak_rate must not be less than or equal to zero")
	}

	return nil
}

// SourceConfig is shared by every polled API.
type SourceConfig struct {
	Throttle     ThrottleConfig
	PollInterval time.Duration
	BaseURL      string
}

// TimeOfDay is a wall-clock time, HH:MM:SS.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(time.TimeOnly, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("time of day %q must be formatted HH:MM:SS", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

type StopConfig struct {
	ID       string
	Key      string
	Active   bool
	TimeSpan int
}

type VasttrafikConfig struct {
	SourceConfig
	AccessTokenURL string
	TimeSpan       int
	StopsKey       string
	Stops          []StopConfig
}

type SchoolmealConfig struct {
	SourceConfig
	Schools        []string
	ForceRefreshAt TimeOfDay
}

type GBGCameraConfig struct {
	SourceConfig
	Cameras            []int
	CatalogueRefreshAt TimeOfDay
}

type Config struct {
	HTTPTimeout time.Duration
	ImageDir    string
	Vasttrafik  VasttrafikConfig
	Schoolmeal  SchoolmealConfig
	GBGCamera   GBGCameraConfig
}

func parseThrottleConfig(rc throttleRawConfig) (ThrottleConfig, error) {
	algorithm, ok := enum.ParseAlgorithm(rc.Algorithm)
	if !ok {
		return ThrottleConfig{}, fmt.Errorf("unknown algorithm %q", rc.Algorithm)
	}

	t := ThrottleConfig{
		Algorithm: algorithm,
		Capacity:  rc.Capacity,
	}
	switch algorithm {
	case enum.TokenBucket:
		t.RefillInterval = rc.RefillInterval
	case enum.LeakyBucket:
		t.LeakRate = rc.LeakRate
	}

	return t, t.validate()
}

func parseSourceConfig(source enum.Source, throttle throttleRawConfig, pollInterval time.Duration, baseURL string) (SourceConfig, error) {
	t, err := parseThrottleConfig(throttle)
	if err != nil {
		return SourceConfig{}, fmt.Errorf("%w: sources.%s.throttle: %v", ValidationErr, source, err)
	}

	if pollInterval < minPollInterval {
		return SourceConfig{}, fmt.Errorf("%w: sources.%s.poll_interval must be at least %s", ValidationErr, source, minPollInterval)
	}

	if baseURL == "" {
		return SourceConfig{}, fmt.Errorf("%w: sources.%s.base_url is required", ValidationErr, source)
	}

	return SourceConfig{
		Throttle:     t,
		PollInterval: pollInterval,
		BaseURL:      baseURL,
	}, nil
}

func parseStops(raw []stopRawConfig) ([]StopConfig, error) {
	stops := make([]StopConfig, 0, len(raw))
	for i, rs := range raw {
		if rs.ID == "" {
			return nil, fmt.Errorf("%w: sources.vasttrafik.stops[%d].id is required", ValidationErr, i)
		}
		active := true
		if rs.Active != nil {
			active = *rs.Active
		}
		key := rs.Key
		if key == "" {
			key = rs.ID
		}
		stops = append(stops, StopConfig{
			ID:       rs.ID,
			Key:      key,
			Active:   active,
			TimeSpan: rs.TimeSpan,
		})
	}
	return stops, nil
}

func parseRawConfig(rc *rawConfig) (*Config, error) {
	var (
		cfg = Config{
			HTTPTimeout: rc.HTTPTimeout,
			ImageDir:    rc.ImageDir,
		}
		err error
	)

	vt := rc.Sources.Vasttrafik
	cfg.Vasttrafik.SourceConfig, err = parseSourceConfig(enum.Vasttrafik, vt.Throttle, vt.PollInterval, vt.BaseURL)
	if err != nil {
		return nil, err
	}
	if vt.AccessTokenURL == "" {
		return nil, fmt.Errorf("%w: sources.vasttrafik.access_token_url is required", ValidationErr)
	}
	if vt.TimeSpan <= 0 || vt.TimeSpan > 24*60 {
		return nil, fmt.Errorf("%w: sources.vasttrafik.time_span must be between 1 and 1440 minutes", ValidationErr)
	}
	cfg.Vasttrafik.AccessTokenURL = vt.AccessTokenURL
	cfg.Vasttrafik.TimeSpan = vt.TimeSpan
	cfg.Vasttrafik.StopsKey = vt.StopsKey
	if cfg.Vasttrafik.Stops, err = parseStops(vt.Stops); err != nil {
		return nil, err
	}

	sm := rc.Sources.Schoolmeal
	cfg.Schoolmeal.SourceConfig, err = parseSourceConfig(enum.Schoolmeal, sm.Throttle, sm.PollInterval, sm.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.Schoolmeal.Schools = sm.Schools
	if cfg.Schoolmeal.ForceRefreshAt, err = ParseTimeOfDay(sm.ForceRefreshAt); err != nil {
		return nil, fmt.Errorf("%w: sources.schoolmeal.force_refresh_at: %v", ValidationErr, err)
	}

	gc := rc.Sources.GBGCamera
	cfg.GBGCamera.SourceConfig, err = parseSourceConfig(enum.GBGCamera, gc.Throttle, gc.PollInterval, gc.BaseURL)
	if err != nil {
		return nil, err
	}
	cfg.GBGCamera.Cameras = gc.Cameras
	if cfg.GBGCamera.CatalogueRefreshAt, err = ParseTimeOfDay(gc.CatalogueRefreshAt); err != nil {
		return nil, fmt.Errorf("%w: sources.gbgcamera.catalogue_refresh_at: %v", ValidationErr, err)
	}

	if cfg.ImageDir == "" {
		return nil, fmt.Errorf("%w: image_dir is required", ValidationErr)
	}

	return &cfg, nil
}

// Load reads the YAML file at path. Unset keys fall back to the defaults of
// the public Västtrafik, Skolmaten and Göteborg traffic camera APIs.
func Load(path string) (*Config, error) {
	slog.Info("loading config", "path", path)

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", FileReadErr, err)
	}

	var rc rawConfig
	if err := v.Unmarshal(&rc); err != nil {
		return nil, fmt.Errorf("%w: %v", ValidationErr, err)
	}

	return parseRawConfig(&rc)
}
