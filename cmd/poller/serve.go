package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github/martinmaurice/apipoller/internal/poller"
	"github/martinmaurice/apipoller/internal/server"
	"github/martinmaurice/apipoller/pkg/auth"
	"github/martinmaurice/apipoller/pkg/config"
	"github/martinmaurice/apipoller/pkg/enum"
	"github/martinmaurice/apipoller/pkg/env"
	"github/martinmaurice/apipoller/pkg/gbgcamera"
	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/scheduler"
	"github/martinmaurice/apipoller/pkg/schoolmeal"
	"github/martinmaurice/apipoller/pkg/sink"
	"github/martinmaurice/apipoller/pkg/vasttrafik"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start polling",
	Long: `Start polling every configured source and publishing to Redis.

Credentials and the Redis address are read from APP_* environment
variables, optionally loaded from an env file first. A source without
credentials is skipped. A status API is served on APP_SERVER_PORT.

The poller runs until interrupted (Ctrl+C) or receives SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("env", "", "env file to load before reading the environment")
	serveCmd.Flags().StringP("config", "c", "", "path to config file (defaults to APP_CONFIG_FILE)")
	serveCmd.Flags().Bool("debug", false, "log at debug level in text format")
	serveCmd.Flags().Bool("disable-rate-limiter", false, "disable the status API rate limiter")
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func runServe(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)
	slog.SetDefault(logger)

	if envFile, _ := cmd.Flags().GetString("env"); envFile != "" {
		logger.Info("loading env file", "path", envFile)
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("could not load the env file: %w", err)
		}
	}

	envObj, err := env.Load()
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile = envObj.ConfigFile
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Info("config loaded", "path", configFile, "version", envObj.Version, "env", envObj.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := sink.NewRedisClient(envObj)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", envObj.RedisAddr, err)
	}
	store := sink.NewRedisStore(rdb, sink.WithLogger(logger))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	registry := poller.NewRegistry()
	sched := scheduler.New(scheduler.WithLogger(logger), scheduler.WithLocation(vasttrafik.Stockholm))

	var jobs poller.Jobs

	if envObj.VasttrafikConsumerKey == "" || envObj.VasttrafikConsumerSecret == "" {
		logger.Warn("no västtrafik credentials, skipping source", "source", enum.Vasttrafik)
	} else {
		requester, err := rate_limiter.NewFromConfig(string(enum.Vasttrafik), cfg.Vasttrafik.Throttle,
			rate_limiter.WithHTTPClient(httpClient), rate_limiter.WithLogger(logger))
		if err != nil {
			return err
		}
		tokens := auth.New(cfg.Vasttrafik.AccessTokenURL, envObj.VasttrafikConsumerKey, envObj.VasttrafikConsumerSecret,
			auth.WithHTTPClient(httpClient), auth.WithLogger(logger))
		client := vasttrafik.NewClient(requester, tokens, vasttrafik.WithBaseURL(cfg.Vasttrafik.BaseURL))

		stops := vasttrafik.NewStopList(stopDescriptors(cfg.Vasttrafik.Stops))
		watcher := poller.NewStopsWatcher(store, cfg.Vasttrafik.StopsKey, stops, logger)
		go watcher.Run(ctx)

		jobs.Departures = poller.NewDeparturesJob(client, stops, store,
			registry.Register(enum.Vasttrafik, requester), cfg.Vasttrafik.TimeSpan, logger)
	}

	if envObj.SchoolmealClient == "" || len(cfg.Schoolmeal.Schools) == 0 {
		logger.Warn("no skolmaten client or schools, skipping source", "source", enum.Schoolmeal)
	} else {
		requester, err := rate_limiter.NewFromConfig(string(enum.Schoolmeal), cfg.Schoolmeal.Throttle,
			rate_limiter.WithHTTPClient(httpClient), rate_limiter.WithLogger(logger))
		if err != nil {
			return err
		}
		opts := []schoolmeal.Option{schoolmeal.WithBaseURL(cfg.Schoolmeal.BaseURL)}
		if envObj.SchoolmealVersionToken != "" {
			opts = append(opts, schoolmeal.WithVersionToken(envObj.SchoolmealVersionToken))
		}
		client := schoolmeal.NewClient(requester, envObj.SchoolmealClient, opts...)

		jobs.Menu = poller.NewMenuJob(client, cfg.Schoolmeal.Schools, store,
			registry.Register(enum.Schoolmeal, requester), logger)
	}

	if envObj.GbgcameraApiKey == "" || len(cfg.GBGCamera.Cameras) == 0 {
		logger.Warn("no camera api key or cameras, skipping source", "source", enum.GBGCamera)
	} else {
		requester, err := rate_limiter.NewFromConfig(string(enum.GBGCamera), cfg.GBGCamera.Throttle,
			rate_limiter.WithHTTPClient(httpClient), rate_limiter.WithLogger(logger))
		if err != nil {
			return err
		}
		client := gbgcamera.NewClient(requester, envObj.GbgcameraApiKey, gbgcamera.WithBaseURL(cfg.GBGCamera.BaseURL))

		jobs.Camera = poller.NewCameraJob(client, cfg.GBGCamera.Cameras, sink.NewDiskImageStore(cfg.ImageDir), store,
			registry.Register(enum.GBGCamera, requester), vasttrafik.Stockholm, logger)
	}

	if jobs == (poller.Jobs{}) {
		return fmt.Errorf("no source is configured")
	}

	poller.Schedule(sched, cfg, jobs)
	sched.Start(ctx)
	defer sched.Stop()

	disableRateLimiter, _ := cmd.Flags().GetBool("disable-rate-limiter")
	srv := server.NewServer(registry, envObj, server.WithDisableRateLimiter(disableRateLimiter))
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func stopDescriptors(stops []config.StopConfig) []vasttrafik.StopDescriptor {
	descriptors := make([]vasttrafik.StopDescriptor, 0, len(stops))
	for _, s := range stops {
		descriptors = append(descriptors, vasttrafik.StopDescriptor{
			ID:       s.ID,
			Key:      s.Key,
			Active:   s.Active,
			TimeSpan: s.TimeSpan,
		})
	}
	return descriptors
}
