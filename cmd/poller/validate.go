package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github/martinmaurice/apipoller/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an apipoller configuration file without polling anything.

The resolved configuration, defaults included, is printed as YAML.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

type (
	throttleSummary struct {
		Algorithm      string  `yaml:"algorithm"`
		Capacity       int     `yaml:"capacity"`
		RefillInterval string  `yaml:"refill_interval,omitempty"`
		LeakRate       float64 `yaml:"leak_rate,omitempty"`
	}
	sourceSummary struct {
		BaseURL      string          `yaml:"base_url"`
		PollInterval string          `yaml:"poll_interval"`
		Throttle     throttleSummary `yaml:"throttle"`
		Stops        int             `yaml:"stops,omitempty"`
		Schools      []string        `yaml:"schools,omitempty"`
		Cameras      []int           `yaml:"cameras,omitempty"`
		Daily        string          `yaml:"daily,omitempty"`
	}
	configSummary struct {
		HTTPTimeout string                   `yaml:"http_timeout"`
		ImageDir    string                   `yaml:"image_dir"`
		Sources     map[string]sourceSummary `yaml:"sources"`
	}
)

func summarizeSource(sc config.SourceConfig) sourceSummary {
	t := throttleSummary{
		Algorithm: sc.Throttle.Algorithm.String(),
		Capacity:  sc.Throttle.Capacity,
		LeakRate:  sc.Throttle.LeakRate,
	}
	if sc.Throttle.RefillInterval > 0 {
		t.RefillInterval = sc.Throttle.RefillInterval.String()
	}
	return sourceSummary{
		BaseURL:      sc.BaseURL,
		PollInterval: sc.PollInterval.String(),
		Throttle:     t,
	}
}

func summarize(cfg *config.Config) configSummary {
	vt := summarizeSource(cfg.Vasttrafik.SourceConfig)
	vt.Stops = len(cfg.Vasttrafik.Stops)

	sm := summarizeSource(cfg.Schoolmeal.SourceConfig)
	sm.Schools = cfg.Schoolmeal.Schools
	sm.Daily = cfg.Schoolmeal.ForceRefreshAt.String()

	gc := summarizeSource(cfg.GBGCamera.SourceConfig)
	gc.Cameras = cfg.GBGCamera.Cameras
	gc.Daily = cfg.GBGCamera.CatalogueRefreshAt.String()

	return configSummary{
		HTTPTimeout: cfg.HTTPTimeout.String(),
		ImageDir:    cfg.ImageDir,
		Sources: map[string]sourceSummary{
			"vasttrafik": vt,
			"schoolmeal": sm,
			"gbgcamera":  gc,
		},
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out, err := yaml.Marshal(summarize(cfg))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Config is valid!")
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}
