package config

import (
	"fmt"
	"os"
	"sync"

	"sigs.k8s.io/yaml"
)

// Config holds tunable thresholds for insight scoring and diff
// reporting, plus palette overrides for the renderers.
type Config struct {
	Insights InsightConfig     `json:"insights"`
	Diff     DiffConfig        `json:"diff"`
	Palette  map[string]string `json:"palette,omitempty"`
}

// InsightConfig defines thresholds for insight generation.
type InsightConfig struct {
	HotStageCriticalPercent float64 `json:"hot_stage_critical_percent"`
	HotStageWarningPercent  float64 `json:"hot_stage_warning_percent"`
	ShuffleWarnPartitions   int     `json:"shuffle_warn_partitions"`
	SpillWarningBytes       int64   `json:"spill_warning_bytes"`
	SpillCriticalBytes      int64   `json:"spill_critical_bytes"`
	MaxMessages             int     `json:"max_messages"`
}

// DiffConfig defines thresholds for diff summaries.
type DiffConfig struct {
	MinRowsDelta     int64   `json:"min_rows_delta"`
	MinDurationMs    float64 `json:"min_duration_ms"`
	MinPercentChange float64 `json:"min_percent_change"`
	MaxItems         int     `json:"max_items"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Insights: InsightConfig{
			HotStageCriticalPercent: 0.40,
			HotStageWarningPercent:  0.20,
			ShuffleWarnPartitions:   1000,
			SpillWarningBytes:       64 << 20,
			SpillCriticalBytes:      1 << 30,
			MaxMessages:             8,
		},
		Diff: DiffConfig{
			MinRowsDelta:     1000,
			MinDurationMs:    50,
			MinPercentChange: 5.0,
			MaxItems:         8,
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Apply loads configuration from the provided path. Both YAML and JSON
// documents are accepted. An empty path resets to the defaults.
func Apply(path string) error {
	if path == "" {
		Use(Default())
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	Use(cfg)
	return nil
}
