// Package config loads greencity.yaml, layering file values over defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lox/greencity/internal/history"
	"github.com/lox/greencity/internal/ingest"
	"github.com/lox/greencity/internal/models"
)

const (
	DefaultPath                 = "greencity.yaml"
	DefaultDatabasePath         = "data/greencity.db"
	DefaultTargetScore          = 70.0
	DefaultHistoryDays          = 730
	DefaultServerAddr           = ":8080"
	DefaultTimezone             = "Europe/Copenhagen"
	DefaultPayloadRetentionDays = 90
)

type LocationConfig struct {
	Name      string  `yaml:"name,omitempty"`
	Latitude  float64 `yaml:"latitude,omitempty"`
	Longitude float64 `yaml:"longitude,omitempty"`
	Timezone  string  `yaml:"timezone,omitempty"`
}

type AirQualityConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	URL     string `yaml:"url,omitempty"`
}

type HistoryConfig struct {
	OutputDir string `yaml:"output_dir,omitempty"`
	Sampling  string `yaml:"sampling,omitempty"`
	Days      int    `yaml:"days,omitempty"`
}

type InstallationConfig struct {
	URL string `yaml:"url,omitempty"`
	ID  string `yaml:"id,omitempty"`
}

type Config struct {
	Location             LocationConfig     `yaml:"location,omitempty"`
	AirQuality           AirQualityConfig   `yaml:"air_quality,omitempty"`
	Weights              map[string]float64 `yaml:"weights,omitempty"`
	TargetScore          float64            `yaml:"target_score,omitempty"`
	DatabasePath         string             `yaml:"database_path,omitempty"`
	History              HistoryConfig      `yaml:"history,omitempty"`
	Installation         InstallationConfig `yaml:"installation,omitempty"`
	ServerAddr           string             `yaml:"server_addr,omitempty"`
	PayloadRetentionDays int                `yaml:"payload_retention_days,omitempty"`
}

// New returns the built-in defaults for Aarhus.
func New() *Config {
	enabled := true
	weights := make(map[string]float64)
	for d, w := range models.DefaultWeights() {
		weights[string(d)] = w
	}
	return &Config{
		Location: LocationConfig{
			Name:      "Aarhus",
			Latitude:  ingest.DefaultLatitude,
			Longitude: ingest.DefaultLongitude,
			Timezone:  DefaultTimezone,
		},
		AirQuality: AirQualityConfig{
			Enabled: &enabled,
			URL:     ingest.DefaultAirQualityURL,
		},
		Weights:      weights,
		TargetScore:  DefaultTargetScore,
		DatabasePath: DefaultDatabasePath,
		History: HistoryConfig{
			OutputDir: history.DefaultOutputDir,
			Sampling:  string(history.Daily),
			Days:      DefaultHistoryDays,
		},
		ServerAddr:           DefaultServerAddr,
		PayloadRetentionDays: DefaultPayloadRetentionDays,
	}
}

// Load reads path and merges it over the defaults. A missing file yields the
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	merge(cfg, &fileCfg)

	var explicit zeroable
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	explicit.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// zeroable holds the numeric fields where zero is a meaningful value, so a
// file can set them to 0 explicitly.
type zeroable struct {
	Location struct {
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
	} `yaml:"location"`
	TargetScore *float64 `yaml:"target_score"`
}

func (z zeroable) apply(dst *Config) {
	if z.Location.Latitude != nil {
		dst.Location.Latitude = *z.Location.Latitude
	}
	if z.Location.Longitude != nil {
		dst.Location.Longitude = *z.Location.Longitude
	}
	if z.TargetScore != nil {
		dst.TargetScore = *z.TargetScore
	}
}

func merge(dst, src *Config) {
	if src.Location.Name != "" {
		dst.Location.Name = src.Location.Name
	}
	if src.Location.Latitude != 0 {
		dst.Location.Latitude = src.Location.Latitude
	}
	if src.Location.Longitude != 0 {
		dst.Location.Longitude = src.Location.Longitude
	}
	if src.Location.Timezone != "" {
		dst.Location.Timezone = src.Location.Timezone
	}

	if src.AirQuality.Enabled != nil {
		dst.AirQuality.Enabled = src.AirQuality.Enabled
	}
	if src.AirQuality.URL != "" {
		dst.AirQuality.URL = src.AirQuality.URL
	}

	for name, w := range src.Weights {
		dst.Weights[name] = w
	}
	if src.TargetScore != 0 {
		dst.TargetScore = src.TargetScore
	}
	if src.DatabasePath != "" {
		dst.DatabasePath = src.DatabasePath
	}

	if src.History.OutputDir != "" {
		dst.History.OutputDir = src.History.OutputDir
	}
	if src.History.Sampling != "" {
		dst.History.Sampling = src.History.Sampling
	}
	if src.History.Days != 0 {
		dst.History.Days = src.History.Days
	}

	if src.Installation.URL != "" {
		dst.Installation.URL = src.Installation.URL
	}
	if src.Installation.ID != "" {
		dst.Installation.ID = src.Installation.ID
	}

	if src.ServerAddr != "" {
		dst.ServerAddr = src.ServerAddr
	}
	if src.PayloadRetentionDays != 0 {
		dst.PayloadRetentionDays = src.PayloadRetentionDays
	}
}

func (c *Config) Validate() error {
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", c.Location.Latitude)
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", c.Location.Longitude)
	}
	if _, err := c.TZ(); err != nil {
		return err
	}
	if _, err := c.ModelWeights(); err != nil {
		return err
	}
	if c.TargetScore < 0 || c.TargetScore > 100 {
		return fmt.Errorf("target_score %v outside 0-100", c.TargetScore)
	}
	if _, err := history.ParseSampling(c.History.Sampling); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if c.History.Days < 0 {
		return fmt.Errorf("history days %d is negative", c.History.Days)
	}
	if c.PayloadRetentionDays < 0 {
		return fmt.Errorf("payload_retention_days %d is negative", c.PayloadRetentionDays)
	}
	return nil
}

func (c *Config) TZ() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Location.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Location.Timezone, err)
	}
	return loc, nil
}

// ModelWeights converts the configured weights, rejecting unknown dimensions.
func (c *Config) ModelWeights() (models.Weights, error) {
	w := make(models.Weights, len(c.Weights))
	for name, v := range c.Weights {
		d, err := models.ParseDimension(name)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}
		w[d] = v
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	return w, nil
}

func (c *Config) AirQualityEnabled() bool {
	return c.AirQuality.Enabled == nil || *c.AirQuality.Enabled
}
