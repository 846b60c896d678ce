package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"qtermstep/quantum"
)

// fileConfig is the optional YAML configuration. Zero fields keep the
// simulator defaults.
//
//	epsilon: 1e-6
//	prune_epsilon: 1e-9
//	seed: 42
//	max_attempts: 8
//	log_level: debug
//	log_file: qtermstep.log
//	time_format: "%Y-%m-%d %H:%M:%S"
type fileConfig struct {
	Epsilon      float64 `yaml:"epsilon"`
	PruneEpsilon float64 `yaml:"prune_epsilon"`
	Seed         *int64  `yaml:"seed"`
	MaxAttempts  int     `yaml:"max_attempts"`
	LogLevel     string  `yaml:"log_level"`
	LogFile      string  `yaml:"log_file"`
	// TimeFormat is a strftime layout for the batch report timestamp.
	TimeFormat string `yaml:"time_format"`
}

// loadConfig reads path. A missing path yields an empty config.
func loadConfig(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := fc.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return fc, nil
}

func (fc *fileConfig) validate() error {
	if fc.Epsilon < 0 || fc.PruneEpsilon < 0 {
		return &quantum.Error{Kind: quantum.ValueOutOfRange, Op: "config", Detail: "tolerances must not be negative", Params: []any{fc.Epsilon, fc.PruneEpsilon}}
	}
	if fc.MaxAttempts < 0 {
		return &quantum.Error{Kind: quantum.ValueOutOfRange, Op: "config", Detail: "max_attempts must not be negative", Params: []any{fc.MaxAttempts}}
	}
	if fc.LogLevel != "" {
		if _, err := log.ParseLevel(fc.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// apply copies the set fields onto cfg.
func (fc *fileConfig) apply(cfg *quantum.Config) {
	if fc.Epsilon > 0 {
		cfg.Epsilon = fc.Epsilon
	}
	if fc.PruneEpsilon > 0 {
		cfg.PruneEpsilon = fc.PruneEpsilon
	}
	if fc.Seed != nil {
		cfg.Seed = *fc.Seed
	}
	if fc.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.MaxAttempts
	}
}
