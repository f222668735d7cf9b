// Package config loads the knobs of a training run.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Optimizer names.
const (
	AdaGrad = "adagrad"
	RMSProp = "rmsprop"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	FrameBatch string  `yaml:"frame_batch"`
	LabelBatch string  `yaml:"label_batch"`
	LabelSet   string  `yaml:"label_set"`
	Param      string  `yaml:"param"`
	Output     string  `yaml:"output"`
	Optimizer  string  `yaml:"optimizer"`
	StepSize   float64 `yaml:"step_size"`
	Decay      float64 `yaml:"decay"`
	Epochs     int     `yaml:"epochs"`
	Subsample  int     `yaml:"subsample"`
	LogEvery   int     `yaml:"log_every"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	FrameBatch string
	LabelBatch string
	LabelSet   string
	Param      string
	Output     string
	Optimizer  string
	StepSize   float64
	Decay      float64
	Epochs     int
	Subsample  int
	LogEvery   int
}

// Default returns a config with every optional knob set.
func Default() *Config {
	return &Config{
		Optimizer: AdaGrad,
		StepSize:  0.01,
		Decay:     0.9,
		Epochs:    1,
		Subsample: 1,
		LogEvery:  100,
	}
}

// Load reads a Config from YAML on top of Default. Unknown keys are errors.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config path is supplied by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Parse decodes a YAML config from r on top of Default.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.FrameBatch != "" {
		c.FrameBatch = o.FrameBatch
	}
	if o.LabelBatch != "" {
		c.LabelBatch = o.LabelBatch
	}
	if o.LabelSet != "" {
		c.LabelSet = o.LabelSet
	}
	if o.Param != "" {
		c.Param = o.Param
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Optimizer != "" {
		c.Optimizer = o.Optimizer
	}
	if o.StepSize > 0 {
		c.StepSize = o.StepSize
	}
	if o.Decay > 0 {
		c.Decay = o.Decay
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.Subsample > 0 {
		c.Subsample = o.Subsample
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.FrameBatch == "" || c.LabelBatch == "" || c.LabelSet == "" {
		return errors.New("frame_batch, label_batch and label_set must be set")
	}
	if c.Param == "" {
		return errors.New("param must be set")
	}
	if c.Output == "" {
		c.Output = c.Param
	}
	switch c.Optimizer {
	case AdaGrad:
	case RMSProp:
		if c.Decay < 0 || c.Decay >= 1 {
			return fmt.Errorf("decay must be in [0, 1) (got %v)", c.Decay)
		}
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.StepSize <= 0 {
		return fmt.Errorf("step_size must be > 0 (got %v)", c.StepSize)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.Subsample <= 0 {
		return fmt.Errorf("subsample must be > 0 (got %d)", c.Subsample)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 100
	}
	return nil
}
