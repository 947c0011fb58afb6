package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Resize filter names accepted in ModelConfig.ResizeFilter.
const (
	FilterCatmullRom = "catmull_rom"
	FilterLanczos    = "lanczos"
	FilterBicubic    = "bicubic"
	FilterMitchell   = "mitchell"
	FilterLanczos3   = "lanczos3"
)

var knownFilters = map[string]bool{
	"":               true,
	FilterCatmullRom: true,
	FilterLanczos:    true,
	FilterBicubic:    true,
	FilterMitchell:   true,
	FilterLanczos3:   true,
}

// LoadConfig reads and validates the model's companion JSON document.
func LoadConfig(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("%w: failed to read config: %w", ErrConfigParse, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a ModelConfig from JSON. Unknown fields are rejected so
// a config written for a different schema fails loudly.
func ParseConfig(data []byte) (ModelConfig, error) {
	var cfg ModelConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return ModelConfig{}, fmt.Errorf("%w: %w", ErrConfigParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the pipeline relies on.
func (c ModelConfig) Validate() error {
	switch {
	case c.InChannels <= 0:
		return fmt.Errorf("%w: in_channels must be > 0, got %d", ErrConfigParse, c.InChannels)
	case c.MaxSide < 0:
		return fmt.Errorf("%w: max_side must be >= 0, got %d", ErrConfigParse, c.MaxSide)
	case c.PadMultiple < 0:
		return fmt.Errorf("%w: pad_multiple must be >= 0, got %d", ErrConfigParse, c.PadMultiple)
	case !knownFilters[c.ResizeFilter]:
		return fmt.Errorf("%w: unknown resize_filter %q", ErrConfigParse, c.ResizeFilter)
	}
	return c.Decode.Validate()
}

func (d DecodeConfig) Validate() error {
	switch {
	case d.PerChannelTopK < 0:
		return fmt.Errorf("%w: per_channel_topk must be >= 0, got %d", ErrConfigParse, d.PerChannelTopK)
	case d.MaxPeaks < 0:
		return fmt.Errorf("%w: max_peaks must be >= 0, got %d", ErrConfigParse, d.MaxPeaks)
	case d.FallbackTopK < 0:
		return fmt.Errorf("%w: fallback_topk must be >= 0, got %d", ErrConfigParse, d.FallbackTopK)
	}
	return nil
}
