package worker

import "fmt"

// Config is the resolved per-session processing configuration.
type Config struct {
	// Step samples every N-th frame.
	Step int `json:"step"`
	// MinConf is the aggregator's validity threshold, 0..1.
	MinConf float64 `json:"min_conf"`
	// SmartSkip drops visually static ROI frames.
	SmartSkip bool `json:"smart_skip"`
	// DenoiseStrength of 0 disables denoising.
	DenoiseStrength float64 `json:"denoise_strength"`
	// ScaleFactor upsamples the ROI before recognition.
	ScaleFactor float64 `json:"scale_factor"`
}

// Preset names accepted by the processing API.
const (
	PresetBalance        = "balance"
	PresetSpeed          = "speed"
	PresetQuality        = "quality"
	PresetHardLowQuality = "hard_low_quality"
)

var presets = map[string]Config{
	PresetBalance:        {Step: 2, MinConf: 0.80, SmartSkip: true, DenoiseStrength: 3, ScaleFactor: 2.0},
	PresetSpeed:          {Step: 4, MinConf: 0.70, SmartSkip: true, DenoiseStrength: 0, ScaleFactor: 1.5},
	PresetQuality:        {Step: 1, MinConf: 0.85, SmartSkip: false, DenoiseStrength: 5, ScaleFactor: 2.5},
	PresetHardLowQuality: {Step: 2, MinConf: 0.60, SmartSkip: true, DenoiseStrength: 7, ScaleFactor: 3.0},
}

// Presets returns the available preset configurations keyed by name.
func Presets() map[string]Config {
	out := make(map[string]Config, len(presets))
	for k, v := range presets {
		out[k] = v
	}
	return out
}

// PresetConfig resolves a preset name, defaulting to balance for an
// empty or unknown name.
func PresetConfig(name string) Config {
	if cfg, ok := presets[name]; ok {
		return cfg
	}
	return presets[PresetBalance]
}

// Overrides are the optional per-request deviations from a preset.
// Nil fields keep the preset's value.
type Overrides struct {
	Step            *int     `json:"step,omitempty"`
	MinConf         *float64 `json:"min_conf,omitempty"`
	SmartSkip       *bool    `json:"smart_skip,omitempty"`
	DenoiseStrength *float64 `json:"denoise_strength,omitempty"`
	ScaleFactor     *float64 `json:"scale_factor,omitempty"`
}

// Resolve merges overrides onto the named preset and validates the
// result.
func Resolve(preset string, o Overrides) (Config, error) {
	cfg := PresetConfig(preset)
	if o.Step != nil {
		cfg.Step = *o.Step
	}
	if o.MinConf != nil {
		cfg.MinConf = *o.MinConf
	}
	if o.SmartSkip != nil {
		cfg.SmartSkip = *o.SmartSkip
	}
	if o.DenoiseStrength != nil {
		cfg.DenoiseStrength = *o.DenoiseStrength
	}
	if o.ScaleFactor != nil {
		cfg.ScaleFactor = *o.ScaleFactor
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Step < 1 || c.Step > 10 {
		return fmt.Errorf("step %d out of range [1,10]", c.Step)
	}
	if c.MinConf < 0 || c.MinConf > 1 {
		return fmt.Errorf("min_conf %.2f out of range [0,1]", c.MinConf)
	}
	if c.DenoiseStrength < 0 || c.DenoiseStrength > 10 {
		return fmt.Errorf("denoise_strength %.1f out of range [0,10]", c.DenoiseStrength)
	}
	if c.ScaleFactor < 1 || c.ScaleFactor > 4 {
		return fmt.Errorf("scale_factor %.2f out of range [1,4]", c.ScaleFactor)
	}
	return nil
}
