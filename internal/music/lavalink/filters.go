package lavalink

import (
	"fmt"
	"slices"
	"strings"
)

type Preset string

const (
	PresetFlat  Preset = "flat"
	PresetBoost Preset = "boost"
	PresetMetal Preset = "metal"
	PresetPiano Preset = "piano"
)

const bandCount = 15

var Presets = []Preset{PresetFlat, PresetBoost, PresetMetal, PresetPiano}

var presetGains = map[Preset][]float64{
	PresetFlat:  make([]float64, bandCount),
	PresetBoost: {-0.075, 0.125, 0.125, 0.1, 0.1, 0.05, 0.075, 0, 0, 0, 0, 0, 0.125, 0.15, 0.05},
	PresetMetal: {0, 0.1, 0.1, 0.15, 0.13, 0.1, 0, 0.125, 0.175, 0.175, 0.125, 0.125, 0.1, 0.075, 0},
	PresetPiano: {-0.25, -0.25, -0.125, 0, 0.25, 0.25, 0, -0.25, -0.25, 0, 0, 0.5, 0.25, -0.025, 0},
}

// ParsePreset accepts preset names case-insensitively.
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Presets, p) {
		return "", fmt.Errorf("unknown equalizer preset %q", s)
	}
	return p, nil
}

// Bands returns the 15-band equalizer for the preset.
func (p Preset) Bands() []Band {
	gains, ok := presetGains[p]
	if !ok {
		gains = presetGains[PresetFlat]
	}
	bands := make([]Band, len(gains))
	for i, g := range gains {
		bands[i] = Band{Band: i, Gain: g}
	}
	return bands
}

func (p Preset) String() string {
	if p == "" {
		return string(PresetFlat)
	}
	return string(p)
}
