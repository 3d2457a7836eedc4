package normalize

import (
	"testing"

	"github.com/buildparts/hwcompat/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAMExtractKitNotation(t *testing.T) {
	res := RAM{}.Extract("Corsair Vengeance 32GB (2x16GB) DDR5 6000MHz C36 Desktop RAM", nil, "")

	require.Equal(t, models.ComponentRAM, res.ComponentType)
	assert.Equal(t, "DDR5", res.Attributes[models.AttrMemoryType])
	assert.Equal(t, models.SourceTitle, res.Source)
	assert.InDelta(t, 0.90, res.Confidence, 1e-9)
	assert.Equal(t, 6000, res.Attributes[models.AttrMemoryMaxSpeedMHz])
	assert.Equal(t, 32, res.Attributes[models.AttrMemoryCapacityGB])
	assert.Equal(t, 2, res.Attributes[models.AttrMemoryModules])
}

func TestRAMExtractFromSpecs(t *testing.T) {
	res := RAM{}.Extract(
		"G.Skill Trident Z5 Desktop Memory",
		map[string]any{
			"Memory Type": "DDR5",
			"Speed":       "DDR5-6400",
			"Capacity":    "64GB (2x32GB)",
			"ECC":         "Non-ECC",
		},
		"",
	)

	assert.Equal(t, "DDR5", res.Attributes[models.AttrMemoryType])
	assert.Equal(t, models.SourceSpecs, res.Source)
	assert.InDelta(t, 0.95, res.Confidence, 1e-9)
	assert.Equal(t, 6400, res.Attributes[models.AttrMemoryMaxSpeedMHz])
	assert.Equal(t, 64, res.Attributes[models.AttrMemoryCapacityGB])
	assert.Equal(t, 2, res.Attributes[models.AttrMemoryModules])
	assert.Equal(t, false, res.Attributes[models.AttrECC])
}

func TestRAMSpeedNotations(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"DDR5-6000", 6000},
		{"DDR4 3200 MHz", 3200},
		{"PC5-48000", 6000},
		{"PC4-25600 module", 3200},
		{"plain 3600MHz", 3600},
		{"2666 MT/s", 2666},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := findRAMSpeed(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRAMTypeInferredFromSpeed(t *testing.T) {
	res := RAM{}.Extract("TeamGroup Elite 16GB 5600MHz Desktop Memory", nil, "")

	assert.Equal(t, "DDR5", res.Attributes[models.AttrMemoryType])
	assert.Equal(t, models.SourceInferred, res.Source)
	assert.InDelta(t, 0.80, res.Confidence, 1e-9)

	res = RAM{}.Extract("Value RAM 8GB 2666MHz", nil, "")
	assert.Equal(t, "DDR4", res.Attributes[models.AttrMemoryType])
	assert.Equal(t, models.SourceInferred, res.Source)
}

func TestRAMKitMismatchWarns(t *testing.T) {
	res := RAM{}.Extract("Broken Kit 32GB (2x8GB) DDR4 3200MHz", nil, "")

	assert.Equal(t, 32, res.Attributes[models.AttrMemoryCapacityGB])
	assert.Equal(t, 2, res.Attributes[models.AttrMemoryModules])
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "kit notation mismatch")
}

func TestRAMModulesFromChannelKeyword(t *testing.T) {
	res := RAM{}.Extract(
		"HyperX Fury 16GB DDR4 3200MHz",
		map[string]any{"Channel": "Dual Channel Kit"},
		"",
	)

	assert.Equal(t, 16, res.Attributes[models.AttrMemoryCapacityGB])
	assert.Equal(t, 2, res.Attributes[models.AttrMemoryModules])
}

func TestRAMECCUnknownWhenAbsent(t *testing.T) {
	res := RAM{}.Extract("Crucial 16GB DDR4 3200 Desktop Memory", nil, "")

	_, ok := res.Attributes[models.AttrECC]
	assert.False(t, ok, "absence of ECC text must stay unknown")
}

func TestRAMNoTypeSignal(t *testing.T) {
	res := RAM{}.Extract("Mystery Memory Stick", nil, "")

	assert.Equal(t, models.SourceNone, res.Source)
	assert.Zero(t, res.Confidence)
	assert.NotEmpty(t, res.Warnings)
}
