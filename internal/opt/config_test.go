package opt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"negative iterations": func(c *Config) { c.MaxIterations = -1 },
		"zero tenure":         func(c *Config) { c.BaseTenure = 0 },
		"zero sample":         func(c *Config) { c.NeighborhoodSampleSize = 0 },
		"no workers":          func(c *Config) { c.Workers = 0 },
		"unknown fallback":    func(c *Config) { c.Fallback = "panic" },
		"unknown insertion":   func(c *Config) { c.InitialInsertion = "best" },
	} {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrConfig)
		})
	}
}

func TestConfigOverride(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Override(map[string]any{
		"baseTenure":      float64(12),
		"maxRunTime":      "1500ms",
		"fallback":        "stop",
		"stopOnAllServed": true,
	}))
	assert.Equal(t, 12, c.BaseTenure)
	assert.Equal(t, 1500*time.Millisecond, c.MaxRunTime)
	assert.Equal(t, FallbackStop, c.Fallback)
	assert.True(t, c.StopOnAllServed)
	assert.Equal(t, DefaultConfig().TenureJitter, c.TenureJitter, "untouched keys keep their value")

	before := c
	assert.ErrorIs(t, c.Override(map[string]any{"temperature": 1}), ErrConfig)
	assert.ErrorIs(t, c.Override(map[string]any{"maxRunTime": 3}), ErrConfig)
	assert.ErrorIs(t, c.Override(map[string]any{"maxRunTime": "soon"}), ErrConfig)
	assert.Equal(t, before.BaseTenure, c.BaseTenure)
	require.NoError(t, c.Override(nil))
}
