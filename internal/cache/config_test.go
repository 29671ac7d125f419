package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero ttl", func(c *Config) { c.DefaultTTL = 0 }, true},
		{"max age below ttl", func(c *Config) { c.MaxAge = time.Hour }, true},
		{"max age equal to ttl", func(c *Config) { c.MaxAge = c.DefaultTTL }, false},
		{"unbounded max age", func(c *Config) { c.MaxAge = 0 }, false},
		{"negative max age", func(c *Config) { c.MaxAge = -time.Hour }, true},
		{"negative size", func(c *Config) { c.MaxCacheSize = -1 }, true},
		{"unlimited size", func(c *Config) { c.MaxCacheSize = 0 }, false},
		{"zero concurrency", func(c *Config) { c.BackgroundConcurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigPatch_Merge(t *testing.T) {
	ttl := time.Hour
	remoteOff := false
	workers := 8

	merged := ConfigPatch{
		DefaultTTL:            &ttl,
		UseRemoteStorage:      &remoteOff,
		BackgroundConcurrency: &workers,
	}.Merge(DefaultConfig())

	assert.Equal(t, time.Hour, merged.DefaultTTL)
	assert.False(t, merged.UseRemoteStorage)
	assert.Equal(t, 8, merged.BackgroundConcurrency)
	assert.Equal(t, DefaultConfig().MaxAge, merged.MaxAge)
	assert.True(t, merged.UseLocalStorage)

	assert.Equal(t, DefaultConfig(), ConfigPatch{}.Merge(DefaultConfig()))
}

func TestConfigPatch_UnmarshalMilliseconds(t *testing.T) {
	var patch ConfigPatch
	require.NoError(t, json.Unmarshal([]byte(`{"defaultTtl": 3600000, "maxAge": 86400000, "enableCompression": false}`), &patch))

	require.NotNil(t, patch.DefaultTTL)
	assert.Equal(t, time.Hour, *patch.DefaultTTL)
	require.NotNil(t, patch.MaxAge)
	assert.Equal(t, 24*time.Hour, *patch.MaxAge)
	require.NotNil(t, patch.EnableCompression)
	assert.False(t, *patch.EnableCompression)
	assert.Nil(t, patch.MaxCacheSize)
	assert.Nil(t, patch.UseLocalStorage)

	assert.Error(t, json.Unmarshal([]byte(`{"defaultTtl": "1h"}`), &patch))
}

func TestConfig_MarshalMilliseconds(t *testing.T) {
	data, err := json.Marshal(DefaultConfig())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(86400000), decoded["defaultTtl"])
	assert.Equal(t, float64(365*86400000), decoded["maxAge"])
	assert.Equal(t, true, decoded["enableCompression"])
	assert.Equal(t, float64(4), decoded["backgroundConcurrency"])
}
