package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "defaults in debug mode are valid",
			mutate:  func(c *Config) { c.Debug = true },
			wantErr: false,
		},
		{
			name:        "default jwt secret outside debug is rejected",
			mutate:      func(c *Config) {},
			wantErr:     true,
			errContains: "default jwt.secret",
		},
		{
			name: "custom jwt secret outside debug is valid",
			mutate: func(c *Config) {
				c.JWT.Secret = "a-real-secret"
			},
			wantErr: false,
		},
		{
			name:        "port out of range",
			mutate:      func(c *Config) { c.Debug = true; c.WebDAV.Port = 0 },
			wantErr:     true,
			errContains: "port",
		},
		{
			name:        "prefix must be rooted",
			mutate:      func(c *Config) { c.Debug = true; c.WebDAV.Prefix = "dav" },
			wantErr:     true,
			errContains: "prefix",
		},
		{
			name:        "zero cache size rejected",
			mutate:      func(c *Config) { c.Debug = true; c.Cache.MaxSize = 0 },
			wantErr:     true,
			errContains: "cache max_size",
		},
		{
			name:        "empty jwt secret rejected",
			mutate:      func(c *Config) { c.Debug = true; c.JWT.Secret = "" },
			wantErr:     true,
			errContains: "jwt secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Equal(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	assert.True(t, a.Equal(b))

	b.WebDAV.Port = 9999
	assert.False(t, a.Equal(b))
}
