package config

import (
	"testing"
	"time"
)

func TestParseRetention(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  time.Duration
		expectErr bool
	}{
		{
			name:     "empty string disables",
			input:    "",
			expected: 0,
		},
		{
			name:     "7 days",
			input:    "7d",
			expected: 7 * 24 * time.Hour,
		},
		{
			name:     "24 hours",
			input:    "24h",
			expected: 24 * time.Hour,
		},
		{
			name:     "30 minutes",
			input:    "30m",
			expected: 30 * time.Minute,
		},
		{
			name:     "plain number means days",
			input:    "10",
			expected: 10 * 24 * time.Hour,
		},
		{
			name:      "negative duration rejected",
			input:     "-5d",
			expectErr: true,
		},
		{
			name:      "invalid format rejected",
			input:     "invalid",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseRetention(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("ParseRetention(%q) expected error, got %v", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRetention(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("ParseRetention(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		DockerPath:  DefaultDockerPath,
		HelperImage: DefaultHelperImage,
		OutputDir:   ".",
		CallTimeout: time.Minute,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty docker path", func(c *Config) { c.DockerPath = "" }},
		{"empty image", func(c *Config) { c.HelperImage = "" }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"zero timeout", func(c *Config) { c.CallTimeout = 0 }},
		{"negative retention", func(c *Config) { c.Retention = -time.Hour }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() expected error for %s", tt.name)
			}
		})
	}
}
