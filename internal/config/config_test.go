package config

import (
	"testing"

	"github.com/researchflow/phi-sentinel/internal/phi"
)

func TestGetDefaultsIsValid(t *testing.T) {
	if err := validateConfig(GetDefaults()); err != nil {
		t.Errorf("Default configuration is invalid: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"BadPort", func(c *Config) { c.Server.Port = 0 }},
		{"PortTooLarge", func(c *Config) { c.Server.Port = 70000 }},
		{"NegativeMaxTextLength", func(c *Config) { c.Engine.MaxTextLength = -1 }},
		{"NEREnabledWithoutEndpoint", func(c *Config) { c.NER.Enabled = true }},
		{"CacheEnabledWithoutURL", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.RedisURL = ""
		}},
		{"AuditEnabledWithoutURL", func(c *Config) { c.Audit.Enabled = true }},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "verbose" }},
		{"BadLogFormat", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestPatternSpecs(t *testing.T) {
	t.Run("DefaultsToFullTable", func(t *testing.T) {
		specs := GetDefaults().Engine.PatternSpecs()
		if len(specs) != len(phi.DefaultPatternTable()) {
			t.Errorf("Specs = %d, want %d", len(specs), len(phi.DefaultPatternTable()))
		}
	})

	t.Run("DisabledPatternsAreDropped", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Engine.DisabledPatterns = []string{"url", "ipv4"}
		specs := cfg.Engine.PatternSpecs()
		for _, spec := range specs {
			if spec.ID == "url" || spec.ID == "ipv4" {
				t.Errorf("Disabled pattern %q still present", spec.ID)
			}
		}
		if len(specs) != len(phi.DefaultPatternTable())-2 {
			t.Errorf("Specs = %d", len(specs))
		}
	})

	t.Run("CustomPatternsAreAppended", func(t *testing.T) {
		cfg := GetDefaults()
		cfg.Engine.CustomPatterns = []phi.PatternSpec{{
			ID:             "study-id",
			EntityType:     "STUDY_ID",
			Tiers:          []phi.Tier{phi.TierOutputGuard},
			Expression:     `\bSTUDY-\d{6}\b`,
			BaseConfidence: 0.8,
			Severity:       phi.SeverityLow,
		}}
		specs := cfg.Engine.PatternSpecs()
		if specs[len(specs)-1].ID != "study-id" {
			t.Errorf("Custom pattern not appended: %+v", specs[len(specs)-1])
		}
	})
}
