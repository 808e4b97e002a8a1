package settings_test

import (
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/bluecode/internal/domain/errors"
	"github.com/cassiomorais/bluecode/internal/domain/settings"
	"github.com/stretchr/testify/assert"
)

func validConfig() settings.MerchantConfig {
	return settings.MerchantConfig{
		ClientID:        "client",
		ClientSecret:    "secret",
		BranchID:        "branch-1",
		PurposeTemplate: "Order [[ORDERID]]",
	}
}

func TestMerchantConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*settings.MerchantConfig)
		field  string
	}{
		{"valid", func(*settings.MerchantConfig) {}, ""},
		{"missing client id", func(c *settings.MerchantConfig) { c.ClientID = "" }, "client_id"},
		{"missing secret", func(c *settings.MerchantConfig) { c.ClientSecret = " " }, "client_secret"},
		{"missing branch", func(c *settings.MerchantConfig) { c.BranchID = "" }, "branch_id"},
		{"missing purpose", func(c *settings.MerchantConfig) { c.PurposeTemplate = "" }, "purpose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domainErrors.ErrConfigInvalid)
			var cfgErr *domainErrors.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestCredential_UsableAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		cred     *settings.Credential
		expected bool
	}{
		{"nil", nil, false},
		{"empty token", &settings.Credential{ExpiresAt: now.Add(time.Hour)}, false},
		{"valid for an hour", &settings.Credential{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", &settings.Credential{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, false},
		{"inside skew", &settings.Credential{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)}, false},
		{"just outside skew", &settings.Credential{AccessToken: "a", ExpiresAt: now.Add(11 * time.Second)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cred.UsableAt(now))
		})
	}
}
