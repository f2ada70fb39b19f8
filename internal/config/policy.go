package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

// Default SLA windows by severity. Tenant tiers scale these.
var defaultWindows = map[models.Severity]time.Duration{
	models.SeverityCritical: 2 * time.Hour,
	models.SeverityHigh:     12 * time.Hour,
	models.SeverityMedium:   7 * 24 * time.Hour,
	models.SeverityLow:      30 * 24 * time.Hour,
}

// TierPolicy scales SLA windows for a service tier
type TierPolicy struct {
	Multiplier float64 `yaml:"multiplier"`
}

// TenantPolicy holds per-tenant overrides
type TenantPolicy struct {
	Tier                string   `yaml:"tier"`
	AutoCloseThreshold  *float64 `yaml:"auto_close_threshold,omitempty"`
	AutoVerifyThreshold *float64 `yaml:"auto_verify_threshold,omitempty"`
}

// Policy is the tenant/SLA policy loaded from YAML. The zero value is a
// usable all-defaults policy.
type Policy struct {
	Tiers           map[string]TierPolicy             `yaml:"tiers"`
	Tenants         map[string]TenantPolicy           `yaml:"tenants"`
	SeverityWindows map[models.Severity]time.Duration `yaml:"-"`

	// Duration strings as written in YAML ("30m", "12h"), parsed on load
	RawWindows map[models.Severity]string `yaml:"severity_windows"`
}

// LoadPolicy reads the YAML policy file. A missing path returns defaults.
func LoadPolicy(path string) (*Policy, error) {
	policy := &Policy{}

	if path == "" {
		log.Printf("No policy file configured, using default SLA windows")
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	policy.SeverityWindows = make(map[models.Severity]time.Duration, len(policy.RawWindows))
	for severity, raw := range policy.RawWindows {
		window, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid window for severity %s: %w", severity, err)
		}
		policy.SeverityWindows[severity] = window
	}

	log.Printf("Loaded policy: %d tiers, %d tenant overrides", len(policy.Tiers), len(policy.Tenants))

	return policy, nil
}

// SLAWindow returns the review deadline window for a tenant and severity:
// the severity base window scaled by the tenant's tier multiplier.
func (p *Policy) SLAWindow(tenantID string, severity models.Severity) time.Duration {
	window, ok := p.SeverityWindows[severity]
	if !ok {
		window, ok = defaultWindows[severity]
		if !ok {
			window = defaultWindows[models.SeverityLow]
		}
	}

	if tenant, ok := p.Tenants[tenantID]; ok {
		if tier, ok := p.Tiers[tenant.Tier]; ok && tier.Multiplier > 0 {
			window = time.Duration(float64(window) * tier.Multiplier)
		}
	}

	return window
}

// Thresholds returns the (autoClose, autoVerify) thresholds for a tenant,
// falling back to the deployment defaults.
func (p *Policy) Thresholds(tenantID string, autoClose, autoVerify float64) (float64, float64) {
	tenant, ok := p.Tenants[tenantID]
	if !ok {
		return autoClose, autoVerify
	}

	if tenant.AutoCloseThreshold != nil {
		autoClose = *tenant.AutoCloseThreshold
	}
	if tenant.AutoVerifyThreshold != nil {
		autoVerify = *tenant.AutoVerifyThreshold
	}

	return autoClose, autoVerify
}
