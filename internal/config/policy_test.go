package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

const policyYAML = `
tiers:
  enterprise:
    multiplier: 0.5
  standard:
    multiplier: 1.0

tenants:
  acme:
    tier: enterprise
  globex:
    tier: standard
    auto_close_threshold: 0.95
    auto_verify_threshold: 0.80

severity_windows:
  critical: 1h
  high: 8h
`

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPolicy(t *testing.T) {
	policy, err := LoadPolicy(writePolicy(t, policyYAML))
	require.NoError(t, err)

	assert.Len(t, policy.Tiers, 2)
	assert.Len(t, policy.Tenants, 2)
	assert.Equal(t, time.Hour, policy.SeverityWindows[models.SeverityCritical])
	assert.Equal(t, 8*time.Hour, policy.SeverityWindows[models.SeverityHigh])
}

func TestLoadPolicy_EmptyPathUsesDefaults(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, policy.SLAWindow("anyone", models.SeverityCritical))
	assert.Equal(t, 12*time.Hour, policy.SLAWindow("anyone", models.SeverityHigh))
	assert.Equal(t, 7*24*time.Hour, policy.SLAWindow("anyone", models.SeverityMedium))
	assert.Equal(t, 30*24*time.Hour, policy.SLAWindow("anyone", models.SeverityLow))
}

func TestLoadPolicy_BadWindowRejected(t *testing.T) {
	_, err := LoadPolicy(writePolicy(t, "severity_windows:\n  high: soon\n"))
	assert.Error(t, err)
}

func TestLoadPolicy_MissingFileRejected(t *testing.T) {
	_, err := LoadPolicy("/nonexistent/policy.yaml")
	assert.Error(t, err)
}

func TestSLAWindow_TierScaling(t *testing.T) {
	policy, err := LoadPolicy(writePolicy(t, policyYAML))
	require.NoError(t, err)

	// acme is enterprise: half the window
	assert.Equal(t, 30*time.Minute, policy.SLAWindow("acme", models.SeverityCritical))
	assert.Equal(t, 4*time.Hour, policy.SLAWindow("acme", models.SeverityHigh))

	// globex is standard: unscaled
	assert.Equal(t, time.Hour, policy.SLAWindow("globex", models.SeverityCritical))

	// unknown tenants get the base window
	assert.Equal(t, time.Hour, policy.SLAWindow("stranger", models.SeverityCritical))

	// severities absent from the file fall back to deployment defaults
	assert.Equal(t, time.Duration(0.5*float64(7*24*time.Hour)), policy.SLAWindow("acme", models.SeverityMedium))
}

func TestThresholds(t *testing.T) {
	policy, err := LoadPolicy(writePolicy(t, policyYAML))
	require.NoError(t, err)

	autoClose, autoVerify := policy.Thresholds("globex", 0.90, 0.70)
	assert.Equal(t, 0.95, autoClose)
	assert.Equal(t, 0.80, autoVerify)

	// acme overrides nothing, stranger is unknown: both get the defaults
	autoClose, autoVerify = policy.Thresholds("acme", 0.90, 0.70)
	assert.Equal(t, 0.90, autoClose)
	assert.Equal(t, 0.70, autoVerify)

	autoClose, autoVerify = policy.Thresholds("stranger", 0.90, 0.70)
	assert.Equal(t, 0.90, autoClose)
	assert.Equal(t, 0.70, autoVerify)
}
