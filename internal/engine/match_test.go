package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

func testFinding() *models.Finding {
	return &models.Finding{
		TenantID:           "acme",
		ID:                 "f-001",
		Title:              "Outdated OpenSSL version on public endpoint",
		Severity:           models.SeverityHigh,
		Status:             models.StatusUnverified,
		CVE:                "CVE-2023-0464",
		ExploitProbability: 0.4,
		ActiveExploit:      true,
		AssetPath:          "/srv/web/nginx",
		Environment:        "prod",
	}
}

func TestMatchPatterns_ByType(t *testing.T) {
	finding := testFinding()
	candidates := []*models.Pattern{
		{ID: "1", Type: models.PatternTitleKeyword, Value: "openssl"},
		{ID: "2", Type: models.PatternTitleKeyword, Value: "postgres"},
		{ID: "3", Type: models.PatternCVE, Value: "CVE-2023-0464"},
		{ID: "4", Type: models.PatternCVE, Value: "CVE-2020-9999"},
		{ID: "5", Type: models.PatternExploitIndicator, Value: "true"},
		{ID: "6", Type: models.PatternEnvironment, Value: "prod"},
		{ID: "7", Type: models.PatternEnvironment, Value: "dev"},
		{ID: "8", Type: models.PatternAssetPath, Value: "/srv/web"},
	}

	matched := MatchPatterns(finding, candidates)

	ids := make(map[string]bool)
	for _, p := range matched {
		ids[p.ID] = true
	}
	assert.True(t, ids["1"], "title keyword should match case-insensitively")
	assert.False(t, ids["2"])
	assert.True(t, ids["3"])
	assert.False(t, ids["4"])
	assert.True(t, ids["5"])
	assert.True(t, ids["6"])
	assert.False(t, ids["7"])
	assert.True(t, ids["8"])
}

func TestMatchPatterns_TenantScopeShadowsGlobal(t *testing.T) {
	finding := testFinding()
	global := &models.Pattern{ID: "g", Type: models.PatternCVE, Value: "CVE-2023-0464", Accuracy: 0.9}
	scoped := &models.Pattern{ID: "s", Type: models.PatternCVE, Value: "CVE-2023-0464", TenantID: "acme", Accuracy: 0.5}

	matched := MatchPatterns(finding, []*models.Pattern{global, scoped})
	require.Len(t, matched, 1)
	assert.Equal(t, "s", matched[0].ID)

	// Order of candidates must not matter
	matched = MatchPatterns(finding, []*models.Pattern{scoped, global})
	require.Len(t, matched, 1)
	assert.Equal(t, "s", matched[0].ID)
}

func TestMatchPatterns_OtherTenantExcluded(t *testing.T) {
	finding := testFinding()
	other := &models.Pattern{ID: "x", Type: models.PatternCVE, Value: "CVE-2023-0464", TenantID: "globex"}

	matched := MatchPatterns(finding, []*models.Pattern{other})
	assert.Empty(t, matched)
}

func TestMatchPatterns_ArchivedExcluded(t *testing.T) {
	finding := testFinding()
	archived := &models.Pattern{ID: "a", Type: models.PatternCVE, Value: "CVE-2023-0464", Archived: true}

	matched := MatchPatterns(finding, []*models.Pattern{archived})
	assert.Empty(t, matched)
}

func TestObservedPatterns(t *testing.T) {
	observed := ObservedPatterns(testFinding())

	byKey := make(map[string]models.Pattern)
	for _, p := range observed {
		byKey[string(p.Type)+":"+p.Value] = p
	}

	assert.Contains(t, byKey, "title_keyword:openssl")
	assert.Contains(t, byKey, "cve:CVE-2023-0464")
	assert.Contains(t, byKey, "has_exploit_indicator:true")
	assert.Contains(t, byKey, "environment:prod")
	assert.Contains(t, byKey, "tenant_fp_rate:acme")

	// Short words carry no signal
	assert.NotContains(t, byKey, "title_keyword:on")

	// The tenant FP-rate observation is tenant-scoped
	assert.Equal(t, "acme", byKey["tenant_fp_rate:acme"].TenantID)
}
