package engine

import (
	"strings"

	"github.com/WilBtc/sentinel-triage/internal/models"
)

// MatchPatterns selects the patterns applicable to one finding from the
// candidate set (the tenant's patterns plus globals, archived excluded by
// the store). Matching is attribute equality or substring lookup. When a
// tenant-scoped and a global pattern share the same type and value, the
// tenant-scoped one wins.
func MatchPatterns(finding *models.Finding, candidates []*models.Pattern) []*models.Pattern {
	matched := make(map[string]*models.Pattern)

	for _, p := range candidates {
		if p.Archived {
			continue
		}
		if !patternApplies(finding, p) {
			continue
		}

		existing, ok := matched[p.Key()]
		if !ok {
			matched[p.Key()] = p
			continue
		}
		// Tenant scope shadows global for the same type+value
		if existing.TenantID == "" && p.TenantID != "" {
			matched[p.Key()] = p
		}
	}

	result := make([]*models.Pattern, 0, len(matched))
	for _, p := range matched {
		result = append(result, p)
	}
	return result
}

func patternApplies(finding *models.Finding, p *models.Pattern) bool {
	// Tenant-scoped patterns never apply to other tenants
	if p.TenantID != "" && p.TenantID != finding.TenantID {
		return false
	}

	switch p.Type {
	case models.PatternTitleKeyword:
		return strings.Contains(strings.ToLower(finding.Title), strings.ToLower(p.Value))
	case models.PatternCVE:
		return finding.CVE != "" && finding.CVE == p.Value
	case models.PatternExploitIndicator:
		return finding.ActiveExploit && p.Value == "true"
	case models.PatternEnvironment:
		return finding.Environment == p.Value
	case models.PatternAssetPath:
		return p.Value != "" && strings.Contains(finding.AssetPath, p.Value)
	case models.PatternTenantFPRate:
		return finding.TenantID == p.Value
	default:
		return false
	}
}

// ObservedPatterns derives the pattern observations present in a finding,
// used for lazy pattern creation on first sight. Title keywords are limited
// to words long enough to carry signal.
func ObservedPatterns(finding *models.Finding) []models.Pattern {
	var observed []models.Pattern

	for _, word := range strings.Fields(strings.ToLower(finding.Title)) {
		word = strings.Trim(word, ".,:;()[]\"'")
		if len(word) < 5 {
			continue
		}
		observed = append(observed, models.Pattern{
			Type:  models.PatternTitleKeyword,
			Value: word,
		})
	}

	if finding.CVE != "" {
		observed = append(observed, models.Pattern{Type: models.PatternCVE, Value: finding.CVE})
	}
	if finding.ActiveExploit {
		observed = append(observed, models.Pattern{Type: models.PatternExploitIndicator, Value: "true"})
	}
	if finding.Environment != "" {
		observed = append(observed, models.Pattern{Type: models.PatternEnvironment, Value: finding.Environment})
	}
	observed = append(observed, models.Pattern{
		Type:     models.PatternTenantFPRate,
		Value:    finding.TenantID,
		TenantID: finding.TenantID,
	})

	return observed
}
