// Package classify maps free text and source alert codes to threat categories.
package classify

import (
	"fmt"
	"strings"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

// Severity levels per category. Higher means more dangerous.
const (
	SeverityMissile        = 5
	SeverityAircraft       = 4
	SeverityDrone          = 3
	SeverityArtillery      = 2
	SeverityExplosion      = 2
	SeverityStreetFighting = 2
	SeverityAllClear       = 1
	SeverityUnspecified    = 1
)

// rule binds one category to its match patterns.
// Params: category and lowercased substring patterns.
// Returns: one ladder entry.
type rule struct {
	category domain.ThreatCategory
	patterns []string
}

// Classifier resolves threat categories from text in fixed severity order.
// Params: ladder holds rules ordered most-severe first.
// Returns: deterministic category resolution.
type Classifier struct {
	ladder []rule
}

// New builds a classifier from built-in vocabulary plus config extensions.
// Params: cfg holds extra patterns keyed by category name.
// Returns: classifier or error for an unknown category key.
func New(cfg config.ClassifyConfig) (*Classifier, error) {
	ladder := defaultLadder()
	for key, patterns := range cfg.Extra {
		category := domain.ThreatCategory(strings.ToLower(strings.TrimSpace(key)))
		index := -1
		for i := range ladder {
			if ladder[i].category == category {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("classify.extra: unknown category %q", key)
		}
		for _, pattern := range patterns {
			pattern = strings.ToLower(strings.TrimSpace(pattern))
			if pattern == "" {
				continue
			}
			ladder[index].patterns = append(ladder[index].patterns, pattern)
		}
	}
	return &Classifier{ladder: ladder}, nil
}

// Classify resolves the threat category of one free-text report.
// Params: text is raw report body in any mix of languages.
// Returns: the most severe matching category, or unspecified.
func (c *Classifier) Classify(text string) domain.ThreatCategory {
	lowered := strings.ToLower(text)
	for _, entry := range c.ladder {
		for _, pattern := range entry.patterns {
			if strings.Contains(lowered, pattern) {
				return entry.category
			}
		}
	}
	return domain.CategoryUnspecified
}

// ClassifyCode resolves the threat category of one source alert type code.
// Params: code is the upstream machine-readable alert type.
// Returns: mapped category, or unspecified for unknown codes.
func (c *Classifier) ClassifyCode(code string) domain.ThreatCategory {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "rocket":
		return domain.CategoryMissile
	case "drone":
		return domain.CategoryDrone
	case "artillery", "artillery_shelling":
		return domain.CategoryArtillery
	case "street_fighting", "urban_fights":
		return domain.CategoryStreetFighting
	case "air_raid":
		// General siren without a named threat.
		return domain.CategoryUnspecified
	default:
		return domain.CategoryUnspecified
	}
}

// Severity reports the escalation level of a category.
// Params: category is a classified threat category.
// Returns: numeric level, higher is more dangerous.
func Severity(category domain.ThreatCategory) int {
	switch category {
	case domain.CategoryMissile:
		return SeverityMissile
	case domain.CategoryAircraft:
		return SeverityAircraft
	case domain.CategoryDrone:
		return SeverityDrone
	case domain.CategoryArtillery:
		return SeverityArtillery
	case domain.CategoryExplosion:
		return SeverityExplosion
	case domain.CategoryStreetFighting:
		return SeverityStreetFighting
	case domain.CategoryAllClear:
		return SeverityAllClear
	default:
		return SeverityUnspecified
	}
}

// MaxCategory picks the more severe of two categories.
// Params: a and b are classified categories.
// Returns: the category with the higher severity level, a on ties.
func MaxCategory(a, b domain.ThreatCategory) domain.ThreatCategory {
	if Severity(b) > Severity(a) {
		return b
	}
	return a
}

// defaultLadder returns built-in match rules ordered most-severe first.
// Params: none.
// Returns: fresh rule slices safe to extend.
func defaultLadder() []rule {
	return []rule{
		{
			category: domain.CategoryMissile,
			patterns: []string{
				"ракет", "баліст", "баллист", "крилат", "крылат",
				"іскандер", "искандер", "кинджал", "кинжал", "калібр", "калибр",
			},
		},
		{
			category: domain.CategoryAircraft,
			patterns: []string{
				"авіа", "авиа", "міг-31", "миг-31", "каб",
				"бомбардувальник", "бомбардировщик", "зліт", "взлет",
			},
		},
		{
			category: domain.CategoryDrone,
			patterns: []string{
				"шахед", "шахид", "бпла", "дрон", "безпілотник", "беспилотник", "геран",
			},
		},
		{
			category: domain.CategoryArtillery,
			patterns: []string{
				"артилер", "артиллер", "обстріл", "обстрел", "рсзв", "рсзо", "град",
			},
		},
		{
			category: domain.CategoryExplosion,
			patterns: []string{
				"вибух", "взрыв", "приліт", "прилет",
			},
		},
		{
			category: domain.CategoryStreetFighting,
			patterns: []string{
				"вуличн", "уличн", "стрілянин", "стрельб",
			},
		},
		{
			category: domain.CategoryAllClear,
			patterns: []string{
				"відбій", "отбой",
			},
		},
	}
}
