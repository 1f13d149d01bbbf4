// Package region resolves free-text place references against the tracked area.
package region

import (
	"strings"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

// unitEntry is one canonical sub-unit with its lowered aliases.
type unitEntry struct {
	name    string
	aliases []string
}

// Normalizer matches raw report text against the configured area vocabulary.
// Params: area name, sub-units, and direction phrases from config.
// Returns: canonical location resolution.
type Normalizer struct {
	areaName    string
	areaAliases []string
	units       []unitEntry
	directions  []string
	unmatched   string
}

// New builds a normalizer from area configuration.
// Params: area holds vocabulary; unmatched is the no-match policy.
// Returns: ready normalizer.
func New(area config.AreaConfig, unmatched string) *Normalizer {
	n := &Normalizer{
		areaName:  area.Name,
		unmatched: unmatched,
	}
	for _, alias := range area.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias != "" {
			n.areaAliases = append(n.areaAliases, alias)
		}
	}
	for _, unit := range area.Unit {
		entry := unitEntry{name: unit.Name}
		entry.aliases = append(entry.aliases, strings.ToLower(unit.Name))
		for _, alias := range unit.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" {
				entry.aliases = append(entry.aliases, alias)
			}
		}
		n.units = append(n.units, entry)
	}
	for _, direction := range area.Directions {
		direction = strings.ToLower(strings.TrimSpace(direction))
		if direction != "" {
			n.directions = append(n.directions, direction)
		}
	}
	return n
}

// Area reports the canonical area name.
// Params: none.
// Returns: configured area name.
func (n *Normalizer) Area() string {
	return n.areaName
}

// MatchUnit finds the first configured sub-unit mentioned in text.
// Params: text is raw report body.
// Returns: canonical unit name and whether one matched.
func (n *Normalizer) MatchUnit(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, unit := range n.units {
		for _, alias := range unit.aliases {
			if strings.Contains(lowered, alias) {
				return unit.name, true
			}
		}
	}
	return "", false
}

// MatchDirection finds the first configured direction phrase in text.
// Params: text is raw report body.
// Returns: matched direction phrase and whether one matched.
func (n *Normalizer) MatchDirection(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, direction := range n.directions {
		if strings.Contains(lowered, direction) {
			return direction, true
		}
	}
	return "", false
}

// MentionsArea reports whether text names the tracked area.
// Params: text is raw report body.
// Returns: true when the area name or an alias appears.
func (n *Normalizer) MentionsArea(text string) bool {
	lowered := strings.ToLower(text)
	if strings.Contains(lowered, strings.ToLower(n.areaName)) {
		return true
	}
	for _, alias := range n.areaAliases {
		if strings.Contains(lowered, alias) {
			return true
		}
	}
	return false
}

// Resolve maps report text to a canonical location per the unmatched policy.
// Params: text is raw report body.
// Returns: location and true, or empty and false when the item must be dropped.
func (n *Normalizer) Resolve(text string) (string, bool) {
	if unit, ok := n.MatchUnit(text); ok {
		return unit, true
	}
	if n.MentionsArea(text) {
		return domain.AreaWide, true
	}
	if n.unmatched == config.UnmatchedAreaWide {
		return domain.AreaWide, true
	}
	return "", false
}
