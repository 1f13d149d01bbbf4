package region

import (
	"testing"

	"github.com/madmonkey48/kh-allert-radar/internal/config"
	"github.com/madmonkey48/kh-allert-radar/internal/domain"
)

func testArea() config.AreaConfig {
	return config.AreaConfig{
		Name:    "Харківська область",
		Aliases: []string{"харків", "kharkiv"},
		Unit: []config.AreaUnit{
			{Name: "Салтівка", Aliases: []string{"салтівка", "салтовка"}},
			{Name: "ХТЗ", Aliases: []string{"хтз"}},
		},
		Directions: []string{"з півночі", "зі сходу"},
	}
}

func TestMatchUnitByAlias(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedDrop)
	unit, ok := normalizer.MatchUnit("вибухи в районі Салтовка, будьте обережні")
	if !ok || unit != "Салтівка" {
		t.Fatalf("expected canonical Салтівка, got %q ok=%v", unit, ok)
	}
}

func TestMatchUnitNoMatch(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedDrop)
	if unit, ok := normalizer.MatchUnit("тихо у місті"); ok {
		t.Fatalf("expected no unit match, got %q", unit)
	}
}

func TestMatchDirection(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedDrop)
	direction, ok := normalizer.MatchDirection("ракета зі сходу")
	if !ok || direction != "зі сходу" {
		t.Fatalf("expected direction match, got %q ok=%v", direction, ok)
	}
}

func TestResolveAreaMentionFallsBackToAreaWide(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedDrop)
	location, ok := normalizer.Resolve("тривога у Харків: загроза ударів")
	if !ok || location != domain.AreaWide {
		t.Fatalf("expected area-wide for area mention, got %q ok=%v", location, ok)
	}
}

func TestResolveDropPolicy(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedDrop)
	if location, ok := normalizer.Resolve("десь далеко щось сталося"); ok {
		t.Fatalf("expected drop for unmatched text, got %q", location)
	}
}

func TestResolveAreaWidePolicy(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedAreaWide)
	location, ok := normalizer.Resolve("десь далеко щось сталося")
	if !ok || location != domain.AreaWide {
		t.Fatalf("expected area-wide fallback, got %q ok=%v", location, ok)
	}
}

func TestResolvePrefersUnitOverArea(t *testing.T) {
	t.Parallel()

	normalizer := New(testArea(), config.UnmatchedDrop)
	location, ok := normalizer.Resolve("Харків, ХТЗ: чутно вибухи")
	if !ok || location != "ХТЗ" {
		t.Fatalf("expected unit to win over area mention, got %q ok=%v", location, ok)
	}
}
