package domain

import (
	"testing"
)

func TestDecodeFeedItem(t *testing.T) {
	t.Parallel()

	item, err := DecodeFeedItem([]byte(`{"source":" tg ","message_id":" 42 ","text":"вибух"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Source != "tg" || item.MessageID != "42" {
		t.Fatalf("expected trimmed ids, got %+v", item)
	}
	if item.IDKey() != "tg/42" {
		t.Fatalf("expected id key tg/42, got %q", item.IDKey())
	}
}

func TestDecodeFeedItemRequiresText(t *testing.T) {
	t.Parallel()

	if _, err := DecodeFeedItem([]byte(`{"source":"tg","message_id":"1","text":"  "}`)); err == nil {
		t.Fatalf("expected error for blank text")
	}
}

func TestDecodeFeedItemRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := DecodeFeedItem([]byte(`{"text":`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestFeedItemIDKeyRequiresBothParts(t *testing.T) {
	t.Parallel()

	if key := (FeedItem{Source: "tg"}).IDKey(); key != "" {
		t.Fatalf("expected empty key without message id, got %q", key)
	}
}

func TestContentKeyNormalizesText(t *testing.T) {
	t.Parallel()

	a := FeedItem{Source: "cxidua", MessageID: "1", Text: "Вибух  на ХТЗ"}
	b := FeedItem{Source: "tlknewsua", MessageID: "2", Text: "вибух на хтз"}
	if a.ContentKey() != b.ContentKey() {
		t.Fatalf("expected identical keys for equivalent text")
	}
	if a.ContentKey() == (FeedItem{Text: "відбій"}).ContentKey() {
		t.Fatalf("expected different keys for different text")
	}
}

func TestSnapshotLocationsSortedUnique(t *testing.T) {
	t.Parallel()

	snapshot := Snapshot{Hazards: []Hazard{
		{Location: "ХТЗ", Category: CategoryDrone},
		{Location: "Салтівка", Category: CategoryMissile},
		{Location: "ХТЗ", Category: CategoryExplosion},
	}}
	locations := snapshot.Locations()
	if len(locations) != 2 {
		t.Fatalf("expected deduplicated locations, got %v", locations)
	}
	if locations[0] != "Салтівка" || locations[1] != "ХТЗ" {
		t.Fatalf("expected sorted order, got %v", locations)
	}
}
