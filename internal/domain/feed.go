package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FeedItem is one raw free-text message from a monitored channel.
// Params: source channel identifier, message identifier, and raw text.
// Returns: validated item for the free-text pipeline.
type FeedItem struct {
	Source    string `json:"source"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// DecodeFeedItem decodes and validates one raw feed payload.
// Params: JSON document bytes.
// Returns: validated item or decode/validation error.
func DecodeFeedItem(raw []byte) (FeedItem, error) {
	var item FeedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return FeedItem{}, fmt.Errorf("decode feed item: %w", err)
	}
	if strings.TrimSpace(item.Text) == "" {
		return FeedItem{}, errors.New("feed item text is required")
	}
	item.Source = strings.TrimSpace(item.Source)
	item.MessageID = strings.TrimSpace(item.MessageID)
	return item, nil
}

// IDKey builds the source-scoped message identity key for deduplication.
// Params: none.
// Returns: "source/message_id" key or empty string when ids are absent.
func (i FeedItem) IDKey() string {
	if i.Source == "" || i.MessageID == "" {
		return ""
	}
	return i.Source + "/" + i.MessageID
}

// ContentKey hashes the normalized message text for content deduplication.
// The same report re-posted by another channel hashes to the same key.
// Params: none.
// Returns: "text/<hash>" key over lowercased, whitespace-collapsed text.
func (i FeedItem) ContentKey() string {
	normalized := strings.ToLower(strings.Join(strings.Fields(i.Text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return "text/" + hex.EncodeToString(sum[:])
}
