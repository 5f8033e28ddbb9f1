package suggestion

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Canonical key builders. Two logically-equal targets must produce identical
// bytes, so every builder normalizes its inputs and keeps field order fixed.

const keySeparator = "\x1f"

// normalizeKeyPart lowercases and collapses internal whitespace.
func normalizeKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// EventTargetKey builds the canonical key for an event from its identifying
// attributes.
func EventTargetKey(title, location string) []byte {
	t := normalizeKeyPart(title)
	if t == "" {
		return nil
	}
	return []byte(t + keySeparator + normalizeKeyPart(location))
}

// TodoTargetKey builds the canonical key for a todo.
func TodoTargetKey(title string) []byte {
	t := normalizeKeyPart(title)
	if t == "" {
		return nil
	}
	return []byte("todo" + keySeparator + t)
}

// RepeatGroupKey builds the canonical key for a recurrence group.
func RepeatGroupKey(groupID int64) []byte {
	return []byte("repeat-group" + keySeparator + strconv.FormatInt(groupID, 10))
}

// HashKey digests a canonical key into the fixed-size invalidation key.
// An empty key hashes to the empty string, which publishers treat as a no-op.
func HashKey(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}
