package models

import (
	"slices"
	"strings"
)

// ReactionScope selects how reaction tokens are keyed in LikedBy.
type ReactionScope string

const (
	// ScopeUser keys a reaction by (emoji, user): each user toggles only their own.
	ScopeUser ReactionScope = "user"
	// ScopeGlobal keys a reaction by emoji alone: any user toggles the shared token.
	ScopeGlobal ReactionScope = "global"
)

const reactionSep = ":"

// ReactionToken returns the LikedBy entry for emoji under the given scope.
func ReactionToken(scope ReactionScope, userID, emoji string) string {
	if scope == ScopeGlobal {
		return emoji
	}
	return emoji + reactionSep + userID
}

// ReactionEmoji extracts the emoji part of a token.
func ReactionEmoji(token string) string {
	emoji, _, _ := strings.Cut(token, reactionSep)
	return emoji
}

// ToggleToken removes token from set if present, otherwise appends it.
// Applying it twice returns the original set.
func ToggleToken(set []string, token string) []string {
	if i := slices.Index(set, token); i >= 0 {
		out := make([]string, 0, len(set)-1)
		out = append(out, set[:i]...)
		return append(out, set[i+1:]...)
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	return append(out, token)
}

// ReactionCounts aggregates LikedBy tokens per emoji for display.
func ReactionCounts(likedBy []string) map[string]int {
	counts := make(map[string]int, len(likedBy))
	for _, token := range likedBy {
		counts[ReactionEmoji(token)]++
	}
	return counts
}
