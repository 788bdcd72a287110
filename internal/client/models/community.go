package models

import "fmt"

// DefaultPreviewLimit is how many pairs a community listing shows.
const DefaultPreviewLimit = 8

// CommunityListing is a read-only, truncated view of a card set shared by
// any user.
type CommunityListing struct {
	Name    string
	Owner   string
	Preview []WordPair
	Total   int
	// More is the number of pairs hidden by the preview.
	More int
}

// NewCommunityListing builds a listing keeping at most limit pairs.
func NewCommunityListing(name, owner string, pairs []WordPair, limit int) CommunityListing {
	if limit < 0 {
		limit = 0
	}
	shown := pairs
	if len(shown) > limit {
		shown = shown[:limit]
	}
	preview := make([]WordPair, len(shown))
	copy(preview, shown)

	return CommunityListing{
		Name:    name,
		Owner:   owner,
		Preview: preview,
		Total:   len(pairs),
		More:    len(pairs) - len(preview),
	}
}

// Truncated reports whether pairs were hidden.
func (l CommunityListing) Truncated() bool {
	return l.More > 0
}

// MoreLabel renders the "more" marker, or "" when nothing is hidden.
func (l CommunityListing) MoreLabel() string {
	if !l.Truncated() {
		return ""
	}
	return fmt.Sprintf("... and %d more", l.More)
}
