package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	PostTypePost = "post"
	PostTypeReel = "reel"
)

// Post is a child record of a transaction for fan-out checkouts: one row per
// selected media item. Posts are owned by exactly one transaction and are
// never shared.
type Post struct {
	ID            int64     `json:"-"`
	PostID        string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Code          string    `json:"code,omitempty"`
	URL           string    `json:"url,omitempty"`
	Type          string    `json:"type"`
	Username      string    `json:"username,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TargetURL resolves the canonical Instagram link for the post: an explicit
// URL wins, otherwise the link is rebuilt from the media code.
func (p *Post) TargetURL() string {
	if p.URL != "" {
		return NormalizeLink(p.URL)
	}
	if p.Code == "" {
		return ""
	}
	if p.Type == PostTypeReel {
		return fmt.Sprintf("https://instagram.com/reel/%s/", p.Code)
	}
	return fmt.Sprintf("https://instagram.com/p/%s/", p.Code)
}

// ProfileURL builds the profile link used by follower-style services.
func ProfileURL(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return ""
	}
	return fmt.Sprintf("https://instagram.com/%s", username)
}

// NormalizeLink forces https, strips query noise and guarantees a trailing
// slash on media links so the same post never yields two distinct URLs.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") {
		link = "https://" + strings.TrimPrefix(link, "http://")
	}
	if !strings.HasPrefix(link, "https://") {
		link = "https://" + link
	}
	if idx := strings.IndexAny(link, "?#"); idx != -1 {
		link = link[:idx]
	}
	if (strings.Contains(link, "/p/") || strings.Contains(link, "/reel/")) && !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return link
}

// DeduplicatePosts collapses posts that point at the same media, keeping the
// first occurrence. Duplicate selections from the checkout UI must not turn
// into duplicate provider orders.
func DeduplicatePosts(posts []Post) []Post {
	seen := make(map[string]struct{}, len(posts))
	deduped := make([]Post, 0, len(posts))
	for _, post := range posts {
		key := post.Code
		if key == "" {
			key = post.TargetURL()
		}
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, post)
	}
	return deduped
}
