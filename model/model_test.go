package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPostTargetURL(t *testing.T) {
	tests := []struct {
		name string
		post Post
		want string
	}{
		{
			name: "explicit url wins",
			post: Post{Code: "abc", URL: "https://instagram.com/p/xyz/"},
			want: "https://instagram.com/p/xyz/",
		},
		{
			name: "post code rebuilt",
			post: Post{Code: "abc", Type: PostTypePost},
			want: "https://instagram.com/p/abc/",
		},
		{
			name: "reel code rebuilt",
			post: Post{Code: "r1", Type: PostTypeReel},
			want: "https://instagram.com/reel/r1/",
		},
		{
			name: "nothing resolvable",
			post: Post{},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.post.TargetURL())
		})
	}
}

func TestNormalizeLink(t *testing.T) {
	assert.Equal(t, "https://instagram.com/p/abc/", NormalizeLink("http://instagram.com/p/abc"))
	assert.Equal(t, "https://instagram.com/p/abc/", NormalizeLink("instagram.com/p/abc/?igshid=123"))
	assert.Equal(t, "https://instagram.com/someuser", NormalizeLink("https://instagram.com/someuser"))
	assert.Equal(t, "", NormalizeLink("  "))
}

func TestProfileURL(t *testing.T) {
	assert.Equal(t, "https://instagram.com/acct1", ProfileURL("@acct1"))
	assert.Equal(t, "https://instagram.com/acct1", ProfileURL(" acct1 "))
	assert.Equal(t, "", ProfileURL(""))
}

func TestDeduplicatePosts(t *testing.T) {
	posts := []Post{
		{Code: "a", Type: PostTypePost},
		{Code: "a", Type: PostTypePost},
		{URL: "https://instagram.com/p/b"},
		{URL: "https://instagram.com/p/b/"},
		{Code: "c", Type: PostTypeReel},
		{},
	}
	deduped := DeduplicatePosts(posts)
	assert.Len(t, deduped, 3)
	assert.Equal(t, "a", deduped[0].Code)
	assert.Equal(t, "https://instagram.com/p/b/", deduped[1].TargetURL())
	assert.Equal(t, "c", deduped[2].Code)
}

func TestIdempotencyFingerprint(t *testing.T) {
	in := IdempotencyInput{
		ServiceID:      "svc_1",
		CustomerEmail:  "buyer@example.com",
		TargetUsername: "acct1",
		Amount:         decimal.NewFromFloat(49.90),
	}
	first := in.Fingerprint()
	second := in.Fingerprint()
	assert.Equal(t, first, second, "fingerprint must be deterministic")
	assert.Len(t, first, 64)

	in.Amount = decimal.NewFromFloat(59.90)
	assert.NotEqual(t, first, in.Fingerprint())
}

func TestProcessingLockExpired(t *testing.T) {
	now := time.Now()
	lock := ProcessingLock{ExpiresAt: now.Add(-time.Second)}
	assert.True(t, lock.Expired(now))
	lock.ExpiresAt = now.Add(time.Minute)
	assert.False(t, lock.Expired(now))
}

func TestTransactionTerminal(t *testing.T) {
	txn := Transaction{Status: StatusApproved}
	assert.False(t, txn.Terminal())
	txn.Status = StatusProcessed
	assert.True(t, txn.Terminal())
}
