package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePost_FullAuthorInfo(t *testing.T) {
	p := NormalizePost(APIPost{
		PostID:     "p1",
		AuthorID:   "u1",
		AuthorInfo: &APIAuthorInfo{UserID: "u1", Username: "alice", DisplayName: "Alice A", AvatarURL: "http://a/av.png"},
		Title:      "Hello",
		Text:       "Body",
		ImgURL:     "http://a/img.png",
		CreatedAt:  "2024-03-01T10:00:00Z",
		UpdatedAt:  "2024-03-02T10:00:00Z",
		LikesCount: 3,
		IsLiked:    true,
	}, "u1")

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, Author{ID: "u1", Username: "alice", Name: "Alice A", Avatar: "http://a/av.png"}, p.Author)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, "Body", p.Content)
	assert.Equal(t, "http://a/img.png", p.Image)
	assert.Equal(t, 3, p.Likes)
	assert.True(t, p.IsLiked)
	assert.True(t, p.IsOwner)
	require.NotNil(t, p.UpdatedAt)
	assert.Equal(t, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), p.UpdatedAt.UTC())
}

func TestNormalizePost_Fallbacks(t *testing.T) {
	before := time.Now()
	p := NormalizePost(APIPost{ID: "p2", ImageURL: "http://b/i.png"}, "")

	assert.Equal(t, "p2", p.ID, "id falls back to the bare id field")
	assert.Equal(t, "Untitled", p.Title)
	assert.Equal(t, "unknown", p.Author.ID)
	assert.Equal(t, "unknown", p.Author.Username)
	assert.Equal(t, "unknown", p.Author.Name)
	assert.Equal(t, "http://b/i.png", p.Image, "imageUrl is the fallback image field")
	assert.False(t, p.IsLiked)
	assert.False(t, p.IsOwner)
	assert.Nil(t, p.UpdatedAt)
	assert.False(t, p.CreatedAt.Before(before), "unparseable created_at defaults to now")
}

func TestNormalizePost_AuthorNameFallsBackToUsername(t *testing.T) {
	p := NormalizePost(APIPost{
		PostID:     "p3",
		AuthorInfo: &APIAuthorInfo{UserID: "u2", Username: "bob"},
	}, "")
	assert.Equal(t, "bob", p.Author.Name)
}

func TestNormalizePost_OwnershipRequiresSession(t *testing.T) {
	apiPost := APIPost{PostID: "p4", AuthorID: "u9"}

	assert.False(t, NormalizePost(apiPost, "").IsOwner)
	assert.False(t, NormalizePost(apiPost, "other").IsOwner)
	assert.True(t, NormalizePost(apiPost, "u9").IsOwner)
}

func TestParseAPITime_AcceptsBareISOWithoutZone(t *testing.T) {
	got, ok := parseAPITime("2024-05-06T07:08:09.123456")
	require.True(t, ok)
	assert.Equal(t, 2024, got.Year())
}
