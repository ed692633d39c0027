package models

import "time"

// Author identifies the user who wrote a post.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// Post is the canonical feed entry held by the feed store. IsOwner is
// derived at normalization time from the current session and is never
// sent back to the server.
type Post struct {
	ID            string     `json:"id"`
	Author        Author     `json:"author"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Image         string     `json:"image,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	Likes         int        `json:"likes"`
	IsLiked       bool       `json:"is_liked"`
	CommentsCount int        `json:"comments_count"`
	IsOwner       bool       `json:"is_owner"`
	Status        string     `json:"status,omitempty"`
	Slug          string     `json:"slug,omitempty"`
}

// APIAuthorInfo is the embedded author object on a wire post.
type APIAuthorInfo struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// APIPost is a post as the API ships it. Every field is optional; the
// server has shipped several generations of this object and older posts
// miss newer fields.
type APIPost struct {
	PostID        string         `json:"post_id"`
	ID            string         `json:"id"`
	AuthorInfo    *APIAuthorInfo `json:"author_info"`
	AuthorID      string         `json:"author_id"`
	Title         string         `json:"title"`
	Text          string         `json:"text"`
	ImgURL        string         `json:"imgUrl"`
	ImageURL      string         `json:"imageUrl"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
	LikesCount    int            `json:"likes_count"`
	IsLiked       bool           `json:"is_liked"`
	CommentsCount int            `json:"comments_count"`
	Status        string         `json:"status"`
	Slug          string         `json:"slug"`
}

const unknownAuthor = "unknown"

// parseAPITime accepts the timestamp formats the API has been observed to
// emit (RFC 3339 and a bare ISO form without zone).
func parseAPITime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizePost converts a wire post into the canonical Post shape,
// deriving IsOwner against currentUserID. Missing fields fall back to
// placeholders rather than failing: a post with no title still renders.
func NormalizePost(p APIPost, currentUserID string) Post {
	author := Author{
		ID:       p.AuthorID,
		Username: unknownAuthor,
		Name:     unknownAuthor,
	}
	if p.AuthorInfo != nil {
		if p.AuthorInfo.UserID != "" {
			author.ID = p.AuthorInfo.UserID
		}
		if p.AuthorInfo.Username != "" {
			author.Username = p.AuthorInfo.Username
		}
		author.Name = p.AuthorInfo.DisplayName
		if author.Name == "" {
			author.Name = p.AuthorInfo.Username
		}
		author.Avatar = p.AuthorInfo.AvatarURL
	}
	if author.ID == "" {
		author.ID = unknownAuthor
	}
	if author.Name == "" {
		author.Name = unknownAuthor
	}

	id := p.PostID
	if id == "" {
		id = p.ID
	}

	title := p.Title
	if title == "" {
		title = "Untitled"
	}

	image := p.ImgURL
	if image == "" {
		image = p.ImageURL
	}

	createdAt, ok := parseAPITime(p.CreatedAt)
	if !ok {
		createdAt = time.Now()
	}
	var updatedAt *time.Time
	if t, ok := parseAPITime(p.UpdatedAt); ok {
		updatedAt = &t
	}

	return Post{
		ID:            id,
		Author:        author,
		Title:         title,
		Content:       p.Text,
		Image:         image,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		Likes:         p.LikesCount,
		IsLiked:       p.IsLiked,
		CommentsCount: p.CommentsCount,
		IsOwner:       currentUserID != "" && p.AuthorID == currentUserID,
		Status:        p.Status,
		Slug:          p.Slug,
	}
}
