package api

import (
	"encoding/json"

	"github.com/dvoronkov/echofeed/internal/client/models"
)

// FeedPage is the decoded form of a GET /posts response. The endpoint has
// two live shapes: a bare JSON array of posts, and an envelope carrying a
// data array plus pagination meta. Anything else decodes as the empty
// variant rather than an error, so an unrecognized payload yields an
// empty page with no further pages.
type FeedPage struct {
	Posts   []models.APIPost
	HasMore bool
	NextKey string
}

type feedEnvelope struct {
	Data []models.APIPost `json:"data"`
	Meta *struct {
		HasMore bool   `json:"has_more"`
		NextKey string `json:"next_key"`
	} `json:"meta"`
}

// DecodeFeedPage classifies raw into one of the known response shapes.
func DecodeFeedPage(raw json.RawMessage) FeedPage {
	var bare []models.APIPost
	if err := json.Unmarshal(raw, &bare); err == nil {
		return FeedPage{Posts: bare}
	}

	var env feedEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		page := FeedPage{Posts: env.Data}
		if env.Meta != nil {
			page.HasMore = env.Meta.HasMore
			page.NextKey = env.Meta.NextKey
		}
		return page
	}

	return FeedPage{}
}
