// Package feed maintains the client's working set of posts and performs
// optimistic mutations against the remote API: every mutation patches
// local state first, then reconciles with the server-confirmed values or
// rolls back to an explicit pre-call snapshot.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dvoronkov/echofeed/internal/client/api"
	"github.com/dvoronkov/echofeed/internal/client/models"
	"github.com/dvoronkov/echofeed/internal/logging"
)

var (
	// ErrPostNotFound is returned when the target post is not in the
	// working set.
	ErrPostNotFound = errors.New("post not found")

	// ErrLikeInFlight is returned when a like toggle for the same post
	// has not resolved yet. Like operations are serialized per post.
	ErrLikeInFlight = errors.New("like already in flight for this post")

	// ErrMutationInFlight is returned when an update/delete/comment hits
	// a post whose previous mutation has not resolved yet.
	ErrMutationInFlight = errors.New("another mutation is in flight for this post")
)

// Gateway is the authenticated network boundary the store talks through.
// The session store implements it.
type Gateway interface {
	Request(ctx context.Context, method, endpoint string, body any, requireAuth bool) api.Result
	Current() (models.User, bool)
}

// FetchParams filter and paginate a feed fetch.
type FetchParams struct {
	Limit           int
	AuthorID        string
	LastKey         string
	IncludeComments bool
	IncludeLikes    bool
}

// CreateInput is the payload for a new post.
type CreateInput struct {
	Title   string
	Content string
	Image   string
	Status  string
}

// UpdateInput is a partial patch; nil fields stay untouched.
type UpdateInput struct {
	Title   *string
	Content *string
	Image   *string
	Status  *string
}

// Store is the post collection store. All state transitions happen under
// the mutex and are committed as whole-value replacements; subscribers are
// notified after every commit.
type Store struct {
	gw       Gateway
	log      logging.Logger
	pageSize int

	mu       sync.Mutex
	posts    []models.Post
	hasMore  bool
	nextKey  string
	loading  bool
	lastErr  string
	inFlight map[string]struct{}
	subs     []func()
}

// NewStore builds a feed store talking through gw. pageSize bounds fetches
// issued by LoadMore.
func NewStore(gw Gateway, pageSize int, log logging.Logger) *Store {
	return &Store{
		gw:       gw,
		log:      log,
		pageSize: pageSize,
		inFlight: make(map[string]struct{}),
	}
}

// Subscribe registers fn to run after every state transition.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func clonePost(p models.Post) models.Post {
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		p.UpdatedAt = &t
	}
	return p
}

// Posts returns a copy of the working set, newest first. Callers never
// hold aliases into store state.
func (s *Store) Posts() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = clonePost(p)
	}
	return out
}

// Get returns a copy of a single post by id.
func (s *Store) Get(postID string) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(postID); i >= 0 {
		return clonePost(s.posts[i]), true
	}
	return models.Post{}, false
}

// HasMore reports whether another feed page is available.
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Loading reports whether a fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last user-visible error message, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError resets the last error message.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()
}

// index returns the position of postID in the working set, or -1.
// Callers must hold the mutex.
func (s *Store) index(postID string) int {
	for i, p := range s.posts {
		if p.ID == postID {
			return i
		}
	}
	return -1
}

// acquire claims the per-post mutation gate. Callers must hold the mutex.
func (s *Store) acquire(postID string) bool {
	if _, busy := s.inFlight[postID]; busy {
		return false
	}
	s.inFlight[postID] = struct{}{}
	return true
}

func (s *Store) release(postID string) {
	delete(s.inFlight, postID)
}

func (s *Store) currentUserID() string {
	if user, ok := s.gw.Current(); ok {
		return user.ID
	}
	return ""
}

func (s *Store) requireSession() error {
	if _, ok := s.gw.Current(); !ok {
		return api.ErrAuthRequired
	}
	return nil
}

func (s *Store) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.notify()
}

// Fetch loads a feed page. When append is true the page is concatenated
// onto the working set; a duplicate append while a fetch is already in
// flight is suppressed. On failure the existing sequence stays untouched
// and hasMore is cleared so callers do not loop on a broken cursor.
func (s *Store) Fetch(ctx context.Context, params FetchParams, appendPage bool) error {
	s.mu.Lock()
	if appendPage && s.loading {
		s.mu.Unlock()
		s.log.Debug(ctx, "append fetch suppressed, another fetch in flight")
		return nil
	}
	s.loading = true
	s.lastErr = ""
	s.mu.Unlock()
	s.notify()

	res := s.gw.Request(ctx, "GET", "/posts"+encodeFetchQuery(params), nil, false)
	if res.Err != nil {
		s.mu.Lock()
		s.loading = false
		s.lastErr = res.Err.Error()
		s.hasMore = false
		s.mu.Unlock()
		s.notify()
		return res.Err
	}

	page := api.DecodeFeedPage(res.Data)
	currentID := s.currentUserID()
	normalized := make([]models.Post, 0, len(page.Posts))
	for _, p := range page.Posts {
		normalized = append(normalized, models.NormalizePost(p, currentID))
	}

	s.mu.Lock()
	if appendPage {
		s.posts = append(s.posts, normalized...)
	} else {
		s.posts = normalized
	}
	s.hasMore = page.HasMore
	s.nextKey = page.NextKey
	s.loading = false
	s.mu.Unlock()
	s.notify()

	s.log.Debug(ctx, "feed fetched", "count", len(normalized), "append", appendPage, "has_more", page.HasMore)
	return nil
}

func encodeFetchQuery(params FetchParams) string {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.AuthorID != "" {
		q.Set("author_id", params.AuthorID)
	}
	if params.LastKey != "" {
		q.Set("last_key", params.LastKey)
	}
	if params.IncludeComments {
		q.Set("include_comments", "true")
	}
	if params.IncludeLikes {
		q.Set("include_likes", "true")
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// LoadMore fetches the next page using the stored cursor. It is a no-op
// unless a further page exists and no fetch is in flight.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasMore || s.loading || s.nextKey == "" {
		s.mu.Unlock()
		return nil
	}
	lastKey := s.nextKey
	s.mu.Unlock()

	return s.Fetch(ctx, FetchParams{
		Limit:           s.pageSize,
		LastKey:         lastKey,
		IncludeComments: true,
	}, true)
}

// likeResponse is the reply of POST /posts/{id}/like. Servers confirm the
// authoritative count and liked-state when they can; older ones only send
// the action taken.
type likeResponse struct {
	Action           string `json:"action"`
	LikesCount       *int   `json:"likes_count"`
	CurrentUserLiked *bool  `json:"current_user_liked"`
}

// Like toggles the current user's like on a post. The flip and count
// adjustment apply optimistically before the call; the confirmed response
// overwrites both with the server's authoritative values, and any failure
// restores the exact pre-call pair. At most one like toggle per post is in
// flight at a time.
func (s *Store) Like(ctx context.Context, postID string) error {
	if err := s.requireSession(); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	i := s.index(postID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	if _, busy := s.inFlight[postID]; busy {
		s.mu.Unlock()
		return ErrLikeInFlight
	}
	s.inFlight[postID] = struct{}{}

	prevLiked := s.posts[i].IsLiked
	prevLikes := s.posts[i].Likes

	// Optimistic flip.
	s.posts[i].IsLiked = !prevLiked
	if prevLiked {
		s.posts[i].Likes = max(0, prevLikes-1)
	} else {
		s.posts[i].Likes = prevLikes + 1
	}
	s.mu.Unlock()
	s.notify()

	res := s.gw.Request(ctx, "POST", "/posts/"+postID+"/like", nil, true)

	if res.Err != nil {
		s.mu.Lock()
		if j := s.index(postID); j >= 0 {
			s.posts[j].IsLiked = prevLiked
			s.posts[j].Likes = prevLikes
		}
		s.release(postID)
		s.lastErr = res.Err.Error()
		s.mu.Unlock()
		s.notify()
		return res.Err
	}

	var lr likeResponse
	if err := res.Decode(&lr); err != nil {
		s.log.Warn(ctx, "like response unreadable, keeping optimistic state", "post_id", postID, "error", err)
		lr = likeResponse{}
	}

	// A confirmed response that carries neither the action nor the explicit
	// fields confirms nothing; the optimistic state stands as-is.
	if lr.Action == "" && lr.LikesCount == nil && lr.CurrentUserLiked == nil {
		s.mu.Lock()
		s.release(postID)
		s.mu.Unlock()
		s.notify()
		return nil
	}

	liked := lr.Action == "liked"
	if lr.CurrentUserLiked != nil {
		liked = *lr.CurrentUserLiked
	}
	likes := prevLikes + 1
	if !liked {
		likes = max(0, prevLikes-1)
	}
	if lr.LikesCount != nil {
		likes = max(0, *lr.LikesCount)
	}

	s.mu.Lock()
	// The post may have left the working set while the call was in
	// flight; a late resolution is then a no-op.
	if j := s.index(postID); j >= 0 {
		s.posts[j].IsLiked = liked
		s.posts[j].Likes = likes
	}
	s.release(postID)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Create publishes a new post and prepends the server-returned canonical
// post to the working set. Nothing is applied locally until the server
// confirms, so a failure has nothing to roll back.
func (s *Store) Create(ctx context.Context, input CreateInput) (models.Post, error) {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		err := fmt.Errorf("%w: title and content are required", api.ErrValidation)
		s.setErr(err)
		return models.Post{}, err
	}
	if err := s.requireSession(); err != nil {
		s.setErr(err)
		return models.Post{}, err
	}

	status := input.Status
	if status == "" {
		status = "published"
	}

	res := s.gw.Request(ctx, "POST", "/posts/create", map[string]string{
		"title":  title,
		"text":   content,
		"imgUrl": input.Image,
		"status": status,
	}, true)
	if res.Err != nil {
		s.setErr(res.Err)
		return models.Post{}, res.Err
	}

	var body struct {
		Post *models.APIPost `json:"post"`
	}
	if err := res.Decode(&body); err != nil {
		s.setErr(err)
		return models.Post{}, err
	}
	if body.Post == nil {
		err := fmt.Errorf("%w: create response missing post", api.ErrServerRejected)
		s.setErr(err)
		return models.Post{}, err
	}

	post := models.NormalizePost(*body.Post, s.currentUserID())

	s.mu.Lock()
	s.posts = append([]models.Post{post}, s.posts...)
	s.mu.Unlock()
	s.notify()

	s.log.Info(ctx, "post created", "post_id", post.ID)
	return clonePost(post), nil
}

// checkOwnership verifies the caller may mutate the post, using both the
// locally derived owner flag and a direct author/session comparison.
// Callers must hold the mutex.
func (s *Store) checkOwnership(i int) error {
	user, ok := s.gw.Current()
	if !ok {
		return api.ErrAuthRequired
	}
	if !s.posts[i].IsOwner && s.posts[i].Author.ID != user.ID {
		return fmt.Errorf("%w: you can only modify your own posts", api.ErrPermission)
	}
	return nil
}

// Update applies a partial patch to an owned post. The patch lands
// optimistically with the pre-patch post kept as an explicit snapshot; a
// response carrying a canonical post replaces the entry entirely, a bare
// success keeps the patch, and a failure restores the snapshot exactly.
func (s *Store) Update(ctx context.Context, postID string, updates UpdateInput) (models.Post, error) {
	if err := s.requireSession(); err != nil {
		s.setErr(err)
		return models.Post{}, err
	}

	s.mu.Lock()
	i := s.index(postID)
	if i < 0 {
		s.mu.Unlock()
		return models.Post{}, fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	if err := s.checkOwnership(i); err != nil {
		s.mu.Unlock()
		s.setErr(err)
		return models.Post{}, err
	}
	if !s.acquire(postID) {
		s.mu.Unlock()
		return models.Post{}, ErrMutationInFlight
	}

	snapshot := clonePost(s.posts[i])

	body := map[string]any{"post_id": postID}
	now := time.Now()
	if updates.Title != nil {
		s.posts[i].Title = *updates.Title
		body["title"] = *updates.Title
	}
	if updates.Content != nil {
		s.posts[i].Content = *updates.Content
		body["text"] = *updates.Content
	}
	if updates.Image != nil {
		s.posts[i].Image = *updates.Image
		body["imgUrl"] = *updates.Image
	}
	if updates.Status != nil {
		s.posts[i].Status = *updates.Status
		body["status"] = *updates.Status
	}
	s.posts[i].UpdatedAt = &now
	s.mu.Unlock()
	s.notify()

	res := s.gw.Request(ctx, "PUT", "/posts/"+postID+"/edit", body, true)

	if res.Err != nil {
		s.mu.Lock()
		if j := s.index(postID); j >= 0 {
			s.posts[j] = snapshot
		}
		s.release(postID)
		s.lastErr = res.Err.Error()
		s.mu.Unlock()
		s.notify()
		return models.Post{}, res.Err
	}

	var respBody struct {
		Post *models.APIPost `json:"post"`
	}
	_ = res.Decode(&respBody)

	s.mu.Lock()
	j := s.index(postID)
	if j < 0 {
		// The post left the working set while the call was in flight. The
		// server accepted the edit; locally there is nothing to show.
		s.release(postID)
		s.mu.Unlock()
		s.notify()
		return models.Post{}, fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	if respBody.Post != nil {
		s.posts[j] = models.NormalizePost(*respBody.Post, s.currentUserID())
	}
	result := clonePost(s.posts[j])
	s.release(postID)
	s.mu.Unlock()
	s.notify()
	return result, nil
}

// Delete removes an owned post from the working set before the call
// resolves. On failure the snapshot is re-inserted and the sequence
// re-sorted newest-first so the post returns to its correct position.
func (s *Store) Delete(ctx context.Context, postID string) error {
	if err := s.requireSession(); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	i := s.index(postID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	if err := s.checkOwnership(i); err != nil {
		s.mu.Unlock()
		s.setErr(err)
		return err
	}
	if !s.acquire(postID) {
		s.mu.Unlock()
		return ErrMutationInFlight
	}

	snapshot := clonePost(s.posts[i])
	s.posts = append(s.posts[:i], s.posts[i+1:]...)
	s.mu.Unlock()
	s.notify()

	res := s.gw.Request(ctx, "DELETE", "/posts/"+postID+"/delete", nil, true)

	if res.Err != nil {
		s.mu.Lock()
		s.posts = append(s.posts, snapshot)
		sort.SliceStable(s.posts, func(a, b int) bool {
			return s.posts[a].CreatedAt.After(s.posts[b].CreatedAt)
		})
		s.release(postID)
		s.lastErr = res.Err.Error()
		s.mu.Unlock()
		s.notify()
		return res.Err
	}

	s.mu.Lock()
	s.release(postID)
	s.mu.Unlock()
	s.notify()
	s.log.Info(ctx, "post deleted", "post_id", postID)
	return nil
}

// AddComment posts a comment and optimistically bumps the post's comment
// count, reverting the bump when the server rejects the comment.
func (s *Store) AddComment(ctx context.Context, postID, text, parentID string) error {
	if err := s.requireSession(); err != nil {
		s.setErr(err)
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		err := fmt.Errorf("%w: comment text is required", api.ErrValidation)
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	i := s.index(postID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	if !s.acquire(postID) {
		s.mu.Unlock()
		return ErrMutationInFlight
	}
	prevCount := s.posts[i].CommentsCount
	s.posts[i].CommentsCount = prevCount + 1
	s.mu.Unlock()
	s.notify()

	body := map[string]string{"post_id": postID, "text": text}
	if parentID != "" {
		body["parent_comment_id"] = parentID
	}

	res := s.gw.Request(ctx, "POST", "/comments", body, true)

	s.mu.Lock()
	if res.Err != nil {
		if j := s.index(postID); j >= 0 {
			s.posts[j].CommentsCount = prevCount
		}
		s.lastErr = res.Err.Error()
	}
	s.release(postID)
	s.mu.Unlock()
	s.notify()
	return res.Err
}
