package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dvoronkov/echofeed/internal/client/feed"
	"github.com/dvoronkov/echofeed/internal/client/models"
)

func formatPost(p models.Post) string {
	liked := " "
	if p.IsLiked {
		liked = "♥"
	}
	owner := ""
	if p.IsOwner {
		owner = " (yours)"
	}
	return fmt.Sprintf("[%s] %s — %s%s\n    %s likes:%d comments:%d id:%s",
		p.CreatedAt.Local().Format(time.DateTime), p.Title, p.Author.Name, owner,
		liked, p.Likes, p.CommentsCount, p.ID)
}

func (a *App) printFeed() {
	posts := a.feed.Posts()
	if len(posts) == 0 {
		printlnFn("The feed is empty")
		return
	}
	for _, p := range posts {
		printlnFn(formatPost(p))
	}
	if a.feed.HasMore() {
		printlnFn("(type 'more' for the next page)")
	}
}

// Feed loads the first page of the feed and prints it.
func (a *App) Feed(ctx context.Context) error {
	err := a.feed.Fetch(ctx, feed.FetchParams{
		Limit:           a.config.PageSize,
		IncludeComments: true,
		IncludeLikes:    true,
	}, false)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	a.printFeed()
	return nil
}

// More loads the next feed page, if any.
func (a *App) More(ctx context.Context) error {
	if err := a.feed.LoadMore(ctx); err != nil {
		log.Println(err.Error())
		return err
	}
	a.printFeed()
	return nil
}

// Mine shows only the current user's posts.
func (a *App) Mine(ctx context.Context) error {
	user, ok := a.session.Current()
	if !ok {
		printlnFn("Log in first")
		return nil
	}
	err := a.feed.Fetch(ctx, feed.FetchParams{
		Limit:           a.config.PageSize,
		AuthorID:        user.ID,
		IncludeComments: true,
		IncludeLikes:    true,
	}, false)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	a.printFeed()
	return nil
}

func (a *App) LikePost(ctx context.Context, id string) error {
	if err := a.feed.Like(ctx, id); err != nil {
		log.Println(err.Error())
		return err
	}
	if p, ok := a.feed.Get(id); ok {
		printlnFn(formatPost(p))
	}
	return nil
}
