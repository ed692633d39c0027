package cli

import (
	"context"
	"log"
	"os"

	"github.com/dvoronkov/echofeed/internal/client/feed"
)

func (a *App) NewPost(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Title", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	content, err := GetMultiline(a.reader, "Text", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	image, err := GetSimpleText(a.reader, "Image URL (optional)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	post, err := a.feed.Create(ctx, feed.CreateInput{Title: title, Content: content, Image: image})
	if err != nil {
		log.Printf("Could not create post: %s", err.Error())
		return err
	}

	printlnFn("Created:")
	printlnFn(formatPost(post))
	return nil
}

func (a *App) EditPost(ctx context.Context, id string) error {
	current, ok := a.feed.Get(id)
	if !ok {
		printlnFn("No such post in the feed:", id)
		return nil
	}

	title, err := GetSimpleText(a.reader, "New title (empty to keep \""+current.Title+"\")", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	content, err := GetMultiline(a.reader, "New text (empty to keep current)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	var updates feed.UpdateInput
	if title != "" {
		updates.Title = &title
	}
	if content != "" {
		updates.Content = &content
	}
	if updates.Title == nil && updates.Content == nil {
		printlnFn("Nothing to change")
		return nil
	}

	post, err := a.feed.Update(ctx, id, updates)
	if err != nil {
		log.Printf("Could not update post: %s", err.Error())
		return err
	}

	printlnFn("Updated:")
	printlnFn(formatPost(post))
	return nil
}

func (a *App) DeletePost(ctx context.Context, id string) error {
	if err := a.feed.Delete(ctx, id); err != nil {
		log.Printf("Could not delete post: %s", err.Error())
		return err
	}
	printlnFn("Deleted", id)
	return nil
}

func (a *App) Comment(ctx context.Context, id string) error {
	text, err := GetMultiline(a.reader, "Comment", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.feed.AddComment(ctx, id, text, ""); err != nil {
		log.Printf("Could not add comment: %s", err.Error())
		return err
	}
	printlnFn("Comment added")
	return nil
}
