package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix    = "post:%d"
	GameKeyPrefix    = "game:%s"
	FeedFirstPageKey = "feed:first:%s:%d"
)

const (
	PostTTL = 30 * time.Minute
	GameTTL = 10 * time.Minute
	FeedTTL = 30 * time.Second
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// GameKey is keyed by slug so both id and slug lookups can share it after resolution.
func GameKey(slug string) string {
	return fmt.Sprintf(GameKeyPrefix, slug)
}

// FeedKey caches the first page of the global feed for a sort order and page size.
func FeedKey(sort string, pageSize int) string {
	return fmt.Sprintf(FeedFirstPageKey, sort, pageSize)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateAuthor drops cached content that embeds the author's public identity.
func InvalidateAuthor(ctx context.Context, postIDs ...uint) {
	keys := make([]string, 0, len(postIDs))
	for _, id := range postIDs {
		keys = append(keys, PostKey(id))
	}
	Invalidate(ctx, keys...)
	InvalidateFeed(ctx)
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
	InvalidateFeed(ctx)
}

// InvalidateFeed drops every cached first page.
func InvalidateFeed(ctx context.Context) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, "feed:first:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	Invalidate(ctx, keys...)
}

func InvalidateGame(ctx context.Context, slug string) {
	Invalidate(ctx, GameKey(slug))
}
