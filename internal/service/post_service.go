package service

import (
	"context"
	"strings"

	"meeplehall/internal/cache"
	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"
)

const (
	maxPostTitleLen   = 300
	maxPostContentLen = 50000
)

// AdminCheck reports whether a user is an administrator.
type AdminCheck func(ctx context.Context, userID uint) (bool, error)

type PostService struct {
	posts   repository.PostRepository
	likes   repository.LikeRepository
	games   repository.GameRepository
	isAdmin AdminCheck
	rt      Realtime
}

func NewPostService(posts repository.PostRepository, likes repository.LikeRepository, games repository.GameRepository, isAdmin AdminCheck, rt Realtime) *PostService {
	return &PostService{posts: posts, likes: likes, games: games, isAdmin: isAdmin, rt: realtimeOrNop(rt)}
}

type CreatePostInput struct {
	UserID   uint
	Title    string
	Content  string
	ImageURL string
	GameID   *uint
}

type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Title    *string
	Content  *string
	ImageURL *string
	GameID   *uint
}

type ListPostsInput struct {
	Limit         int
	Offset        int
	Sort          string
	Query         string
	UserID        uint
	GameID        uint
	FollowedBy    uint
	CurrentUserID uint
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title, err := requireText("title", in.Title, maxPostTitleLen)
	if err != nil {
		return nil, err
	}
	content, err := requireText("content", in.Content, maxPostContentLen)
	if err != nil {
		return nil, err
	}
	if in.GameID != nil && *in.GameID != 0 {
		if _, err := s.games.GetByID(ctx, *in.GameID); err != nil {
			return nil, err
		}
	} else {
		in.GameID = nil
	}

	post := &models.Post{
		Title:    title,
		Content:  content,
		ImageURL: strings.TrimSpace(in.ImageURL),
		UserID:   in.UserID,
		GameID:   in.GameID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}
	created, err := s.posts.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}
	s.rt.ToAll(ctx, notifications.EventPostCreated, created)
	return created, nil
}

// GetPost hides hidden posts from everyone but their author and admins.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if post.IsHidden && post.UserID != viewerID {
		admin, err := s.admin(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, models.NewNotFoundError("Post", id)
		}
	}
	return post, nil
}

// ListPosts serves the global feed and its filtered variants. The first page
// of the unfiltered feed comes from Redis with like flags re-applied per viewer.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (models.Page[*models.Post], error) {
	if in.Sort != "top" {
		in.Sort = "new"
	}
	filter := repository.PostFilter{
		UserID:     in.UserID,
		GameID:     in.GameID,
		FollowedBy: in.FollowedBy,
		Query:      in.Query,
		Sort:       in.Sort,
	}
	cacheable := in.Offset == 0 && filter.UserID == 0 && filter.GameID == 0 && filter.FollowedBy == 0 && strings.TrimSpace(filter.Query) == ""

	load := func(viewer uint) (models.Page[*models.Post], error) {
		posts, total, err := s.posts.List(ctx, filter, in.Limit, in.Offset, viewer)
		if err != nil {
			return models.Page[*models.Post]{}, models.NewInternalError(err)
		}
		return models.NewPage(posts, in.Limit, in.Offset, total), nil
	}
	if !cacheable {
		return load(in.CurrentUserID)
	}

	var page models.Page[*models.Post]
	err := cache.Aside(ctx, cache.FeedKey(in.Sort, in.Limit), &page, cache.FeedTTL, func() error {
		p, err := load(0)
		page = p
		return err
	})
	if err != nil {
		return models.Page[*models.Post]{}, err
	}
	if err := s.applyLiked(ctx, page.Items, in.CurrentUserID); err != nil {
		return models.Page[*models.Post]{}, err
	}
	return page, nil
}

func (s *PostService) applyLiked(ctx context.Context, posts []*models.Post, viewerID uint) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.likes.LikedIDs(ctx, viewerID, models.LikeItemPost, ids)
	if err != nil {
		return models.NewInternalError(err)
	}
	for _, p := range posts {
		p.Liked = liked[p.ID]
	}
	return nil
}

func (s *PostService) SearchPosts(ctx context.Context, in ListPostsInput) (models.Page[*models.Post], error) {
	if strings.TrimSpace(in.Query) == "" {
		return models.Page[*models.Post]{}, models.NewValidationError("Search query is required")
	}
	return s.ListPosts(ctx, in)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}
	if in.Title != nil {
		if post.Title, err = requireText("title", *in.Title, maxPostTitleLen); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if post.Content, err = requireText("content", *in.Content, maxPostContentLen); err != nil {
			return nil, err
		}
	}
	if in.ImageURL != nil {
		post.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	if in.GameID != nil {
		if *in.GameID == 0 {
			post.GameID = nil
		} else {
			if _, err := s.games.GetByID(ctx, *in.GameID); err != nil {
				return nil, err
			}
			id := *in.GameID
			post.GameID = &id
		}
	}
	if err := s.posts.Update(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.posts.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.posts.GetByID(ctx, postID, 0)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		admin, err := s.admin(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (s *PostService) admin(ctx context.Context, userID uint) (bool, error) {
	if s.isAdmin == nil || userID == 0 {
		return false, nil
	}
	return s.isAdmin(ctx, userID)
}
