package service

import (
	"context"
	"fmt"

	"meeplehall/internal/models"
	"meeplehall/internal/notifications"
	"meeplehall/internal/repository"
)

const maxCommentLen = 10000

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	notify   *NotificationService
	isAdmin  AdminCheck
	rt       Realtime
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, notify *NotificationService, isAdmin AdminCheck, rt Realtime) *CommentService {
	return &CommentService{comments: comments, posts: posts, notify: notify, isAdmin: isAdmin, rt: realtimeOrNop(rt)}
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	Content  string
	ParentID *uint
}

func (s *CommentService) visiblePost(ctx context.Context, postID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID, 0)
	if err != nil {
		return nil, err
	}
	if post.IsHidden {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// CreateComment threads replies one level deep: a reply to a reply attaches to the top-level comment.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := requireText("content", in.Content, maxCommentLen)
	if err != nil {
		return nil, err
	}
	post, err := s.visiblePost(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentID != nil && *in.ParentID != 0 {
		parent, err = s.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("Parent comment belongs to another post")
		}
		if parent.ParentID != nil {
			if parent, err = s.comments.GetByID(ctx, *parent.ParentID); err != nil {
				return nil, err
			}
		}
	}

	comment := &models.Comment{PostID: post.ID, UserID: in.UserID, Content: content}
	if parent != nil {
		pid := parent.ID
		comment.ParentID = &pid
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}
	created, err := s.comments.GetByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	name := created.User.Name()
	s.notify.Notify(ctx, NotifyInput{
		RecipientID: post.UserID,
		ActorID:     in.UserID,
		Type:        models.NotificationComment,
		TargetType:  "post",
		TargetID:    post.ID,
		Message:     fmt.Sprintf("%s commented on %q", name, post.Title),
	})
	if parent != nil && parent.UserID != post.UserID {
		s.notify.Notify(ctx, NotifyInput{
			RecipientID: parent.UserID,
			ActorID:     in.UserID,
			Type:        models.NotificationReply,
			TargetType:  "comment",
			TargetID:    parent.ID,
			Message:     fmt.Sprintf("%s replied to your comment", name),
		})
	}
	s.rt.ToAll(ctx, notifications.EventCommentCreated, created)
	return created, nil
}

// ListComments returns top-level comments oldest first, each carrying its replies.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	if _, err := s.visiblePost(ctx, postID); err != nil {
		return nil, err
	}
	flat, err := s.comments.ListByPost(ctx, postID, viewerID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return threadComments(flat), nil
}

func threadComments(flat []*models.Comment) []*models.Comment {
	byID := make(map[uint]*models.Comment, len(flat))
	for _, c := range flat {
		byID[c.ID] = c
	}
	roots := make([]*models.Comment, 0, len(flat))
	for _, c := range flat {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

func (s *CommentService) UpdateComment(ctx context.Context, userID, commentID uint, content string) (*models.Comment, error) {
	content, err := requireText("content", content, maxCommentLen)
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.IsDeleted {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	if comment.UserID != userID {
		return nil, models.NewForbiddenError("You can only edit your own comments")
	}
	if err := s.comments.UpdateContent(ctx, commentID, content); err != nil {
		return nil, models.NewInternalError(err)
	}
	comment.Content = content
	return comment, nil
}

// DeleteComment is allowed for the author, the post's author, and admins.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.IsDeleted {
		return nil
	}
	if comment.UserID != userID {
		post, err := s.posts.GetByID(ctx, comment.PostID, 0)
		if err != nil {
			return err
		}
		if post.UserID != userID {
			admin := false
			if s.isAdmin != nil {
				if admin, err = s.isAdmin(ctx, userID); err != nil {
					return err
				}
			}
			if !admin {
				return models.NewForbiddenError("You cannot delete this comment")
			}
		}
	}
	if err := s.comments.SoftDelete(ctx, commentID); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
