package service

import (
	"context"
	"log/slog"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

const tableComments = "comments"

// CommentFilter narrows the moderation list. Nil fields match everything.
type CommentFilter struct {
	BlogID    string
	Approved  *bool
	Published *bool
}

type CommentService struct {
	base
	comments        *resource.Resource[domain.Comment]
	requireApproval bool
}

// NewCommentService builds the comment facade. With requireApproval set a
// comment must be approved before it can be published.
func NewCommentService(gateway Gateway, cache *resource.Cache, notifier Notifier, logger *slog.Logger, requireApproval bool, opts ...resource.Option) *CommentService {
	return &CommentService{
		base:            newBase(notifier, logger, tableComments),
		comments:        resource.New[domain.Comment](tableComments, gateway, cache, logger, opts...),
		requireApproval: requireApproval,
	}
}

// Submit records a visitor comment. It stays hidden until published.
func (s *CommentService) Submit(ctx context.Context, blogID string, in domain.CommentInput) (string, error) {
	var id string
	op := operation{resource: tableComments, action: "submit", done: "Comment submitted"}
	err := s.run(ctx, nil, op, func(ctx context.Context) error {
		if blogID == "" {
			return domain.Invalid("blog_id", "is required")
		}
		if err := validateInput(in); err != nil {
			return err
		}
		var err error
		id, err = s.comments.Create(ctx, storage.Values{
			"blog_id":      blogID,
			"author_name":  in.AuthorName,
			"author_email": in.AuthorEmail,
			"body":         in.Body,
			"is_approved":  false,
			"is_published": false,
		})
		return err
	})
	return id, err
}

// ListForPost returns the published comments of a post, oldest first.
func (s *CommentService) ListForPost(ctx context.Context, blogID string) ([]domain.Comment, error) {
	if blogID == "" {
		return nil, domain.Invalid("blog_id", "is required")
	}
	q := storage.Query{}.
		Where("blog_id", blogID).
		Where("is_published", true).
		OrderBy("created_at", false)
	return s.comments.List(ctx, q)
}

func (s *CommentService) List(ctx context.Context, actor *domain.Actor, f CommentFilter) ([]domain.Comment, error) {
	if err := domain.Authorize(actor, domain.CapCommentsModerate); err != nil {
		return nil, err
	}
	q := storage.Query{}
	if f.BlogID != "" {
		q = q.Where("blog_id", f.BlogID)
	}
	if f.Approved != nil {
		q = q.Where("is_approved", *f.Approved)
	}
	if f.Published != nil {
		q = q.Where("is_published", *f.Published)
	}
	return s.comments.List(ctx, q)
}

func (s *CommentService) Approve(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableComments, action: "approve", done: "Comment approved", cap: domain.CapCommentsModerate}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.comments.Update(ctx, id, storage.Values{"is_approved": true})
	})
}

func (s *CommentService) Publish(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableComments, action: "publish", done: "Comment published", cap: domain.CapCommentsModerate}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if s.requireApproval {
			c, err := s.comments.Get(ctx, id)
			if err != nil {
				return err
			}
			if !c.IsApproved {
				return domain.Invalid("is_approved", "comment must be approved before it is published")
			}
		}
		return s.comments.Update(ctx, id, storage.Values{"is_published": true})
	})
}

func (s *CommentService) Unpublish(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableComments, action: "unpublish", done: "Comment hidden", cap: domain.CapCommentsModerate}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.comments.Update(ctx, id, storage.Values{"is_published": false})
	})
}

func (s *CommentService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	op := operation{resource: tableComments, action: "delete", done: "Comment deleted", cap: domain.CapCommentsModerate}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		return s.comments.Remove(ctx, id)
	})
}
